package protocol

import "fmt"

type EventKind int

const (
	EventOutput EventKind = iota + 1
	EventPost
	EventPrompt
	EventCommandError
	EventEngineError
	EventMediaLoaded
	EventMediaMissing
	EventScratchDir
	EventLibraryStateChanged
)

func (k EventKind) String() string {
	switch k {
	case EventOutput:
		return "output"
	case EventPost:
		return "post"
	case EventPrompt:
		return "prompt"
	case EventCommandError:
		return "command-error"
	case EventEngineError:
		return "engine-error"
	case EventMediaLoaded:
		return "media-loaded"
	case EventMediaMissing:
		return "media-missing"
	case EventScratchDir:
		return "scratch-dir"
	case EventLibraryStateChanged:
		return "library-state-changed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Library names carried by EventLibraryStateChanged.
const (
	LibraryPaths         = "paths"
	LibraryTextures      = "textures"
	LibraryActivePath    = "active-path"
	LibraryActiveTexture = "active-texture"
)

// Event flows from the worker, coordinator or media watcher to the UI.
// Seq is the sequence number of the command that produced the event, or 0.
type Event struct {
	Kind      EventKind
	Seq       uint64
	Text      string
	PromptID  string
	Path      string
	TrackKind TrackKind
	Missing   bool
	Library   string
	Payload   []string
}

// Terminal reports whether the event ends a command.
func (e Event) Terminal() bool {
	switch e.Kind {
	case EventOutput, EventCommandError, EventEngineError:
		return true
	}
	return false
}

func Output(seq uint64, text string) Event {
	return Event{Kind: EventOutput, Seq: seq, Text: text}
}

func Post(seq uint64, text string) Event {
	return Event{Kind: EventPost, Seq: seq, Text: text}
}

func Prompt(seq uint64, promptID, question string) Event {
	return Event{Kind: EventPrompt, Seq: seq, PromptID: promptID, Text: question}
}

func CommandError(seq uint64, text string) Event {
	return Event{Kind: EventCommandError, Seq: seq, Text: text}
}

func EngineError(seq uint64, text string) Event {
	return Event{Kind: EventEngineError, Seq: seq, Text: text}
}

func MediaLoaded(seq uint64, path string, kind TrackKind) Event {
	return Event{Kind: EventMediaLoaded, Seq: seq, Path: path, TrackKind: kind}
}

func MediaMissing(path string, missing bool) Event {
	return Event{Kind: EventMediaMissing, Path: path, Missing: missing}
}

func ScratchDir(seq uint64, path string) Event {
	return Event{Kind: EventScratchDir, Seq: seq, Path: path}
}

func LibraryStateChanged(seq uint64, library string, payload []string) Event {
	return Event{Kind: EventLibraryStateChanged, Seq: seq, Library: library, Payload: payload}
}
