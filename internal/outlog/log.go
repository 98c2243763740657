// Package outlog is the UI-side projection of the event stream: the
// ordered output log, the pending prompt, and the library and scratch
// directory state the renderers display.
package outlog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/cbegin/athenacl-go/internal/playback"
	"github.com/cbegin/athenacl-go/internal/protocol"
)

type EntryKind int

const (
	EntryText EntryKind = iota + 1
	EntryCommand
	EntryError
	EntryTrack
	EntryGroup
)

func (k EntryKind) String() string {
	switch k {
	case EntryText:
		return "text"
	case EntryCommand:
		return "command"
	case EntryError:
		return "error"
	case EntryTrack:
		return "track"
	case EntryGroup:
		return "group"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Entry is one row of the output log. Track is set for EntryTrack and
// Children for EntryGroup. Key is stable for the life of the entry.
type Entry struct {
	Key      string
	Kind     EntryKind
	Text     string
	Seq      uint64
	Track    *playback.TrackState
	Children []Entry
}

// Prompt is a question the engine is waiting on.
type Prompt struct {
	ID   string
	Text string
}

// Log is append-only; entries are never removed and track entries are
// mutated in place. It is owned by the UI goroutine.
type Log struct {
	entries    []Entry
	prompt     *Prompt
	scratchDir string
	libraries  map[string][]string
	tempo      int
}

func New() *Log {
	return &Log{libraries: make(map[string][]string), tempo: playback.DefaultTempo}
}

func newEntry(kind EntryKind, text string, seq uint64) Entry {
	return Entry{Key: uuid.NewString(), Kind: kind, Text: text, Seq: seq}
}

// Submit turns typed text into the intent to send. While a prompt is
// pending the text answers it; otherwise the text is echoed and sent as a
// command.
func (l *Log) Submit(text string) protocol.Intent {
	if p := l.prompt; p != nil {
		l.prompt = nil
		l.append(newEntry(EntryText, p.Text+text, 0))
		return protocol.AnswerPrompt(p.ID, text)
	}
	l.append(newEntry(EntryCommand, text, 0))
	return protocol.SendCommand(text)
}

// Apply folds one event into the log.
func (l *Log) Apply(ev protocol.Event) {
	switch ev.Kind {
	case protocol.EventOutput, protocol.EventPost:
		if ev.Text != "" {
			l.append(textEntry(ev.Text, ev.Seq))
		}
	case protocol.EventCommandError, protocol.EventEngineError:
		l.append(newEntry(EntryError, ev.Text, ev.Seq))
	case protocol.EventPrompt:
		l.prompt = &Prompt{ID: ev.PromptID, Text: ev.Text}
	case protocol.EventMediaLoaded:
		e := newEntry(EntryTrack, ev.Path, ev.Seq)
		e.Track = &playback.TrackState{Path: ev.Path, Kind: ev.TrackKind}
		l.append(e)
	case protocol.EventMediaMissing:
		for i := range l.entries {
			if t := l.entries[i].Track; t != nil && t.Path == ev.Path {
				t.Missing = ev.Missing
				if ev.Missing {
					t.Playing = false
				}
			}
		}
	case protocol.EventScratchDir:
		l.scratchDir = ev.Path
	case protocol.EventLibraryStateChanged:
		l.libraries[ev.Library] = slices.Clone(ev.Payload)
	}
}

// textEntry keeps single-line output flat and groups multi-line output so
// renderers can lay it out as one block.
func textEntry(text string, seq uint64) Entry {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 1 {
		return newEntry(EntryText, lines[0], seq)
	}
	g := newEntry(EntryGroup, "", seq)
	for _, line := range lines {
		g.Children = append(g.Children, newEntry(EntryText, line, seq))
	}
	return g
}

// AppendError adds an error row that did not come from the event stream,
// such as a failed play request.
func (l *Log) AppendError(text string) {
	l.append(newEntry(EntryError, text, 0))
}

func (l *Log) append(e Entry) { l.entries = append(l.entries, e) }

func (l *Log) Len() int { return len(l.entries) }

// Track returns the state of the track entry id names, or nil when the
// index is out of range, not a track, or of a different kind.
func (l *Log) Track(id protocol.TrackID) *playback.TrackState {
	if id.Index < 0 || id.Index >= len(l.entries) {
		return nil
	}
	t := l.entries[id.Index].Track
	if t == nil || t.Kind != id.Kind {
		return nil
	}
	return t
}

// Tracks lists the ids of all track entries in log order.
func (l *Log) Tracks() []protocol.TrackID {
	var ids []protocol.TrackID
	for i, e := range l.entries {
		if e.Track != nil {
			ids = append(ids, protocol.TrackID{Kind: e.Track.Kind, Index: i})
		}
	}
	return ids
}

func (l *Log) Pending() (Prompt, bool) {
	if l.prompt == nil {
		return Prompt{}, false
	}
	return *l.prompt, true
}

func (l *Log) ScratchDir() string { return l.scratchDir }

func (l *Log) Library(name string) []string { return slices.Clone(l.libraries[name]) }

func (l *Log) Tempo() int { return l.tempo }

// SetTempo records the tempo shown next to transport controls.
func (l *Log) SetTempo(bpm int) { l.tempo = bpm }

// Snapshot is a deep copy of the log for renderers.
type Snapshot struct {
	Entries    []Entry
	Prompt     *Prompt
	ScratchDir string
	Libraries  map[string][]string
	Tempo      int
}

func (l *Log) Snapshot() Snapshot {
	s := Snapshot{
		Entries:    copyEntries(l.entries),
		ScratchDir: l.scratchDir,
		Libraries:  make(map[string][]string, len(l.libraries)),
		Tempo:      l.tempo,
	}
	if l.prompt != nil {
		p := *l.prompt
		s.Prompt = &p
	}
	for k, v := range l.libraries {
		s.Libraries[k] = slices.Clone(v)
	}
	return s
}

func copyEntries(in []Entry) []Entry {
	if in == nil {
		return nil
	}
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = e
		if e.Track != nil {
			t := *e.Track
			out[i].Track = &t
		}
		out[i].Children = copyEntries(e.Children)
	}
	return out
}
