package protocol

import "fmt"

// TrackKind selects the backend a track plays through.
type TrackKind int

const (
	TrackMIDI TrackKind = iota + 1
	TrackAudio
)

func (k TrackKind) String() string {
	switch k {
	case TrackMIDI:
		return "midi"
	case TrackAudio:
		return "audio"
	default:
		return fmt.Sprintf("TrackKind(%d)", int(k))
	}
}

// TrackID identifies a track by kind and by its position in the output log.
// The same path may back several tracks, so lookups never use the path.
type TrackID struct {
	Kind  TrackKind
	Index int
}

func MIDI(index int) TrackID  { return TrackID{Kind: TrackMIDI, Index: index} }
func Audio(index int) TrackID { return TrackID{Kind: TrackAudio, Index: index} }

func (id TrackID) String() string {
	return fmt.Sprintf("%s(%d)", id.Kind, id.Index)
}

type IntentKind int

const (
	IntentSendCommand IntentKind = iota + 1
	IntentAnswerPrompt
	IntentPlay
	IntentPause
	IntentSeek
	IntentSetTempo
	IntentGetScratchDir
)

func (k IntentKind) String() string {
	switch k {
	case IntentSendCommand:
		return "send-command"
	case IntentAnswerPrompt:
		return "answer-prompt"
	case IntentPlay:
		return "play"
	case IntentPause:
		return "pause"
	case IntentSeek:
		return "seek"
	case IntentSetTempo:
		return "set-tempo"
	case IntentGetScratchDir:
		return "get-scratch-dir"
	default:
		return fmt.Sprintf("IntentKind(%d)", int(k))
	}
}

// Intent is a request from the UI. Only the fields relevant to Kind are set.
type Intent struct {
	Kind     IntentKind
	Text     string
	PromptID string
	Track    TrackID
	Position float64
	BPM      int
}

func SendCommand(text string) Intent {
	return Intent{Kind: IntentSendCommand, Text: text}
}

func AnswerPrompt(promptID, answer string) Intent {
	return Intent{Kind: IntentAnswerPrompt, PromptID: promptID, Text: answer}
}

func Play(id TrackID) Intent  { return Intent{Kind: IntentPlay, Track: id} }
func Pause(id TrackID) Intent { return Intent{Kind: IntentPause, Track: id} }

func Seek(id TrackID, position float64) Intent {
	return Intent{Kind: IntentSeek, Track: id, Position: position}
}

func SetTempo(bpm int) Intent { return Intent{Kind: IntentSetTempo, BPM: bpm} }

func GetScratchDir() Intent { return Intent{Kind: IntentGetScratchDir} }

// Transport reports whether the intent is handled by the playback coordinator
// rather than the command worker.
func (i Intent) Transport() bool {
	switch i.Kind {
	case IntentPlay, IntentPause, IntentSeek, IntentSetTempo:
		return true
	}
	return false
}
