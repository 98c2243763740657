// Package playback coordinates the MIDI synthesizer and the decoded-audio
// sinks so that at most one track plays at a time.
package playback

import (
	"math"

	"github.com/cbegin/athenacl-go/internal/protocol"
)

// TrackState is the transport state of one loaded media entry.
type TrackState struct {
	Playing  bool
	Path     string
	Position float64
	Kind     protocol.TrackKind
	Missing  bool
}

// Tracks resolves a track id to its state. Implementations return nil for
// ids that do not name a track of the id's kind.
type Tracks interface {
	Track(id protocol.TrackID) *TrackState
}

// Playable is a backend that can be started, stopped and positioned.
// Positions are normalized to [0,1].
type Playable interface {
	Play()
	Pause()
	Seek(pos float64) error
	Position() float64
}

// Tempoer is implemented by backends whose speed follows the global tempo.
type Tempoer interface {
	SetTempo(bpm int)
}

// Loader is implemented by the shared MIDI synth, which switches files in
// place instead of being reopened.
type Loader interface {
	Load(path string) error
}

// Drainer is implemented by audio sinks that become exhausted after playing
// to the end and must be reopened.
type Drainer interface {
	Drained() bool
}

// Backends are the audio engines the coordinator drives.
type Backends struct {
	// Synth is the single shared MIDI synthesizer.
	Synth Playable
	// OpenAudio opens a decoder/sink for an encoded audio file.
	OpenAudio func(path string) (Playable, error)
	// Exists reports whether path is still present. Nil means os.Stat.
	Exists func(path string) bool
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
