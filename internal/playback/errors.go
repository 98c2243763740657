package playback

import (
	"errors"
	"fmt"
)

// ErrUnknownTrack is returned when a track id does not name a loaded track.
var ErrUnknownTrack = errors.New("playback: unknown track")

// ErrNoSynth is returned when a MIDI track is played without a synth backend.
var ErrNoSynth = errors.New("playback: no MIDI synth configured")

// MissingFileError reports that a track's file is gone from disk. The
// coordinator's state is unchanged apart from the target being stopped.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("File %s does not exist.", e.Path)
}

// DecodeError reports that a file could not be opened or decoded for
// playback.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot play %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
