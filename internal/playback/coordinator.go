package playback

import (
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/cbegin/athenacl-go/internal/protocol"
)

const (
	MinTempo     = 20
	MaxTempo     = 600
	DefaultTempo = 120
)

// ClampTempo limits bpm to [MinTempo, MaxTempo].
func ClampTempo(bpm int) int {
	return min(max(bpm, MinTempo), MaxTempo)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(log *zap.Logger) Option {
	return func(c *Coordinator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithTempo sets the initial global tempo, clamped like SetTempo.
func WithTempo(bpm int) Option {
	return func(c *Coordinator) {
		c.tempo = ClampTempo(bpm)
	}
}

type activeTrack struct {
	id      protocol.TrackID
	backend Playable
}

// Coordinator owns the transport state shared by all tracks: which one is
// active, the global tempo and the cache of opened audio sinks. It is not
// safe for concurrent use; the UI goroutine drives it.
type Coordinator struct {
	backends Backends
	log      *zap.Logger
	tempo    int
	active   *activeTrack
	// Sinks stay cached for the life of the coordinator.
	cache map[string]Playable
}

// NewCoordinator returns an idle coordinator over backends at DefaultTempo.
func NewCoordinator(backends Backends, opts ...Option) *Coordinator {
	c := &Coordinator{
		backends: backends,
		log:      zap.NewNop(),
		tempo:    DefaultTempo,
		cache:    make(map[string]Playable),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Active returns the id of the playing track, if any.
func (c *Coordinator) Active() (protocol.TrackID, bool) {
	if c.active == nil {
		return protocol.TrackID{}, false
	}
	return c.active.id, true
}

func (c *Coordinator) Tempo() int { return c.tempo }

// Play starts id from its stored position, pausing whichever track was
// playing before.
func (c *Coordinator) Play(tracks Tracks, id protocol.TrackID) error {
	t := tracks.Track(id)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, id)
	}
	if !c.exists(t.Path) {
		if c.active != nil && c.active.id == id {
			c.active.backend.Pause()
			c.active = nil
		}
		t.Playing = false
		t.Missing = true
		c.log.Info("track file missing", zap.String("path", t.Path), zap.Stringer("track", id))
		return &MissingFileError{Path: t.Path}
	}
	t.Missing = false

	if c.active != nil && c.active.id != id {
		c.stopActive(tracks)
	}

	backend, err := c.prepare(id.Kind, t.Path)
	if err != nil {
		if c.active != nil && c.active.id == id {
			c.active = nil
		}
		t.Playing = false
		c.log.Warn("cannot prepare track", zap.String("path", t.Path), zap.Error(err))
		return err
	}
	if err := backend.Seek(t.Position); err != nil {
		t.Playing = false
		c.active = nil
		return &DecodeError{Path: t.Path, Err: err}
	}
	if id.Kind == protocol.TrackMIDI {
		if tp, ok := backend.(Tempoer); ok {
			tp.SetTempo(c.tempo)
		}
	}
	backend.Play()
	t.Playing = true
	c.active = &activeTrack{id: id, backend: backend}
	c.log.Debug("playing", zap.Stringer("track", id), zap.Float64("pos", t.Position))
	return nil
}

// Pause stops id in place. The stored position is kept.
func (c *Coordinator) Pause(tracks Tracks, id protocol.TrackID) error {
	t := tracks.Track(id)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, id)
	}
	if c.active != nil && c.active.id == id {
		c.active.backend.Pause()
		c.active = nil
	}
	t.Playing = false
	return nil
}

// Seek moves id to pos, clamped to [0,1]. A playing track is repositioned
// live.
func (c *Coordinator) Seek(tracks Tracks, id protocol.TrackID, pos float64) error {
	t := tracks.Track(id)
	if t == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTrack, id)
	}
	t.Position = clamp01(pos)
	if c.active != nil && c.active.id == id {
		if err := c.active.backend.Seek(t.Position); err != nil {
			return fmt.Errorf("seek %s: %w", t.Path, err)
		}
	}
	return nil
}

// SetTempo stores the clamped tempo and applies it to a playing MIDI track.
// It returns the tempo actually set.
func (c *Coordinator) SetTempo(bpm int) int {
	c.tempo = ClampTempo(bpm)
	if c.active != nil && c.active.id.Kind == protocol.TrackMIDI {
		if tp, ok := c.active.backend.(Tempoer); ok {
			tp.SetTempo(c.tempo)
		}
	}
	return c.tempo
}

// Tick copies the live position into the active track. When the track has
// reached its end it is stopped and rewound, and Tick reports true.
func (c *Coordinator) Tick(tracks Tracks) bool {
	if c.active == nil {
		return false
	}
	t := tracks.Track(c.active.id)
	if t == nil {
		c.active.backend.Pause()
		c.active = nil
		return false
	}
	pos := clamp01(c.active.backend.Position())
	if d, ok := c.active.backend.(Drainer); ok && d.Drained() {
		pos = 1
	}
	if pos < 1 {
		t.Position = pos
		return false
	}
	c.log.Debug("track ended", zap.Stringer("track", c.active.id))
	c.active.backend.Pause()
	t.Playing = false
	t.Position = 0
	c.active = nil
	return true
}

// FileMissing stops the active track if it plays path, which has gone from
// disk. It reports whether playback was stopped.
func (c *Coordinator) FileMissing(tracks Tracks, path string) bool {
	if c.active == nil {
		return false
	}
	t := tracks.Track(c.active.id)
	if t == nil || t.Path != path {
		return false
	}
	c.log.Info("active track file removed", zap.String("path", path), zap.Stringer("track", c.active.id))
	c.stopActive(tracks)
	return true
}

// Close pauses the active track and releases cached sinks.
func (c *Coordinator) Close() error {
	if c.active != nil {
		c.active.backend.Pause()
		c.active = nil
	}
	var errs []error
	for path, p := range c.cache {
		if cl, ok := p.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", path, err))
			}
		}
		delete(c.cache, path)
	}
	return errors.Join(errs...)
}

func (c *Coordinator) stopActive(tracks Tracks) {
	c.active.backend.Pause()
	if prev := tracks.Track(c.active.id); prev != nil {
		prev.Playing = false
	}
	c.active = nil
}

func (c *Coordinator) prepare(kind protocol.TrackKind, path string) (Playable, error) {
	switch kind {
	case protocol.TrackMIDI:
		if c.backends.Synth == nil {
			return nil, &DecodeError{Path: path, Err: ErrNoSynth}
		}
		if l, ok := c.backends.Synth.(Loader); ok {
			if err := l.Load(path); err != nil {
				return nil, &DecodeError{Path: path, Err: err}
			}
		}
		return c.backends.Synth, nil
	case protocol.TrackAudio:
		return c.audioSink(path)
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrUnknownTrack, kind)
	}
}

// audioSink returns the cached sink for path, reopening it when it has
// played to exhaustion.
func (c *Coordinator) audioSink(path string) (Playable, error) {
	if p, ok := c.cache[path]; ok {
		d, drains := p.(Drainer)
		if !drains || !d.Drained() {
			return p, nil
		}
		c.log.Debug("reopening drained sink", zap.String("path", path))
		if cl, ok := p.(io.Closer); ok {
			_ = cl.Close()
		}
	}
	if c.backends.OpenAudio == nil {
		return nil, &DecodeError{Path: path, Err: errors.New("no audio backend configured")}
	}
	p, err := c.backends.OpenAudio(path)
	if err != nil {
		delete(c.cache, path)
		return nil, &DecodeError{Path: path, Err: err}
	}
	c.cache[path] = p
	return p, nil
}

func (c *Coordinator) exists(path string) bool {
	if c.backends.Exists != nil {
		return c.backends.Exists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}
