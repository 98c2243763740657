package synth

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Synth plays one loaded Song. The audio callback pulls samples through
// Process; transport methods take the same mutex for short updates only.
type Synth struct {
	mu         sync.Mutex
	sampleRate int
	log        *zap.Logger

	song    *Song
	voices  *voices
	next    int     // index of the next event to fire
	tick    float64 // playhead in ticks
	usPerQ  int     // file tempo in effect at the playhead
	bpm     int     // tempo override; 0 follows the file
	playing bool
}

type Option func(*Synth)

func WithLogger(log *zap.Logger) Option {
	return func(s *Synth) {
		if log != nil {
			s.log = log
		}
	}
}

func WithParams(p Params) Option {
	return func(s *Synth) {
		s.voices = newVoices(s.sampleRate, p)
	}
}

func New(sampleRate int, opts ...Option) (*Synth, error) {
	if sampleRate <= 0 {
		return nil, errors.New("synth: sampleRate must be positive")
	}
	s := &Synth{
		sampleRate: sampleRate,
		log:        zap.NewNop(),
		usPerQ:     DefaultMicrosPerQuarter,
	}
	s.voices = newVoices(sampleRate, DefaultParams())
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Load parses path and makes it the current song, rewound and paused. A
// parse failure leaves the previous song in place.
func (s *Synth) Load(path string) error {
	song, err := ReadSMFFile(path)
	if err != nil {
		return err
	}
	s.SetSong(song)
	s.log.Debug("midi loaded", zap.String("path", path), zap.Int("events", len(song.Events)), zap.Int("ticks", song.EndTick))
	return nil
}

// SetSong replaces the current song, rewound and paused.
func (s *Synth) SetSong(song *Song) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.song = song
	s.playing = false
	s.seekLocked(0)
}

func (s *Synth) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.song != nil {
		s.playing = true
	}
}

// Pause stops the playhead and silences every voice.
func (s *Synth) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.voices.silence()
}

func (s *Synth) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Seek moves the playhead to pos (0..1 of the song length). Program,
// controller and tempo changes before the new position are replayed so the
// song resumes with the right sounds.
func (s *Synth) Seek(pos float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.song == nil {
		return errors.New("synth: no song loaded")
	}
	s.seekLocked(clamp(pos, 0, 1))
	return nil
}

func (s *Synth) seekLocked(pos float64) {
	s.voices.silence()
	s.voices.resetChannels()
	s.next = 0
	s.tick = 0
	s.usPerQ = DefaultMicrosPerQuarter
	if s.song == nil {
		return
	}
	s.tick = pos * float64(s.song.EndTick)
	for s.next < len(s.song.Events) && float64(s.song.Events[s.next].Tick) < s.tick {
		ev := s.song.Events[s.next]
		if ev.Kind != EventNoteOn && ev.Kind != EventNoteOff {
			s.fire(ev)
		}
		s.next++
	}
}

// Position is the playhead as a fraction of the song length. It is 1 once
// the song has ended.
func (s *Synth) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.song == nil || s.song.EndTick == 0 {
		if s.song != nil && s.next >= len(s.song.Events) {
			return 1
		}
		return 0
	}
	return clamp(s.tick/float64(s.song.EndTick), 0, 1)
}

// SetTempo overrides the file's tempo map with a fixed bpm. Zero restores
// the file tempo.
func (s *Synth) SetTempo(bpm int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bpm = max(bpm, 0)
}

// Finished reports whether the whole song has been played.
func (s *Synth) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.song != nil && s.next >= len(s.song.Events) && s.tick >= float64(s.song.EndTick)
}

// Process fills dst with interleaved stereo frames. It writes silence when
// paused.
func (s *Synth) Process(dst []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i+1 < len(dst); i += 2 {
		if s.playing {
			s.advanceLocked()
		}
		dst[i], dst[i+1] = s.voices.renderFrame()
	}
}

func (s *Synth) ticksPerFrame() float64 {
	us := s.usPerQ
	if s.bpm > 0 {
		us = 60000000 / s.bpm
	}
	return float64(s.song.Division) * 1e6 / float64(us) / float64(s.sampleRate)
}

func (s *Synth) advanceLocked() {
	song := s.song
	for s.next < len(song.Events) && float64(song.Events[s.next].Tick) <= s.tick {
		s.fire(song.Events[s.next])
		s.next++
	}
	if s.tick >= float64(song.EndTick) && s.next >= len(song.Events) {
		s.tick = float64(song.EndTick)
		s.playing = false
		for ch := range s.voices.channels {
			s.voices.releaseChannel(ch)
		}
		return
	}
	s.tick += s.ticksPerFrame()
}

func (s *Synth) fire(ev Event) {
	v := s.voices
	switch ev.Kind {
	case EventNoteOn:
		v.noteOn(ev.Channel, ev.Data1, ev.Data2)
	case EventNoteOff:
		v.noteOff(ev.Channel, ev.Data1)
	case EventControl:
		v.control(ev.Channel, ev.Data1, ev.Data2)
	case EventProgram:
		v.program(ev.Channel, ev.Data1)
	case EventPitchBend:
		v.pitchBend(ev.Channel, ev.Data1)
	case EventTempo:
		s.usPerQ = ev.MicrosPerQuarter
	}
}
