package athenacl

import (
	"errors"
	"math"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cbegin/athenacl-go/internal/audio"
	"github.com/cbegin/athenacl-go/internal/playback"
	"github.com/cbegin/athenacl-go/internal/synth"
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	params    synth.Params
	volume    float64
	sampleTap func([]float32)
	log       *zap.Logger
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{params: synth.DefaultParams(), volume: 1, log: zap.NewNop()}
}

func WithSynthParams(p synth.Params) PlayerOption {
	return func(c *playerConfig) { c.params = p }
}

func WithVolume(v float64) PlayerOption {
	return func(c *playerConfig) { c.volume = v }
}

// WithSampleTap receives every rendered synth buffer after the volume stage.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(c *playerConfig) { c.sampleTap = tap }
}

func WithPlayerLogger(log *zap.Logger) PlayerOption {
	return func(c *playerConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// Player owns the device side of playback: the shared MIDI synth mixed into
// one always-running output stream, and the sample rate audio sinks decode
// to.
type Player struct {
	sampleRate int
	synth      *synth.Synth
	mix        *mixer
	out        *audio.Output
	log        *zap.Logger
}

// mixer sits between the synth and the device.
type mixer struct {
	source    audio.SampleSource
	volume    atomic.Uint64
	sampleTap func([]float32)
}

func (m *mixer) Process(dst []float32) {
	m.source.Process(dst)
	if v := float32(math.Float64frombits(m.volume.Load())); v != 1 {
		for i := range dst {
			dst[i] *= v
		}
	}
	if m.sampleTap != nil {
		m.sampleTap(dst)
	}
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	s, err := synth.New(sampleRate, synth.WithParams(cfg.params), synth.WithLogger(cfg.log))
	if err != nil {
		return nil, err
	}
	p := &Player{
		sampleRate: sampleRate,
		synth:      s,
		mix:        &mixer{source: s, sampleTap: cfg.sampleTap},
		log:        cfg.log,
	}
	p.SetVolume(cfg.volume)
	return p, nil
}

// Start opens the audio device and begins pulling synth output.
func (p *Player) Start() error {
	if p.out != nil {
		return nil
	}
	out, err := audio.StartOutput(p.sampleRate, p.mix)
	if err != nil {
		return err
	}
	p.out = out
	p.log.Info("audio output started", zap.Int("sample_rate", p.sampleRate))
	return nil
}

// Backends exposes the player to a playback coordinator.
func (p *Player) Backends() playback.Backends {
	return playback.Backends{
		Synth: p.synth,
		OpenAudio: func(path string) (playback.Playable, error) {
			return audio.OpenSink(p.sampleRate, path)
		},
		Exists: fileExists,
	}
}

func (p *Player) Synth() *synth.Synth { return p.synth }

// SetVolume clamps to [0,2].
func (p *Player) SetVolume(v float64) {
	v = min(max(v, 0), 2)
	p.mix.volume.Store(math.Float64bits(v))
}

func (p *Player) Volume() float64 {
	return math.Float64frombits(p.mix.volume.Load())
}

func (p *Player) Close() error {
	p.synth.Pause()
	if p.out == nil {
		return nil
	}
	err := p.out.Close()
	p.out = nil
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
