// Package audio connects the synth and decoded media files to the ebiten
// audio context.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource renders interleaved stereo float32 frames on demand.
type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the little-endian float32 byte
// stream ebiten's F32 players read. It never reaches EOF.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, v := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return frames * 8, nil
}

var (
	contextMu    sync.Mutex
	audioContext *ebitaudio.Context
	contextRate  int
)

// sharedContext returns the process-wide audio context. ebiten allows only
// one, so every caller must agree on the sample rate.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextMu.Lock()
	defer contextMu.Unlock()
	if audioContext == nil {
		audioContext = ebitaudio.NewContext(sampleRate)
		contextRate = sampleRate
	}
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return audioContext, nil
}

// Output keeps a SampleSource audible. The player runs for the life of the
// Output; the source decides whether it renders sound or silence.
type Output struct {
	player *ebitaudio.Player
}

func StartOutput(sampleRate int, source SampleSource) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	pl, err := ctx.NewPlayerF32(NewStreamReader(source))
	if err != nil {
		return nil, fmt.Errorf("audio: new output: %w", err)
	}
	pl.Play()
	return &Output{player: pl}, nil
}

func (o *Output) Close() error {
	o.player.Pause()
	return o.player.Close()
}
