package synth

import (
	"encoding/binary"
	"io"
	"math"
)

// RenderOptions controls an offline render.
type RenderOptions struct {
	SampleRate int
	// Seconds caps the render length; zero renders the whole song plus
	// TailSeconds of release.
	Seconds     float64
	TailSeconds float64
	// BPM overrides the file tempo when positive.
	BPM    int
	Params *Params
}

// RenderSamples renders song to interleaved stereo float32 frames.
func RenderSamples(song *Song, opts RenderOptions) ([]float32, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}
	var synthOpts []Option
	if opts.Params != nil {
		synthOpts = append(synthOpts, WithParams(*opts.Params))
	}
	s, err := New(opts.SampleRate, synthOpts...)
	if err != nil {
		return nil, err
	}
	s.SetSong(song)
	s.SetTempo(opts.BPM)
	s.Play()

	const block = 1024
	var out []float32
	buf := make([]float32, block*2)
	limit := int(opts.Seconds * float64(opts.SampleRate))
	tail := int(opts.TailSeconds * float64(opts.SampleRate))
	for {
		frames := len(out) / 2
		if limit > 0 && frames >= limit {
			break
		}
		if limit == 0 && s.Finished() {
			if tail <= 0 || s.voices.activeCount() == 0 {
				break
			}
			tail -= block
		}
		n := block
		if limit > 0 {
			n = min(n, limit-frames)
		}
		s.Process(buf[:n*2])
		out = append(out, buf[:n*2]...)
	}
	return out, nil
}

// WriteWAV writes interleaved float32 samples as a 32-bit float WAV file.
func WriteWAV(w io.Writer, samples []float32, sampleRate, channels int) error {
	dataSize := len(samples) * 4
	var hdr [44]byte
	copy(hdr[0:], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:], uint32(36+dataSize))
	copy(hdr[8:], "WAVE")
	copy(hdr[12:], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:], 16)
	binary.LittleEndian.PutUint16(hdr[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(hdr[22:], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(hdr[28:], uint32(sampleRate*channels*4))
	binary.LittleEndian.PutUint16(hdr[32:], uint16(channels*4))
	binary.LittleEndian.PutUint16(hdr[34:], 32)
	copy(hdr[36:], "data")
	binary.LittleEndian.PutUint32(hdr[40:], uint32(dataSize))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	buf := make([]byte, 4096*4)
	for len(samples) > 0 {
		n := min(len(samples), 4096)
		for i, v := range samples[:n] {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := w.Write(buf[:n*4]); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}
