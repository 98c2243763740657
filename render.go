package athenacl

import (
	"bufio"
	"fmt"
	"os"

	"github.com/cbegin/athenacl-go/internal/synth"
)

// RenderFile renders the Standard MIDI File at in to a float32 stereo WAV
// at out.
func RenderFile(in, out string, opts synth.RenderOptions) error {
	song, err := synth.ReadSMFFile(in)
	if err != nil {
		return err
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 48000
	}
	samples, err := synth.RenderSamples(song, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	w := bufio.NewWriter(f)
	if err := synth.WriteWAV(w, samples, opts.SampleRate, 2); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", out, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", out, err)
	}
	return f.Close()
}
