package athenacl

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPlayerVolume(t *testing.T) {
	pl, err := NewPlayer(48000)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	if got := pl.Volume(); got != 1 {
		t.Fatalf("default volume = %v, want 1", got)
	}
	pl.SetVolume(0.35)
	if got := pl.Volume(); got != 0.35 {
		t.Fatalf("volume = %v, want 0.35", got)
	}
	pl.SetVolume(-2)
	if got := pl.Volume(); got != 0 {
		t.Fatalf("volume should clamp to 0, got %v", got)
	}
	pl.SetVolume(9)
	if got := pl.Volume(); got != 2 {
		t.Fatalf("volume should clamp to 2, got %v", got)
	}
}

type constSource float32

func (c constSource) Process(dst []float32) {
	for i := range dst {
		dst[i] = float32(c)
	}
}

func TestMixerScalesAndTaps(t *testing.T) {
	var tapped []float32
	pl, err := NewPlayer(48000, WithVolume(0.5), WithSampleTap(func(buf []float32) {
		tapped = append(tapped, buf...)
	}))
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	pl.mix.source = constSource(0.8)
	buf := make([]float32, 4)
	pl.mix.Process(buf)
	for i, v := range buf {
		if v != 0.4 {
			t.Fatalf("buf[%d] = %v, want 0.4", i, v)
		}
	}
	if len(tapped) != 4 || tapped[0] != 0.4 {
		t.Fatalf("tapped = %v", tapped)
	}
}

func TestNewPlayerRejectsBadRate(t *testing.T) {
	if _, err := NewPlayer(0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPlayerBackends(t *testing.T) {
	pl, err := NewPlayer(48000)
	if err != nil {
		t.Fatalf("new player: %v", err)
	}
	b := pl.Backends()
	if b.Synth == nil {
		t.Fatalf("no synth")
	}

	dir := t.TempDir()
	present := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !b.Exists(present) || b.Exists(filepath.Join(dir, "gone.wav")) {
		t.Fatalf("Exists is wrong")
	}
	if _, err := b.OpenAudio(present); err == nil {
		t.Fatalf("opened a non-audio file")
	}
	if err := pl.Close(); err != nil {
		t.Fatalf("close without start: %v", err)
	}
}
