package athenacl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cbegin/athenacl-go/internal/engine"
	"github.com/cbegin/athenacl-go/internal/outlog"
	"github.com/cbegin/athenacl-go/internal/playback"
	"github.com/cbegin/athenacl-go/internal/protocol"
	"github.com/cbegin/athenacl-go/internal/worker"
)

// scriptEngine understands a handful of test commands.
type scriptEngine struct{ host engine.Host }

func (e *scriptEngine) Execute(_ context.Context, cmd string) (engine.Result, error) {
	verb, arg, _ := strings.Cut(cmd, " ")
	switch verb {
	case "echo":
		return engine.Result{OK: true, Payload: arg}, nil
	case "fail":
		return engine.Result{Payload: arg}, nil
	case "ask":
		answer, err := e.host.Ask(arg)
		if err != nil {
			return engine.Result{}, err
		}
		return engine.Result{OK: true, Payload: "answer=" + answer}, nil
	case "midi":
		e.host.Notify(protocol.MediaLoaded(0, arg, protocol.TrackMIDI))
		return engine.Result{OK: true}, nil
	case "audio":
		e.host.Notify(protocol.MediaLoaded(0, arg, protocol.TrackAudio))
		return engine.Result{OK: true}, nil
	}
	return engine.Result{}, &engine.Fault{}
}

func (e *scriptEngine) ScratchDir() string { return "/scratch" }

type stubPlayable struct {
	playing bool
	pos     float64
	tempo   int
}

func (p *stubPlayable) Play()                  { p.playing = true }
func (p *stubPlayable) Pause()                 { p.playing = false }
func (p *stubPlayable) Seek(pos float64) error { p.pos = pos; return nil }
func (p *stubPlayable) Position() float64      { return p.pos }
func (p *stubPlayable) SetTempo(bpm int)       { p.tempo = bpm }

func newTestSession(t *testing.T, opts ...Option) (*Session, *stubPlayable, map[string]bool) {
	t.Helper()
	synth := &stubPlayable{}
	missing := map[string]bool{}
	s, err := NewSession(
		func(h engine.Host) (engine.Engine, error) { return &scriptEngine{host: h}, nil },
		playback.Backends{
			Synth:     synth,
			OpenAudio: func(string) (playback.Playable, error) { return &stubPlayable{}, nil },
			Exists:    func(path string) bool { return !missing[path] },
		},
		opts...,
	)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, synth, missing
}

// pump applies events until it has applied a terminal event, a prompt or
// a scratch directory reply.
func pump(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		ev, err := s.NextEvent(ctx)
		if err != nil {
			t.Fatalf("next event: %v", err)
		}
		s.Apply(ev)
		if ev.Terminal() || ev.Kind == protocol.EventPrompt || ev.Kind == protocol.EventScratchDir {
			return
		}
	}
}

func entryTexts(snap outlog.Snapshot) []string {
	var out []string
	for _, e := range snap.Entries {
		out = append(out, e.Kind.String()+":"+e.Text)
	}
	return out
}

func TestSessionCommandRoundTrip(t *testing.T) {
	s, _, _ := newTestSession(t)
	for _, cmd := range []string{"echo hi", "fail nope", "bogus"} {
		if err := s.Submit(cmd); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	pump(t, s)
	pump(t, s)
	pump(t, s)
	got := strings.Join(entryTexts(s.Snapshot()), "|")
	want := "command:echo hi|command:fail nope|command:bogus|text:hi|error:nope|error:Unknown error"
	if got != want {
		t.Fatalf("log = %s\nwant  %s", got, want)
	}
}

func TestSessionPromptAnswer(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Submit("ask colour? ")
	pump(t, s)
	if s.WorkerState() != worker.AwaitingAnswer {
		t.Fatalf("worker state = %s", s.WorkerState())
	}
	if snap := s.Snapshot(); snap.Prompt == nil || snap.Prompt.Text != "colour? " {
		t.Fatalf("prompt = %+v", snap.Prompt)
	}
	if err := s.Submit("blue"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	pump(t, s)
	got := strings.Join(entryTexts(s.Snapshot()), "|")
	if got != "command:ask colour? |text:colour? blue|text:answer=blue" {
		t.Fatalf("log = %s", got)
	}
}

func TestSessionRejectsUnpairedAnswer(t *testing.T) {
	s, _, _ := newTestSession(t)
	err := s.Dispatch(protocol.AnswerPrompt("nobody-asked", "stale"))
	if !errors.Is(err, protocol.ErrNoPendingPrompt) {
		t.Fatalf("err = %v, want ErrNoPendingPrompt", err)
	}

	s.Submit("ask colour? ")
	pump(t, s)
	err = s.Dispatch(protocol.AnswerPrompt("nobody-asked", "stale"))
	if !errors.Is(err, protocol.ErrPromptMismatch) {
		t.Fatalf("err = %v, want ErrPromptMismatch", err)
	}
	if s.WorkerState() != worker.AwaitingAnswer {
		t.Fatalf("worker state = %s", s.WorkerState())
	}
	if err := s.Submit("red"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	pump(t, s)
	snap := s.Snapshot()
	if last := snap.Entries[len(snap.Entries)-1]; last.Text != "answer=red" {
		t.Fatalf("last entry = %+v", last)
	}
}

func TestSessionMissingFileStopsPlayback(t *testing.T) {
	s, synth, _ := newTestSession(t)
	s.Submit("midi /m/a.mid")
	pump(t, s)
	id := s.Tracks()[0]
	s.Dispatch(protocol.Play(id))
	if !synth.playing {
		t.Fatalf("synth not playing")
	}

	s.Apply(protocol.MediaMissing("/m/a.mid", true))
	if synth.playing || s.Playing() {
		t.Fatalf("playback continued after file vanished: synth=%v active=%v", synth.playing, s.Playing())
	}
	tr := s.Snapshot().Entries[id.Index].Track
	if tr.Playing || !tr.Missing {
		t.Fatalf("track = %+v", tr)
	}
}

func TestSessionScratchDir(t *testing.T) {
	s, _, _ := newTestSession(t)
	s.Dispatch(protocol.GetScratchDir())
	pump(t, s)
	if got := s.Snapshot().ScratchDir; got != "/scratch" {
		t.Fatalf("scratch dir = %q", got)
	}
}

func TestSessionPlaybackFlow(t *testing.T) {
	s, synth, missing := newTestSession(t, WithTempo(90))
	s.Submit("midi /m/a.mid")
	pump(t, s)
	s.Submit("audio /m/b.wav")
	pump(t, s)

	tracks := s.Tracks()
	if len(tracks) != 2 || tracks[0] != protocol.MIDI(1) || tracks[1] != protocol.Audio(3) {
		t.Fatalf("tracks = %v", tracks)
	}
	midi := tracks[0]

	s.Dispatch(protocol.Seek(midi, 0.25))
	s.Dispatch(protocol.Play(midi))
	if !s.Playing() || !synth.playing || synth.pos != 0.25 || synth.tempo != 90 {
		t.Fatalf("synth = %+v playing=%v", synth, s.Playing())
	}
	s.Dispatch(protocol.SetTempo(1000))
	if synth.tempo != playback.MaxTempo || s.Snapshot().Tempo != playback.MaxTempo {
		t.Fatalf("tempo = %d / %d", synth.tempo, s.Snapshot().Tempo)
	}

	synth.pos = 1
	if !s.Tick() {
		t.Fatalf("tick did not end track")
	}
	if s.Playing() {
		t.Fatalf("still playing after end")
	}

	missing["/m/b.wav"] = true
	s.Dispatch(protocol.Play(tracks[1]))
	snap := s.Snapshot()
	last := snap.Entries[len(snap.Entries)-1]
	if last.Kind != outlog.EntryError || last.Text != "File /m/b.wav does not exist." {
		t.Fatalf("last entry = %+v", last)
	}
	if !snap.Entries[3].Track.Missing {
		t.Fatalf("track not marked missing")
	}
}

func TestSessionMediaWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "take.wav")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, _, _ := newTestSession(t, WithMediaWatch(true))
	s.Submit("audio " + path)
	pump(t, s)
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ev, err := s.NextEvent(ctx)
	if err != nil {
		t.Fatalf("next event: %v", err)
	}
	s.Apply(ev)
	if ev.Kind != protocol.EventMediaMissing || !s.Snapshot().Entries[1].Track.Missing {
		t.Fatalf("event = %+v", ev)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	s, _, _ := newTestSession(t)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := s.Submit("echo late"); err == nil {
		t.Fatalf("submit after close succeeded")
	}
}
