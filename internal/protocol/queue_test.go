package protocol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 100; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if got := q.Len(); got != 100 {
		t.Fatalf("len = %d, want 100", got)
	}
	for i := 0; i < 100; i++ {
		v, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if v != i {
			t.Fatalf("pop = %d, want %d", v, i)
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := NewQueue[string]()
	got := make(chan string, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err != nil {
			got <- "error: " + err.Error()
			return
		}
		got <- v
	}()
	select {
	case v := <-got:
		t.Fatalf("pop returned early with %q", v)
	case <-time.After(20 * time.Millisecond):
	}
	if err := q.Push("hello"); err != nil {
		t.Fatalf("push: %v", err)
	}
	select {
	case v := <-got:
		if v != "hello" {
			t.Fatalf("pop = %q, want hello", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("pop did not wake up")
	}
}

func TestQueuePopHonoursContext(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.Pop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("pop err = %v, want deadline exceeded", err)
	}
}

func TestQueueCloseDrainsThenFails(t *testing.T) {
	q := NewQueue[int]()
	_ = q.Push(1)
	q.Close()
	if err := q.Push(2); !errors.Is(err, ErrClosed) {
		t.Fatalf("push after close err = %v, want ErrClosed", err)
	}
	v, err := q.Pop(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("pop = %d, %v; want 1, nil", v, err)
	}
	if _, err := q.Pop(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("pop on drained closed queue err = %v, want ErrClosed", err)
	}
}

func TestQueueManyProducers(t *testing.T) {
	q := NewQueue[int]()
	const producers, each = 8, 200
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				_ = q.Push(p*each + i)
			}
		}(p)
	}
	wg.Wait()
	seen := make(map[int]bool)
	for i := 0; i < producers*each; i++ {
		v, err := q.Pop(context.Background())
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if seen[v] {
			t.Fatalf("duplicate value %d", v)
		}
		seen[v] = true
	}
}

func TestAnswerSlot(t *testing.T) {
	s := NewAnswerSlot()
	s.Expect("p1")
	if id, ok := s.Pending(); !ok || id != "p1" {
		t.Fatalf("pending = %q, %v; want p1, true", id, ok)
	}
	if err := s.Offer("p1", "yes"); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if err := s.Offer("p1", "no"); !errors.Is(err, ErrNoPendingPrompt) {
		t.Fatalf("second offer err = %v, want ErrNoPendingPrompt", err)
	}
	v, err := s.Await(context.Background())
	if err != nil || v != "yes" {
		t.Fatalf("await = %q, %v; want yes, nil", v, err)
	}
	s.Close()
	if _, err := s.Await(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("await after close err = %v, want ErrClosed", err)
	}
	if err := s.Offer("p1", "late"); !errors.Is(err, ErrClosed) {
		t.Fatalf("offer after close err = %v, want ErrClosed", err)
	}
}

func TestAnswerSlotRejectsUnpairedAnswers(t *testing.T) {
	s := NewAnswerSlot()
	if err := s.Offer("p0", "stale"); !errors.Is(err, ErrNoPendingPrompt) {
		t.Fatalf("offer with no prompt err = %v, want ErrNoPendingPrompt", err)
	}

	s.Expect("p1")
	if err := s.Offer("p0", "stale"); !errors.Is(err, ErrPromptMismatch) {
		t.Fatalf("offer for other prompt err = %v, want ErrPromptMismatch", err)
	}
	if err := s.Offer("p1", "fresh"); err != nil {
		t.Fatalf("offer: %v", err)
	}
	v, err := s.Await(context.Background())
	if err != nil || v != "fresh" {
		t.Fatalf("await = %q, %v; want fresh, nil", v, err)
	}
}

func TestAnswerSlotClearsAfterCancelledAwait(t *testing.T) {
	s := NewAnswerSlot()
	s.Expect("p1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Await(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("await err = %v, want context.Canceled", err)
	}
	if _, ok := s.Pending(); ok {
		t.Fatalf("prompt still pending after Await returned")
	}
	if err := s.Offer("p1", "late"); !errors.Is(err, ErrNoPendingPrompt) {
		t.Fatalf("late offer err = %v, want ErrNoPendingPrompt", err)
	}
}

func TestIntentTransport(t *testing.T) {
	cases := []struct {
		intent Intent
		want   bool
	}{
		{SendCommand("help"), false},
		{AnswerPrompt("id", "y"), false},
		{GetScratchDir(), false},
		{Play(MIDI(2)), true},
		{Pause(Audio(5)), true},
		{Seek(Audio(5), 0.5), true},
		{SetTempo(90), true},
	}
	for _, tc := range cases {
		t.Run(tc.intent.Kind.String(), func(t *testing.T) {
			if got := tc.intent.Transport(); got != tc.want {
				t.Fatalf("Transport() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEventTerminal(t *testing.T) {
	terminal := []Event{Output(1, "ok"), CommandError(1, "bad"), EngineError(1, "boom")}
	for _, ev := range terminal {
		if !ev.Terminal() {
			t.Fatalf("%s should be terminal", ev.Kind)
		}
	}
	other := []Event{Post(1, "x"), Prompt(1, "id", "q?"), MediaLoaded(1, "a.mid", TrackMIDI), ScratchDir(0, "/tmp")}
	for _, ev := range other {
		if ev.Terminal() {
			t.Fatalf("%s should not be terminal", ev.Kind)
		}
	}
}
