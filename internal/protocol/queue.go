// Package protocol defines the intents and events exchanged between the UI
// and the core, and the channels that carry them.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrClosed is returned when pushing to or popping from a closed channel.
	ErrClosed = errors.New("protocol: channel closed")
	// ErrNoPendingPrompt is returned when an answer arrives while no prompt
	// is waiting, or after its prompt was already answered.
	ErrNoPendingPrompt = errors.New("protocol: no pending prompt")
	// ErrPromptMismatch is returned when an answer names a prompt other than
	// the pending one.
	ErrPromptMismatch = errors.New("protocol: answer does not match pending prompt")
)

// Queue is an unbounded FIFO safe for many producers and consumers.
// Push never blocks.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{} // closed and replaced whenever the queue changes
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{})}
}

func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.wakeLocked()
	return nil
}

// Pop blocks until an item is available, the queue is closed and drained,
// or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		if v, ok := q.shiftLocked(); ok {
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			var zero T
			return zero, ErrClosed
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shiftLocked()
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further pushes. Items already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.wakeLocked()
}

func (q *Queue[T]) shiftLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return v, true
}

func (q *Queue[T]) wakeLocked() {
	close(q.ready)
	q.ready = make(chan struct{})
}

// AnswerSlot is the single-slot channel a blocked prompt waits on. An
// answer is accepted only for the prompt id registered with Expect, and only
// once.
type AnswerSlot struct {
	mu        sync.Mutex
	pending   string
	ch        chan string
	done      chan struct{}
	closeOnce sync.Once
}

func NewAnswerSlot() *AnswerSlot {
	return &AnswerSlot{ch: make(chan string, 1), done: make(chan struct{})}
}

// Expect opens the slot for one answer to promptID, discarding any answer
// left over from an earlier prompt. It must be called before the prompt is
// published. An empty id closes the slot.
func (s *AnswerSlot) Expect(promptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = promptID
	select {
	case <-s.ch:
	default:
	}
}

// Pending returns the id of the prompt waiting for an answer.
func (s *AnswerSlot) Pending() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending, s.pending != ""
}

// Offer hands an answer to the waiting prompt without blocking.
func (s *AnswerSlot) Offer(promptID, answer string) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.pending == "":
		return ErrNoPendingPrompt
	case s.pending != promptID:
		return fmt.Errorf("%w: got %q, want %q", ErrPromptMismatch, promptID, s.pending)
	}
	s.pending = ""
	s.ch <- answer
	return nil
}

// Await blocks for the answer to the expected prompt. The slot is closed to
// further answers when Await returns.
func (s *AnswerSlot) Await(ctx context.Context) (string, error) {
	defer s.Expect("")
	select {
	case v := <-s.ch:
		return v, nil
	case <-s.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *AnswerSlot) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Channels is the channel pair between the UI and the core plus the prompt
// answer slot.
type Channels struct {
	Intents *Queue[Intent]
	Events  *Queue[Event]
	Answers *AnswerSlot
}

func NewChannels() *Channels {
	return &Channels{
		Intents: NewQueue[Intent](),
		Events:  NewQueue[Event](),
		Answers: NewAnswerSlot(),
	}
}

func (c *Channels) Close() {
	c.Intents.Close()
	c.Events.Close()
	c.Answers.Close()
}
