// Package worker runs the script engine on a dedicated goroutine and turns
// its synchronous ask callback into a prompt/answer exchange with the UI.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cbegin/athenacl-go/internal/engine"
	"github.com/cbegin/athenacl-go/internal/protocol"
)

// State is where the worker is in handling the current intent.
type State int32

const (
	Idle State = iota
	Running
	AwaitingAnswer
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case AwaitingAnswer:
		return "awaiting-answer"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Option configures a Worker.
type Option func(*Worker)

func WithLogger(log *zap.Logger) Option {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}

// Worker owns the engine. Everything except State runs on the goroutine
// that called Run.
type Worker struct {
	ch      *protocol.Channels
	factory engine.Factory
	log     *zap.Logger
	state   atomic.Int32

	ctx     context.Context
	seq     uint64
	nextSeq uint64
	pushErr error
}

// New returns a worker that reads intents from ch and builds its engine
// with factory when Run starts.
func New(ch *protocol.Channels, factory engine.Factory, opts ...Option) *Worker {
	w := &Worker{ch: ch, factory: factory, log: zap.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State reports the worker's position in the Idle/Running/AwaitingAnswer
// cycle. Safe to call from any goroutine.
func (w *Worker) State() State { return State(w.state.Load()) }

// Run builds the engine and processes intents until the intent queue is
// closed, ctx is done, or an event can no longer be delivered. Closing the
// intent queue is a normal shutdown and returns nil.
func (w *Worker) Run(ctx context.Context) error {
	w.ctx = ctx
	eng, err := w.factory(host{w})
	if err != nil {
		w.log.Error("engine init failed", zap.Error(err))
		if perr := w.ch.Events.Push(protocol.EngineError(0, (&engine.Fault{Err: err}).Error())); perr != nil {
			return perr
		}
		return fmt.Errorf("worker: start engine: %w", err)
	}
	w.log.Debug("worker started")
	for {
		intent, err := w.ch.Intents.Pop(ctx)
		if errors.Is(err, protocol.ErrClosed) {
			w.log.Debug("intent queue closed; worker stopping")
			return nil
		}
		if err != nil {
			return err
		}
		w.handle(ctx, eng, intent)
		if w.pushErr != nil {
			w.log.Warn("event queue closed; worker stopping", zap.Error(w.pushErr))
			return w.pushErr
		}
	}
}

func (w *Worker) handle(ctx context.Context, eng engine.Engine, intent protocol.Intent) {
	switch intent.Kind {
	case protocol.IntentSendCommand:
		w.begin()
		w.runCommand(ctx, eng, intent.Text)
		w.end()
	case protocol.IntentGetScratchDir:
		w.begin()
		w.push(protocol.ScratchDir(w.seq, eng.ScratchDir()))
		w.end()
	default:
		w.log.Warn("ignoring intent", zap.Stringer("kind", intent.Kind))
	}
}

func (w *Worker) begin() {
	w.nextSeq++
	w.seq = w.nextSeq
	w.state.Store(int32(Running))
}

func (w *Worker) end() {
	w.seq = 0
	w.state.Store(int32(Idle))
}

func (w *Worker) runCommand(ctx context.Context, eng engine.Engine, cmd string) {
	start := time.Now()
	res, err := w.execute(ctx, eng, cmd)
	log := w.log.With(zap.Uint64("seq", w.seq), zap.Duration("elapsed", time.Since(start)))
	switch {
	case err != nil:
		log.Debug("engine fault", zap.Error(err))
		w.push(protocol.EngineError(w.seq, faultMessage(err)))
	case !res.OK:
		log.Debug("command failed", zap.String("payload", res.Payload))
		w.push(protocol.CommandError(w.seq, res.Payload))
	default:
		log.Debug("command ok")
		w.push(protocol.Output(w.seq, res.Payload))
	}
}

func (w *Worker) execute(ctx context.Context, eng engine.Engine, cmd string) (res engine.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("engine panic", zap.Any("panic", r), zap.String("cmd", cmd))
			err = &engine.Fault{Msg: panicMessage(r)}
		}
	}()
	return eng.Execute(ctx, cmd)
}

func (w *Worker) push(ev protocol.Event) {
	if w.pushErr != nil {
		return
	}
	if err := w.ch.Events.Push(ev); err != nil {
		w.pushErr = err
	}
}

func faultMessage(err error) string {
	var fault *engine.Fault
	if errors.As(err, &fault) {
		return fault.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return engine.UnknownError
}

func panicMessage(r any) string {
	switch v := r.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// host is the engine's view of the worker.
type host struct{ w *Worker }

func (h host) Post(text string) {
	h.w.push(protocol.Post(h.w.seq, text))
}

func (h host) Notify(ev protocol.Event) {
	ev.Seq = h.w.seq
	h.w.push(ev)
}

// Ask publishes a prompt and blocks the worker until the UI answers.
func (h host) Ask(prompt string) (string, error) {
	w := h.w
	id := uuid.NewString()
	w.state.Store(int32(AwaitingAnswer))
	w.ch.Answers.Expect(id)
	w.push(protocol.Prompt(w.seq, id, prompt))
	if w.pushErr != nil {
		w.ch.Answers.Expect("")
		w.state.Store(int32(Running))
		return "", w.pushErr
	}
	w.log.Debug("awaiting answer", zap.String("prompt", id))
	answer, err := w.ch.Answers.Await(w.ctx)
	w.state.Store(int32(Running))
	return answer, err
}
