// Package athenacl wires the command worker, the playback coordinator and
// the output log into a Session that a renderer drives.
package athenacl

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cbegin/athenacl-go/internal/engine"
	"github.com/cbegin/athenacl-go/internal/outlog"
	"github.com/cbegin/athenacl-go/internal/playback"
	"github.com/cbegin/athenacl-go/internal/protocol"
	"github.com/cbegin/athenacl-go/internal/worker"
)

type Option func(*sessionConfig)

type sessionConfig struct {
	log        *zap.Logger
	tempo      int
	watchMedia bool
}

func defaultSessionConfig() sessionConfig {
	return sessionConfig{log: zap.NewNop(), tempo: playback.DefaultTempo}
}

func WithLogger(log *zap.Logger) Option {
	return func(cfg *sessionConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

// WithTempo sets the initial MIDI tempo in bpm.
func WithTempo(bpm int) Option {
	return func(cfg *sessionConfig) {
		cfg.tempo = bpm
	}
}

// WithMediaWatch reports loaded files that disappear from disk.
func WithMediaWatch(enabled bool) Option {
	return func(cfg *sessionConfig) {
		cfg.watchMedia = enabled
	}
}

// Session is the core of one front-end. Submit, Dispatch, Apply, Tick,
// Snapshot and Close belong to the UI goroutine; NextEvent may be called
// from any goroutine. Run one Session per process: the audio backends it
// drives are process-wide.
type Session struct {
	ch      *protocol.Channels
	worker  *worker.Worker
	coord   *playback.Coordinator
	out     *outlog.Log
	watcher *playback.Watcher
	log     *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	workerErr error
	closeOnce sync.Once
}

// NewSession starts the worker goroutine, which builds its engine with
// factory.
func NewSession(factory engine.Factory, backends playback.Backends, opts ...Option) (*Session, error) {
	if factory == nil {
		return nil, errors.New("athenacl: nil engine factory")
	}
	cfg := defaultSessionConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	ch := protocol.NewChannels()
	s := &Session{
		ch:     ch,
		worker: worker.New(ch, factory, worker.WithLogger(cfg.log.Named("worker"))),
		coord:  playback.NewCoordinator(backends, playback.WithLogger(cfg.log.Named("playback")), playback.WithTempo(cfg.tempo)),
		out:    outlog.New(),
		log:    cfg.log,
	}
	s.out.SetTempo(s.coord.Tempo())

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if cfg.watchMedia {
		w, err := playback.NewWatcher(s.mediaChanged, cfg.log.Named("watch"))
		if err != nil {
			s.log.Warn("media watch disabled", zap.Error(err))
		} else {
			s.watcher = w
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				_ = w.Run(ctx)
			}()
		}
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, protocol.ErrClosed) {
			s.log.Error("worker stopped", zap.Error(err))
			s.workerErr = err
		}
	}()
	return s, nil
}

func (s *Session) mediaChanged(ev protocol.Event) {
	if err := s.ch.Events.Push(ev); err != nil {
		s.log.Debug("dropping media event after close", zap.String("path", ev.Path))
	}
}

// Submit routes typed text: it answers a pending prompt or echoes and
// sends it as a command.
func (s *Session) Submit(text string) error {
	return s.Dispatch(s.out.Submit(text))
}

// Dispatch delivers an intent. Commands go to the worker; transport
// intents run on the coordinator immediately. Playback failures are
// recorded in the log rather than returned; the error reports only that the
// session can no longer deliver intents.
func (s *Session) Dispatch(in protocol.Intent) error {
	switch in.Kind {
	case protocol.IntentSendCommand, protocol.IntentGetScratchDir:
		return s.ch.Intents.Push(in)
	case protocol.IntentAnswerPrompt:
		if err := s.ch.Answers.Offer(in.PromptID, in.Text); err != nil {
			return fmt.Errorf("answer prompt %s: %w", in.PromptID, err)
		}
		return nil
	case protocol.IntentPlay:
		s.playbackResult(in, s.coord.Play(s.out, in.Track))
	case protocol.IntentPause:
		s.playbackResult(in, s.coord.Pause(s.out, in.Track))
	case protocol.IntentSeek:
		s.playbackResult(in, s.coord.Seek(s.out, in.Track, in.Position))
	case protocol.IntentSetTempo:
		s.out.SetTempo(s.coord.SetTempo(in.BPM))
	default:
		return fmt.Errorf("athenacl: unknown intent %s", in.Kind)
	}
	return nil
}

func (s *Session) playbackResult(in protocol.Intent, err error) {
	if err == nil {
		return
	}
	s.log.Info("playback request failed", zap.Stringer("intent", in.Kind), zap.Stringer("track", in.Track), zap.Error(err))
	s.out.AppendError(err.Error())
}

// NextEvent blocks until the core produces an event.
func (s *Session) NextEvent(ctx context.Context) (protocol.Event, error) {
	return s.ch.Events.Pop(ctx)
}

// TryEvent returns a pending event without blocking.
func (s *Session) TryEvent() (protocol.Event, bool) {
	return s.ch.Events.TryPop()
}

// Apply folds an event into the output log.
// A file reported missing stops the track playing it.
func (s *Session) Apply(ev protocol.Event) {
	s.out.Apply(ev)
	switch {
	case ev.Kind == protocol.EventMediaLoaded && s.watcher != nil:
		if err := s.watcher.Add(ev.Path); err != nil {
			s.log.Warn("cannot watch media", zap.String("path", ev.Path), zap.Error(err))
		}
	case ev.Kind == protocol.EventMediaMissing && ev.Missing:
		s.coord.FileMissing(s.out, ev.Path)
	}
}

// Tick refreshes the active track's position. It reports whether that
// track just ended.
func (s *Session) Tick() bool {
	return s.coord.Tick(s.out)
}

// Playing reports whether any track is active.
func (s *Session) Playing() bool {
	_, ok := s.coord.Active()
	return ok
}

func (s *Session) Snapshot() outlog.Snapshot { return s.out.Snapshot() }

// Tracks lists the loaded tracks in log order.
func (s *Session) Tracks() []protocol.TrackID { return s.out.Tracks() }

func (s *Session) WorkerState() worker.State { return s.worker.State() }

// Close stops playback and the worker. A command blocked in the engine is
// not interrupted; Close waits for it.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.coord.Close()
		s.ch.Close()
		if s.watcher != nil {
			s.cancel()
			if werr := s.watcher.Close(); werr != nil && err == nil {
				err = werr
			}
		}
		s.wg.Wait()
		s.cancel()
		if err == nil && s.workerErr != nil {
			err = s.workerErr
		}
	})
	return err
}
