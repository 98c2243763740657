package playback

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/cbegin/athenacl-go/internal/protocol"
)

// Watcher reports loaded media files disappearing from or returning to
// disk. It watches the parent directory of every added path, since editors
// and renders usually replace files rather than write them in place.
type Watcher struct {
	fs   *fsnotify.Watcher
	emit func(protocol.Event)
	log  *zap.Logger

	mu    sync.Mutex
	paths map[string]struct{}
	dirs  map[string]struct{}
}

// NewWatcher creates a watcher that reports changes through emit. emit is
// called from the Run goroutine.
func NewWatcher(emit func(protocol.Event), log *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("playback: create watcher: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{
		fs:    fw,
		emit:  emit,
		log:   log,
		paths: make(map[string]struct{}),
		dirs:  make(map[string]struct{}),
	}, nil
}

// Add starts tracking path. Adding the same path twice is a no-op.
func (w *Watcher) Add(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.paths[path] = struct{}{}
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return fmt.Errorf("playback: watch %s: %w", dir, err)
	}
	w.dirs[dir] = struct{}{}
	return nil
}

func (w *Watcher) tracked(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.paths[filepath.Clean(path)]
	return ok
}

// Run delivers events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.tracked(ev.Name) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				w.log.Debug("media missing", zap.String("path", ev.Name))
				w.emit(protocol.MediaMissing(filepath.Clean(ev.Name), true))
			case ev.Has(fsnotify.Create):
				w.log.Debug("media restored", zap.String("path", ev.Name))
				w.emit(protocol.MediaMissing(filepath.Clean(ev.Name), false))
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("media watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) Close() error {
	return w.fs.Close()
}
