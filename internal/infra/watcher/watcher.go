// Package watcher reports changes to a single followed file.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

const defaultDebounce = 300 * time.Millisecond

// ChangeHandler is called with the followed path after it changed.
type ChangeHandler func(path string)

// Watcher follows one file by watching its directory, so the file can be
// replaced (write to temp, rename) without losing the watch.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	target   string
	dir      string
	debounce time.Duration
	timer    *time.Timer
}

// New creates a new Watcher. A debounce of zero uses the default.
func New(debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{watcher: fw, debounce: debounce}, nil
}

// Follow switches the watch to path. The previous file is no longer followed.
func (w *Watcher) Follow(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", path)
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()

	if dir != w.dir {
		if err := w.watcher.Add(dir); err != nil {
			return errors.Wrapf(err, "add watch path %s", dir)
		}
		if w.dir != "" {
			if err := w.watcher.Remove(w.dir); err != nil {
				zlog.Debug().Msgf("watcher: remove failed: dir=%s error=%v", w.dir, err)
			}
		}
		w.dir = dir
	}
	w.target = abs
	zlog.Debug().Msgf("watcher: following: path=%s", abs)
	return nil
}

// Target returns the followed path ("" when none).
func (w *Watcher) Target() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.target
}

// Run delivers debounced changes of the followed file to handler until ctx
// is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, handler ChangeHandler) error {
	defer w.stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule(event.Name, handler)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			zlog.Warn().Msgf("watcher: error: %v", err)
		}
	}
}

// schedule restarts the debounce timer when name is the followed file.
func (w *Watcher) schedule(name string, handler ChangeHandler) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if abs != w.target {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	target := w.target
	w.timer = time.AfterFunc(w.debounce, func() {
		zlog.Info().Msgf("watcher: file changed: path=%s", target)
		handler(target)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}
