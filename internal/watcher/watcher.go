// Package watcher reports debounced changes to dataset files in a directory.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before its change is reported.
const DefaultDebounce = 500 * time.Millisecond

// Handler is called once per settled change.
type Handler func(ctx context.Context, path string)

// Watcher watches a single directory (non-recursively) for files with one extension.
type Watcher struct {
	dir       string
	ext       string
	debounce  time.Duration
	onChange  Handler
	onRemove  Handler
	logger    *zap.Logger
	mu        sync.Mutex
	pending   map[string]*time.Timer
	closed    bool
	wg        sync.WaitGroup
	handlerMu sync.Mutex
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithRemoveHandler sets a handler for deleted or renamed-away files.
func WithRemoveHandler(h Handler) Option {
	return func(w *Watcher) { w.onRemove = h }
}

// New creates a watcher for files ending in ext (case-insensitive) under dir.
func New(dir, ext string, onChange Handler, logger *zap.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      filepath.Clean(dir),
		ext:      strings.ToLower(ext),
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   logger,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is cancelled. Handlers never run concurrently with each other.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %q: %w", w.dir, err)
	}
	w.logger.Info("Watching dataset directory",
		zap.String("dir", w.dir),
		zap.Duration("debounce", w.debounce),
	)

	defer w.shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if !w.matches(ev.Name) {
		return
	}
	w.logger.Debug("Watcher event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)
		if w.onRemove != nil {
			w.call(ctx, w.onRemove, ev.Name)
		}
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ctx, ev.Name)
	}
}

func (w *Watcher) matches(path string) bool {
	if filepath.Dir(filepath.Clean(path)) != w.dir {
		return false
	}
	return strings.ToLower(filepath.Ext(path)) == w.ext
}

func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()

		if ctx.Err() != nil {
			return
		}
		w.call(ctx, w.onChange, path)
	})
}

func (w *Watcher) call(ctx context.Context, h Handler, path string) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	h(ctx, path)
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// shutdown stops pending timers and waits for handlers already running.
func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}
