// Package watcher watches the corpus directory with fsnotify and triggers a
// debounced incremental ingest when books are added, changed, or removed.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/bookref/internal/corpus"
	"github.com/hyperjump/bookref/pkg/utils"
)

const defaultDebounce = 2 * time.Second

// ChangeFunc handles one batch of corpus changes. paths lists the files whose
// events were coalesced into the batch, sorted.
type ChangeFunc func(ctx context.Context, paths []string)

// Watcher watches a corpus directory tree. Events for matching files are collected
// and delivered as one batch once the directory has been quiet for the debounce
// interval. Batches never overlap: changes arriving during a batch are delivered
// after it returns.
type Watcher struct {
	root       string
	extensions []string
	onChange   ChangeFunc
	debounce   time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	pending map[string]struct{}
	timer   *time.Timer
	running bool
	started bool

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for watch events and batch runs.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long the directory must be quiet before a batch fires.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for root. extensions filter which files count
// (empty means all).
func NewWatcher(root string, extensions []string, onChange ChangeFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:       filepath.Clean(root),
		extensions: extensions,
		onChange:   onChange,
		debounce:   defaultDebounce,
		pending:    make(map[string]struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.NopIfNil(w.logger)
	return w
}

// Start begins watching. It returns once every directory under root is registered;
// events are handled until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	if err := w.addTree(w.root); err != nil {
		_ = fsw.Close()
		w.fsw = nil
		return err
	}
	w.started = true
	w.logger.Info("watching corpus",
		zap.String("dir", w.root),
		zap.Strings("extensions", w.extensions),
		zap.Duration("debounce", w.debounce))
	w.wg.Add(1)
	go w.run(ctx)
	return nil
}

// addTree registers dir and its non-hidden subdirectories. Called with mu held.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			go w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}
	w.logger.Debug("watch event", zap.String("op", ev.Op.String()), zap.String("path", path))

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.mu.Lock()
			if w.fsw != nil {
				if err := w.addTree(path); err != nil {
					w.logger.Warn("failed to watch new directory", zap.String("path", path), zap.Error(err))
				}
			}
			w.mu.Unlock()
			// Books copied in together with the directory produce no events of their own.
			w.schedule(ctx, path)
			return
		}
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return
	}
	if corpus.ExtensionAllowed(filepath.Ext(path), w.extensions) {
		w.schedule(ctx, path)
	}
}

// schedule records path and restarts the quiet-period timer.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.fire(ctx) })
}

// fire delivers the pending batch unless a batch is already running; the running
// batch picks the new paths up when it finishes.
func (w *Watcher) fire(ctx context.Context) {
	w.mu.Lock()
	if w.running || len(w.pending) == 0 || !w.started {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	for {
		w.mu.Lock()
		batch := make([]string, 0, len(w.pending))
		for p := range w.pending {
			batch = append(batch, p)
		}
		w.pending = make(map[string]struct{})
		stopped := !w.started
		if len(batch) == 0 || stopped {
			w.running = false
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		sort.Strings(batch)
		w.logger.Info("corpus changed", zap.Int("paths", len(batch)))
		if w.onChange != nil && ctx.Err() == nil {
			w.onChange(ctx, batch)
		}
	}
}

// Root returns the watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Stop stops watching and drops pending changes. A batch already running is not
// interrupted.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]struct{})
	fsw := w.fsw
	w.fsw = nil
	w.mu.Unlock()

	w.stopOnce.Do(func() { close(w.done) })
	_ = fsw.Close()
	w.wg.Wait()
}
