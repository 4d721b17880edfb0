package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"actionbroker/internal/common"
)

// watchDebounce is how long the watcher waits for the filesystem to settle
// before invalidating. Editors fire bursts of events per save.
const watchDebounce = 500 * time.Millisecond

// Watcher invalidates a discovery cache when route files change, so edits
// are picked up on the next access instead of waiting out the freshness
// window.
type Watcher struct {
	root    string
	cache   *Cache
	logger  *common.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
	done    chan struct{}
	closed  bool
}

// NewWatcher creates a Watcher over the route tree rooted at root. Call
// Start to begin watching and Close to stop.
func NewWatcher(root string, cache *Cache, logger *common.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	return &Watcher{
		root:    root,
		cache:   cache,
		logger:  logger,
		watcher: fsw,
		done:    make(chan struct{}),
	}, nil
}

// Start registers watches on every directory under the root and begins
// processing events. fsnotify watches are not recursive, so directories
// created later are added as their create events arrive.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != w.root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "node_modules") {
			return fs.SkipDir
		}
		if addErr := w.watcher.Add(path); addErr != nil {
			w.logger.Warn().
				Str("dir", path).
				Str("error", addErr.Error()).
				Msg("failed to watch route directory")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("registering route watches: %w", err)
	}

	go w.run()

	w.logger.Info().
		Str("root", w.root).
		Msg("watching route tree for changes")
	return nil
}

// Close stops the watcher and releases its filesystem handles.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
	}
	close(w.done)
	w.mu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().
				Str("error", err.Error()).
				Msg("route watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New directories must be added to the watch set before any route
	// file inside them produces events.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.logger.Warn().
					Str("dir", event.Name).
					Str("error", err.Error()).
					Msg("failed to watch new route directory")
			}
		}
	}

	base := filepath.Base(event.Name)
	if !routeFileNames[base] && !isDirEvent(event) {
		return
	}

	w.scheduleInvalidate(event)
}

// isDirEvent guesses whether the event concerns a directory. For removes
// and renames the path no longer exists, so anything without a recognized
// file extension is treated as a directory change.
func isDirEvent(event fsnotify.Event) bool {
	if info, err := os.Stat(event.Name); err == nil {
		return info.IsDir()
	}
	return filepath.Ext(event.Name) == ""
}

// scheduleInvalidate debounces bursts of events into one invalidation.
func (w *Watcher) scheduleInvalidate(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(watchDebounce, func() {
		w.cache.Invalidate()
		w.logger.Debug().
			Str("trigger", event.Name).
			Str("op", event.Op.String()).
			Msg("route tree changed, discovery snapshot invalidated")
	})
}
