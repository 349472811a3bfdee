// pattern: Imperative Shell

// Package watch runs a callback when the directory tree under the project
// root changes, debouncing bursts of filesystem events.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"projsync/internal/fsys"
	"projsync/internal/logging"
)

// Trigger is called once per settled burst of changes. reason is "startup",
// "change" or "poll".
type Trigger func(ctx context.Context, reason string) error

// Options configures a Watcher. Zero values select the defaults.
type Options struct {
	Debounce time.Duration // quiet period before triggering (default 2s)
	Poll     time.Duration // polling safeguard interval (default 1m)
	// SkipStartup suppresses the initial trigger when Run begins.
	SkipStartup bool
	Logger      *logging.ScopedLogger
}

// Watcher watches the root and its first-level directories. Deeper changes
// surface through the polling safeguard, which compares a fingerprint of the
// top two levels of the tree.
type Watcher struct {
	root    string
	fs      fsys.FS
	trigger Trigger
	opts    Options
	logger  *logging.ScopedLogger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	watched map[string]bool
	closed  bool
	last    string
}

// New creates a watcher for root.
func New(root string, trigger Trigger, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.Poll <= 0 {
		opts.Poll = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	return &Watcher{
		root:    filepath.Clean(root),
		fs:      fsys.OS(root),
		trigger: trigger,
		opts:    opts,
		logger:  logger,
		watcher: watcher,
		watched: make(map[string]bool),
	}, nil
}

// Run blocks until ctx is cancelled. Trigger errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.watcher.Add(w.root); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	w.watchChildren()
	w.logger.Info("watching", "root", w.root, "dirs", w.watchCount(), "debounce", w.opts.Debounce.String())

	if !w.opts.SkipStartup {
		w.fire(ctx, "startup")
	} else {
		w.last = Fingerprint(w.fs)
	}

	debounce := time.NewTimer(w.opts.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	ticker := time.NewTicker(w.opts.Poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.handle(event) {
				continue
			}
			debounce.Reset(w.opts.Debounce)

		case <-debounce.C:
			w.fire(ctx, "change")

		case <-ticker.C:
			// Polling safeguard for changes fsnotify cannot see (network
			// mounts, nested directories).
			if Fingerprint(w.fs) != w.last {
				w.fire(ctx, "poll")
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// handle updates the watch list and reports whether the event is relevant.
func (w *Watcher) handle(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}

	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == w.root {
		w.addDir(event.Name)
	}
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.watched, event.Name)
		w.mu.Unlock()
	}
	w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
	return true
}

func (w *Watcher) fire(ctx context.Context, reason string) {
	w.last = Fingerprint(w.fs)
	if err := w.trigger(ctx, reason); err != nil {
		w.logger.Warn("triggered pass failed", "reason", reason, "error", err)
	}
}

// watchChildren adds every visible first-level directory.
func (w *Watcher) watchChildren() {
	entries, err := w.fs.ReadDir("")
	if err != nil {
		w.logger.Warn("cannot list root", "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name, ".") {
			w.addDir(filepath.Join(w.root, e.Name))
		}
	}
}

// addDir watches path if it is a directory not yet watched. Files and
// vanished paths are ignored.
func (w *Watcher) addDir(path string) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return
	}
	if ok, err := w.fs.DirExists(filepath.ToSlash(rel)); err != nil || !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.watched[path] {
		return
	}
	if err := w.watcher.Add(path); err != nil {
		w.logger.Warn("cannot watch directory", "path", path, "error", err)
		return
	}
	w.watched[path] = true
}

func (w *Watcher) watchCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	return w.watcher.Close()
}

// Fingerprint summarizes the names of the first two directory levels of fs.
// Unreadable directories contribute nothing.
func Fingerprint(fs fsys.FS) string {
	var sb strings.Builder
	top, _ := fs.ReadDir("")
	for _, e := range top {
		if !e.IsDir() || strings.HasPrefix(e.Name, ".") {
			continue
		}
		sb.WriteString(e.Name)
		sb.WriteByte('/')
		children, _ := fs.ReadDir(e.Name)
		for _, c := range children {
			if c.IsDir() {
				sb.WriteString(c.Name)
				sb.WriteByte(',')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
