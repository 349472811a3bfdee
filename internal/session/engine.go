// pattern: Imperative Shell

// Package session assembles the reconciliation engine from configuration and
// owns the resources a running projsync process holds.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"projsync/internal/classify"
	"projsync/internal/config"
	"projsync/internal/discovery"
	"projsync/internal/fsys"
	"projsync/internal/logging"
	"projsync/internal/pathnorm"
	"projsync/internal/reconcile"
	"projsync/internal/registry"
)

// ErrOutsideRoot is returned when a path to add escapes the project root.
var ErrOutsideRoot = registry.ErrOutsideRoot

// recentLogs is implemented by logging.Manager and logging.TestLogManager.
type recentLogs interface {
	Recent() []logging.LogEntry
}

// Engine serializes reconciliation passes and registry edits over one
// registry. Hosts (CLI, watcher, web server) share a single Engine.
type Engine struct {
	mu         sync.Mutex
	registry   registry.Registry
	reconciler *reconcile.Reconciler
	policy     reconcile.Policy
	logs       logging.LoggerProvider
	logger     *logging.ScopedLogger
}

// NewEngine builds the scanner and reconciler described by cfg.
func NewEngine(cfg config.Config, reg registry.Registry, fs fsys.FS, logs logging.LoggerProvider) (*Engine, error) {
	policy, err := cfg.ResolutionPolicy()
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	scanner, err := discovery.NewScanner(fs, discovery.Options{
		Classifier: classify.New(cfg.Markers...),
		Excludes:   cfg.ExcludeNames,
		Globs:      cfg.Exclude,
		Logger:     logs.For("scan"),
	})
	if err != nil {
		return nil, err
	}
	return &Engine{
		registry:   reg,
		reconciler: reconcile.New(reg, fs, scanner, logs.For("reconcile")),
		policy:     policy,
		logs:       logs,
		logger:     logs.For("registry"),
	}, nil
}

// Registry returns the underlying registry.
func (e *Engine) Registry() registry.Registry {
	return e.registry
}

// Policy returns the configured unattended policy.
func (e *Engine) Policy() reconcile.Policy {
	return e.policy
}

// Snapshot returns every registered project.
func (e *Engine) Snapshot(ctx context.Context) ([]registry.Record, error) {
	return e.registry.Snapshot(ctx)
}

// Reconcile computes a Result without resolving it.
func (e *Engine) Reconcile(ctx context.Context) (*reconcile.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconciler.Reconcile(ctx)
}

// Apply writes the mutations of a completed resolution.
func (e *Engine) Apply(ctx context.Context, res *reconcile.Resolution) ([]reconcile.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconciler.Apply(ctx, res)
}

// Pass runs one full reconciliation with resolver. With dryRun the
// mutations are only planned. The engine lock is held while reconciling and
// while applying, not while resolver waits, so edits made in between land
// first and stale mutations fail per item.
func (e *Engine) Pass(ctx context.Context, resolver reconcile.Resolver, dryRun bool) (*reconcile.Report, error) {
	if dryRun {
		return reconcile.Plan(ctx, e, resolver)
	}
	return reconcile.Pass(ctx, e, resolver)
}

// Add registers rel, creating the directory below the root first when it
// does not exist. Unlike registrations from a pass, this is the one place a
// directory gets created.
func (e *Engine) Add(ctx context.Context, rel, name string) (registry.Record, error) {
	normalized, ok := pathnorm.Canonical(rel)
	if !ok {
		return registry.Record{}, fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	if pathnorm.IsBlank(normalized) {
		return registry.Record{}, registry.ErrEmptyPath
	}
	abs := filepath.Join(e.registry.Root(), filepath.FromSlash(normalized))
	if !withinRoot(e.registry.Root(), abs) {
		return registry.Record{}, fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(abs, 0755); err != nil {
		return registry.Record{}, fmt.Errorf("create project directory: %w", err)
	}
	rec, err := e.registry.Create(ctx, registry.NewRecord{
		Name:         name,
		RelativePath: normalized,
		DirExists:    true,
	})
	if err != nil {
		return registry.Record{}, err
	}
	e.logger.Info("project added", "id", rec.ID, "path", rec.RelativePath, "name", rec.Name)
	return rec, nil
}

// Remove deletes a record. The directory is left alone.
func (e *Engine) Remove(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.registry.Delete(ctx, id); err != nil {
		return err
	}
	e.logger.Info("project removed", "id", id)
	return nil
}

// Recent returns buffered log entries when the provider keeps any.
func (e *Engine) Recent() []logging.LogEntry {
	if r, ok := e.logs.(recentLogs); ok {
		return r.Recent()
	}
	return nil
}

func withinRoot(root, abs string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
