// pattern: Imperative Shell

// Package reconcile compares the registry against the directory tree and
// turns the differences into registry mutations chosen by a Resolver.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"projsync/internal/discovery"
	"projsync/internal/fsys"
	"projsync/internal/logging"
	"projsync/internal/pathnorm"
	"projsync/internal/registry"
)

// Scanner proposes unregistered directories. *discovery.Scanner implements it.
type Scanner interface {
	Scan(ctx context.Context, registered pathnorm.Set) ([]discovery.Candidate, error)
}

// Mismatch is a record whose directory exists under a different name.
type Mismatch struct {
	Record     registry.Record `json:"record"`
	ActualName string          `json:"actual_name"`
}

// Result holds the three disjoint sets computed from one registry snapshot.
type Result struct {
	ID           string                `json:"id"`
	StartedAt    time.Time             `json:"started_at"`
	Registered   int                   `json:"registered"`
	Orphaned     []registry.Record     `json:"orphaned"`
	Mismatched   []Mismatch            `json:"mismatched"`
	Unregistered []discovery.Candidate `json:"unregistered"`
}

// Counts is the size of each result set.
type Counts struct {
	Orphaned     int `json:"orphaned"`
	Mismatched   int `json:"mismatched"`
	Unregistered int `json:"unregistered"`
}

// Counts returns the size of each set.
func (r *Result) Counts() Counts {
	return Counts{
		Orphaned:     len(r.Orphaned),
		Mismatched:   len(r.Mismatched),
		Unregistered: len(r.Unregistered),
	}
}

// Empty reports whether the registry and the tree agree.
func (r *Result) Empty() bool {
	return len(r.Orphaned) == 0 && len(r.Mismatched) == 0 && len(r.Unregistered) == 0
}

// Reconciler computes Results. It never mutates the registry itself; see Apply.
type Reconciler struct {
	Registry registry.Registry
	FS       fsys.FS
	Scanner  Scanner
	Logger   *logging.ScopedLogger
}

// New creates a reconciler. A nil logger discards output.
func New(reg registry.Registry, fs fsys.FS, scanner Scanner, logger *logging.ScopedLogger) *Reconciler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Reconciler{Registry: reg, FS: fs, Scanner: scanner, Logger: logger}
}

// Reconcile takes one registry snapshot, checks every record against the
// filesystem and scans for unregistered projects.
//
// Records with a blank path are ignored. A record whose existence cannot be
// determined is logged and treated as registered but neither orphaned nor
// mismatched. Orphaned paths are not passed to the scanner, so they never
// suppress real directories.
//
// If the scan is cancelled the partial Result is returned with the context
// error.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	snapshot, err := r.Registry.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry snapshot: %w", err)
	}

	result := &Result{
		ID:           uuid.NewString(),
		StartedAt:    time.Now(),
		Orphaned:     []registry.Record{},
		Mismatched:   []Mismatch{},
		Unregistered: []discovery.Candidate{},
	}
	logger := r.Logger.With("pass", result.ID)

	registered := pathnorm.NewSet()
	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		normalized := pathnorm.Normalize(rec.RelativePath)
		if pathnorm.IsBlank(normalized) {
			logger.Debug("record without path ignored", "id", rec.ID, "name", rec.Name)
			continue
		}

		exists, err := r.FS.DirExists(normalized)
		switch {
		case err != nil:
			logger.Warn("cannot check project directory", "id", rec.ID, "path", normalized, "error", err)
		case !exists:
			result.Orphaned = append(result.Orphaned, rec)
			continue
		default:
			if actual := pathnorm.Base(normalized); actual != rec.Name {
				result.Mismatched = append(result.Mismatched, Mismatch{Record: rec, ActualName: actual})
			}
		}
		registered.Add(normalized)
	}
	result.Registered = registered.Len()

	candidates, err := r.Scanner.Scan(ctx, registered)
	if candidates != nil {
		result.Unregistered = candidates
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}

	c := result.Counts()
	logger.Info("reconciled",
		"records", len(snapshot),
		"orphaned", c.Orphaned,
		"mismatched", c.Mismatched,
		"unregistered", c.Unregistered,
	)
	return result, nil
}

// Apply writes the mutations chosen in res to the registry, logging each
// outcome. It fails only when res still has unanswered requests.
func (r *Reconciler) Apply(ctx context.Context, res *Resolution) ([]Outcome, error) {
	outcomes, err := res.Apply(ctx, r.Registry)
	if err != nil {
		return nil, err
	}
	for _, o := range outcomes {
		if o.Err != nil {
			r.Logger.Warn("mutation failed", "op", string(o.Mutation.Op), "id", o.Mutation.ID, "path", o.Mutation.Path, "error", o.Err)
			continue
		}
		r.Logger.Info("mutation applied", "op", string(o.Mutation.Op), "id", o.Mutation.ID, "path", o.Mutation.Path, "name", o.Mutation.Name)
	}
	sum := Summarize(outcomes)
	r.Logger.Info("pass applied",
		"pass", res.Result().ID,
		"deleted", sum.Deleted,
		"renamed", sum.Renamed,
		"registered", sum.Registered,
		"failed", sum.Failed,
	)
	return outcomes, nil
}
