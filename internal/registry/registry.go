// pattern: Imperative Shell

// Package registry holds the persisted set of known projects. The
// reconciliation engine reads snapshots from it and requests mutations; it
// never touches the filesystem.
package registry

import (
	"context"
	"fmt"
	"strings"

	"projsync/internal/pathnorm"
)

// Registry is the storage collaborator of the reconciliation engine.
type Registry interface {
	// Snapshot returns every record, ordered by ID.
	Snapshot(ctx context.Context) ([]Record, error)
	// Root returns the directory the relative paths are resolved against.
	Root() string
	// Create stores a new record. It never creates directories.
	Create(ctx context.Context, rec NewRecord) (Record, error)
	// Delete removes a record permanently.
	Delete(ctx context.Context, id int64) error
	// Rename changes the display name only.
	Rename(ctx context.Context, id int64, name string) error
}

// prepare validates and normalizes a record about to be created.
func prepare(rec NewRecord) (NewRecord, error) {
	if pathnorm.IsBlank(rec.RelativePath) {
		return rec, ErrEmptyPath
	}
	canonical, ok := pathnorm.Canonical(rec.RelativePath)
	if !ok {
		return rec, fmt.Errorf("%w: %s", ErrOutsideRoot, rec.RelativePath)
	}
	if canonical == "" {
		return rec, ErrEmptyPath
	}
	rec.RelativePath = canonical
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		rec.Name = pathnorm.Base(rec.RelativePath)
	}
	return rec.withDefaults(), nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyName
	}
	return name, nil
}

func notFound(id int64) error {
	return fmt.Errorf("%w: id %d", ErrNotFound, id)
}
