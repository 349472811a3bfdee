// pattern: Imperative Shell

// Package fsys is the read-only view of the project root used by the scanner
// and the reconciler. Paths are root-relative and slash separated.
package fsys

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"strings"
)

// Kind classifies a directory child.
type Kind int

const (
	KindOther Kind = iota
	KindDir
	KindFile
)

// String returns a short label for logs.
func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindFile:
		return "file"
	default:
		return "other"
	}
}

// Entry is one immediate child of a directory.
type Entry struct {
	Name string
	Kind Kind
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == KindDir }

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool { return e.Kind == KindFile }

// FS lists and probes directories below a root. Every call fails
// independently of the others.
type FS interface {
	// DirExists reports whether rel names an existing directory.
	// A missing path is (false, nil); other failures are returned as errors.
	DirExists(rel string) (bool, error)
	// ReadDir returns the immediate children of rel sorted by name.
	ReadDir(rel string) ([]Entry, error)
}

// dirFS adapts an io/fs.FS.
type dirFS struct {
	fsys fs.FS
}

// New wraps an io/fs.FS. The root directory is addressed as "" or ".".
func New(fsys fs.FS) FS {
	return &dirFS{fsys: fsys}
}

// OS returns an FS rooted at the given directory on disk.
func OS(root string) FS {
	return New(os.DirFS(root))
}

func (d *dirFS) DirExists(rel string) (bool, error) {
	info, err := fs.Stat(d.fsys, fsPath(rel))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (d *dirFS) ReadDir(rel string) ([]Entry, error) {
	dirEntries, err := fs.ReadDir(d.fsys, fsPath(rel))
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entries = append(entries, Entry{Name: de.Name(), Kind: kindOf(de.Type())})
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return entries, nil
}

// kindOf does not follow symlinks, so linked directories are never walked.
func kindOf(mode fs.FileMode) Kind {
	switch {
	case mode.IsDir():
		return KindDir
	case mode.IsRegular():
		return KindFile
	default:
		return KindOther
	}
}

// fsPath maps a root-relative path onto io/fs naming rules.
func fsPath(rel string) string {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return "."
	}
	return rel
}

// Counts tallies directories and regular files among entries.
func Counts(entries []Entry) (dirs, files int) {
	for _, e := range entries {
		switch e.Kind {
		case KindDir:
			dirs++
		case KindFile:
			files++
		}
	}
	return dirs, files
}
