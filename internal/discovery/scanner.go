// pattern: Imperative Shell

// Package discovery walks the project root and proposes directories that look
// like projects but are not yet in the registry.
package discovery

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"projsync/internal/classify"
	"projsync/internal/fsys"
	"projsync/internal/logging"
	"projsync/internal/pathnorm"
)

// Options configures a Scanner. Zero values select the defaults.
type Options struct {
	Classifier *classify.Classifier
	// Excludes are directory base names skipped in addition to DefaultExcludes.
	Excludes []string
	// Globs are doublestar patterns matched against normalized paths.
	Globs  []string
	Logger *logging.ScopedLogger
}

// Scanner discovers unregistered projects below a root.
type Scanner struct {
	fs         fsys.FS
	classifier *classify.Classifier
	excluded   map[string]struct{}
	globs      []string
	logger     *logging.ScopedLogger
}

// NewScanner creates a scanner over fs. It fails only on a malformed glob.
func NewScanner(fs fsys.FS, opts Options) (*Scanner, error) {
	for _, g := range opts.Globs {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid exclude pattern %q", g)
		}
	}

	excluded := make(map[string]struct{}, len(DefaultExcludes)+len(opts.Excludes))
	for _, name := range DefaultExcludes {
		excluded[name] = struct{}{}
	}
	for _, name := range opts.Excludes {
		if name = strings.TrimSpace(name); name != "" {
			excluded[name] = struct{}{}
		}
	}

	s := &Scanner{
		fs:         fs,
		classifier: opts.Classifier,
		excluded:   excluded,
		globs:      slices.Clone(opts.Globs),
		logger:     opts.Logger,
	}
	if s.classifier == nil {
		s.classifier = classify.New()
	}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	return s, nil
}

// Scan walks the tree and returns candidates sorted by path. Directories that
// equal, contain or sit inside a registered path are never proposed.
//
// With an empty registered set only leaf directories directly below the root
// are proposed and classification is bypassed.
//
// If ctx is cancelled between directory visits, the candidates found so far
// are returned together with ctx.Err().
func (s *Scanner) Scan(ctx context.Context, registered pathnorm.Set) ([]Candidate, error) {
	cands, _, err := s.ScanStats(ctx, registered)
	return cands, err
}

// ScanStats is Scan plus walk statistics.
func (s *Scanner) ScanStats(ctx context.Context, registered pathnorm.Set) ([]Candidate, Stats, error) {
	w := &walk{
		Scanner:    s,
		ctx:        ctx,
		registered: registered,
		seen:       make(map[string]bool),
	}

	rootEntries := w.list("")
	if registered.Len() == 0 {
		w.bootstrap(rootEntries)
	} else {
		w.descend("", rootEntries)
	}

	slices.SortFunc(w.out, func(a, b Candidate) int { return strings.Compare(a.Path, b.Path) })
	s.logger.Debug("scan finished",
		"candidates", len(w.out),
		"visited", w.stats.Visited,
		"skipped", w.stats.Skipped,
		"unreadable", w.stats.Unreadable,
		"suppressed", w.stats.Suppressed,
	)
	return w.out, w.stats, w.err
}

// skip reports whether a directory is excluded from the walk entirely.
func (s *Scanner) skip(name, normalized string) bool {
	if _, ok := s.excluded[name]; ok {
		return true
	}
	for _, g := range s.globs {
		if ok, _ := doublestar.Match(g, normalized); ok {
			return true
		}
	}
	return false
}

// walk holds the state of one Scan call.
type walk struct {
	*Scanner
	ctx        context.Context
	registered pathnorm.Set
	seen       map[string]bool
	out        []Candidate
	stats      Stats
	err        error
}

// list returns the children of rel, or nil when rel cannot be listed.
func (w *walk) list(rel string) []fsys.Entry {
	w.stats.Visited++
	entries, err := w.fs.ReadDir(rel)
	if err != nil {
		w.stats.Unreadable++
		w.logger.Warn("cannot list directory", "path", rel, "error", err)
		return nil
	}
	return entries
}

// cancelled records the context error once and reports whether to stop.
func (w *walk) cancelled() bool {
	if w.err != nil {
		return true
	}
	if err := w.ctx.Err(); err != nil {
		w.err = err
		return true
	}
	return false
}

func (w *walk) emit(normalized string, reason classify.Reason) {
	if w.seen[normalized] {
		return
	}
	w.seen[normalized] = true
	w.out = append(w.out, Candidate{
		Path:   normalized,
		Name:   pathnorm.Base(normalized),
		Reason: reason,
	})
	w.logger.Debug("candidate", "path", normalized, "reason", string(reason))
}

// descend visits every subdirectory of rel in name order.
func (w *walk) descend(rel string, entries []fsys.Entry) {
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if w.cancelled() {
			return
		}
		w.visit(joinRaw(rel, e.Name), e.Name)
	}
}

// visit handles one directory in pre-order.
func (w *walk) visit(rel, name string) {
	normalized := pathnorm.Normalize(rel)
	if w.skip(name, normalized) {
		w.stats.Skipped++
		return
	}

	children := w.list(rel)

	switch {
	case pathnorm.IsBlank(normalized):
	case w.registered.Has(normalized):
	case w.registered.Related(normalized):
		w.stats.Suppressed++
	default:
		if ok, reason := w.classifier.Verdict(children); ok {
			w.emit(normalized, reason)
		} else {
			w.logger.Debug("not a project", "path", normalized, "reason", string(reason))
		}
	}

	w.descend(rel, children)
}

// bootstrap proposes every leaf directory directly below the root.
func (w *walk) bootstrap(rootEntries []fsys.Entry) {
	for _, e := range rootEntries {
		if !e.IsDir() {
			continue
		}
		if w.cancelled() {
			return
		}
		normalized := pathnorm.Normalize(e.Name)
		if w.skip(e.Name, normalized) || pathnorm.IsBlank(normalized) {
			w.stats.Skipped++
			continue
		}
		dirs, _ := fsys.Counts(w.list(e.Name))
		if dirs == 0 {
			w.emit(normalized, ReasonBootstrap)
		}
	}
}

// joinRaw builds the raw relative path the filesystem is addressed with.
func joinRaw(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
