// pattern: Functional Core

// Package pathnorm canonicalizes root-relative project paths so that two
// spellings of the same directory compare equal.
package pathnorm

import (
	"path"
	"slices"
	"strings"
)

// Normalize converts a relative path into its comparable form: forward
// slashes, no leading "." / "/" / "\", no trailing "/".
// Blank input is returned unchanged; callers must reject it before using it as a key.
func Normalize(p string) string {
	if strings.TrimSpace(p) == "" {
		return p
	}

	// Stripping can expose whitespace ("/ a", "a /"), so repeat until stable.
	n := p
	for {
		next := normalizeOnce(n)
		if next == n {
			return n
		}
		n = next
	}
}

func normalizeOnce(p string) string {
	n := strings.TrimSpace(p)
	for {
		switch {
		case strings.HasPrefix(n, "./"), strings.HasPrefix(n, `.\`):
			n = n[2:]
		case strings.HasPrefix(n, "."), strings.HasPrefix(n, "/"), strings.HasPrefix(n, `\`):
			n = n[1:]
		default:
			n = strings.ReplaceAll(n, `\`, "/")
			return strings.TrimRight(n, "/")
		}
	}
}

// Canonical normalizes p and resolves "." and ".." segments and repeated
// slashes, so every spelling of a directory below the root maps to one key.
// ok is false when p climbs above the root. Blank input is returned unchanged.
func Canonical(p string) (canonical string, ok bool) {
	if IsBlank(p) {
		return p, true
	}
	c := path.Clean(Normalize(p))
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", false
	}
	if c == "." {
		return "", true
	}
	return Normalize(c), true
}

// IsBlank reports whether p normalizes to nothing usable as a registry key.
func IsBlank(p string) bool {
	return strings.TrimSpace(Normalize(p)) == ""
}

// Base returns the final segment of a normalized path.
func Base(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// Join appends name to a relative directory path using "/".
func Join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// IsAncestor reports whether ancestor is a strict ancestor of descendant.
// Both arguments must already be normalized.
func IsAncestor(ancestor, descendant string) bool {
	if ancestor == descendant {
		return false
	}
	return strings.HasPrefix(descendant, ancestor+"/")
}

// IsAncestorOrDescendant reports whether a lies above or below b.
// Equal paths are not related.
func IsAncestorOrDescendant(a, b string) bool {
	return IsAncestor(a, b) || IsAncestor(b, a)
}

// Set holds normalized paths.
type Set map[string]struct{}

// NewSet builds a set from already normalized paths.
func NewSet(paths ...string) Set {
	s := make(Set, len(paths))
	for _, p := range paths {
		s.Add(p)
	}
	return s
}

// Add inserts p.
func (s Set) Add(p string) {
	s[p] = struct{}{}
}

// Has reports whether p is in the set.
func (s Set) Has(p string) bool {
	_, ok := s[p]
	return ok
}

// Len returns the number of paths.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the paths in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Related reports whether p equals, contains, or is contained in any path of
// the set.
func (s Set) Related(p string) bool {
	if s.Has(p) {
		return true
	}
	for reg := range s {
		if IsAncestorOrDescendant(p, reg) {
			return true
		}
	}
	return false
}
