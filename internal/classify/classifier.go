// pattern: Functional Core

// Package classify decides from a directory's immediate children whether the
// directory looks like a project.
package classify

import (
	"strings"

	"projsync/internal/fsys"
)

// DefaultMarkers are lowercase substrings of file or directory names that
// identify a project root: build manifests, lockfiles, VCS metadata, docs.
var DefaultMarkers = []string{
	"pom.xml",
	"build.gradle",
	"package.json",
	"requirements.txt",
	"cargo.toml",
	"go.mod",
	"composer.json",
	"gemfile",
	"makefile",
	".sln",
	".csproj",
	".vcxproj",
	"readme",
	"license",
	".gitignore",
	".git",
}

// Reason names the rule that decided a verdict.
type Reason string

const (
	ReasonParentFolder Reason = "parent-folder"
	ReasonMarker       Reason = "marker"
	ReasonManyFiles    Reason = "multiple-files"
	ReasonLeaf         Reason = "leaf-with-files"
	ReasonInconclusive Reason = "inconclusive"
)

// Classifier applies the project heuristic.
type Classifier struct {
	markers []string
}

// New returns a classifier using DefaultMarkers plus any extra markers.
func New(extra ...string) *Classifier {
	markers := make([]string, 0, len(DefaultMarkers)+len(extra))
	markers = append(markers, DefaultMarkers...)
	for _, m := range extra {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			markers = append(markers, m)
		}
	}
	return &Classifier{markers: markers}
}

// LooksLikeProject reports whether a directory with the given children
// should be proposed as a project.
func (c *Classifier) LooksLikeProject(children []fsys.Entry) bool {
	ok, _ := c.Verdict(children)
	return ok
}

// Verdict is LooksLikeProject plus the rule that decided it.
// Rules are evaluated in order and the first match wins.
func (c *Classifier) Verdict(children []fsys.Entry) (bool, Reason) {
	dirs, files := fsys.Counts(children)

	// Mostly subfolders: an organizational parent, not a project.
	if dirs > 2 && files <= 1 {
		return false, ReasonParentFolder
	}

	for _, child := range children {
		if c.IsMarker(child.Name) {
			return true, ReasonMarker
		}
	}

	if files >= 2 {
		return true, ReasonManyFiles
	}

	if dirs == 0 && files > 0 {
		return true, ReasonLeaf
	}

	return false, ReasonInconclusive
}

// IsMarker reports whether name contains a project marker, ignoring case.
func (c *Classifier) IsMarker(name string) bool {
	lower := strings.ToLower(name)
	for _, m := range c.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
