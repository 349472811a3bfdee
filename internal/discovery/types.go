// pattern: Functional Core

package discovery

import "projsync/internal/classify"

// ReasonBootstrap marks a candidate proposed because the registry was empty
// and the directory is a leaf directly below the root.
const ReasonBootstrap classify.Reason = "bootstrap-leaf"

// DefaultExcludes are directory names that are never projects nor parents of
// projects: VCS metadata, build output, dependency caches and editor state.
var DefaultExcludes = []string{
	".git",
	"build",
	".idea",
	"out",
	"node_modules",
	"venv",
	"__pycache__",
	".gradle",
	".vscode",
	".svn",
	".hg",
	".DS_Store",
	"target",
	"dist",
	"vendor",
	".cache",
}

// Candidate is a directory proposed for registration.
type Candidate struct {
	Path   string          `json:"path"`   // Normalized root-relative path
	Name   string          `json:"name"`   // Final path segment, used as the record name
	Reason classify.Reason `json:"reason"` // Rule that accepted the directory
}

// Stats summarizes one walk.
type Stats struct {
	Visited    int // Directories listed
	Skipped    int // Directories excluded by name or glob
	Unreadable int // Directories that could not be listed
	Suppressed int // Directories related to a registered path
}
