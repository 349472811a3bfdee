// pattern: Imperative Shell

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrExists is returned by WriteTemplate when the file is already present.
var ErrExists = errors.New("config file already exists")

// Template is the commented starter config written by `projsync config init`.
const Template = `# projsync configuration

# Directory that holds your projects. Registered paths are relative to it.
root: %s

# SQLite registry. Defaults to projects.db next to this file.
# database: ~/.config/projsync/projects.db

log_level: info
theme: mocha

# Doublestar patterns (relative to root) that are never scanned.
# exclude:
#   - "archive/**"

# Extra directory names that are never scanned.
# exclude_names: [scratch]

# Extra file names that mark a directory as a project.
# markers: [flake.nix, pyproject.toml]

# Bulk choices for unattended passes (watch, reconcile --policy).
policy:
  orphaned: skip
  mismatched: skip
  unregistered: skip

watch:
  debounce: 2s
  poll: 1m

web:
  bind: 127.0.0.1
  port: 0
`

// WriteTemplate writes the starter config to dir/config.yaml with the given
// root. An existing file is left alone unless force is set.
func WriteTemplate(dir, root string, force bool) (string, error) {
	if root == "" {
		root = "~/projects"
	}
	path := filepath.Join(dir, FileName)

	if !force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return path, err
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf(Template, root)), 0644); err != nil {
		return path, err
	}
	return path, nil
}
