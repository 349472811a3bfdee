// pattern: Functional Core

package registry

import (
	"errors"
	"time"
)

// Defaults applied to newly registered projects.
const (
	DefaultStatus   = "In Development"
	DefaultPriority = 3
)

// TimeLayout is the format of StartDate and LastModified.
const TimeLayout = time.RFC3339

// Errors returned by registry implementations.
var (
	ErrNotFound      = errors.New("project not found")
	ErrEmptyPath     = errors.New("project relative path is empty")
	ErrDuplicatePath = errors.New("project path already registered")
	ErrEmptyName     = errors.New("project name is empty")
	ErrOutsideRoot   = errors.New("project path is outside the root")
)

// Record is one registered project.
type Record struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	RelativePath string `json:"relative_path"`
	Description  string `json:"description,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	Status       string `json:"status,omitempty"`
	Category     string `json:"category,omitempty"`
	Priority     int    `json:"priority"`
	DirExists    bool   `json:"dir_exists"`
}

// NewRecord holds the caller-supplied fields of a project to create.
// Zero Status and Priority are replaced with the defaults.
type NewRecord struct {
	Name         string
	RelativePath string
	Description  string
	Status       string
	Category     string
	Priority     int
	DirExists    bool
}

func (n NewRecord) withDefaults() NewRecord {
	if n.Status == "" {
		n.Status = DefaultStatus
	}
	if n.Priority == 0 {
		n.Priority = DefaultPriority
	}
	return n
}
