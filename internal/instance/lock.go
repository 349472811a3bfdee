// pattern: Imperative Shell

// Package instance enforces a single running projsync process per data
// directory and lets other invocations reach it over HTTP.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

const (
	lockFileName = "projsync.lock"
	portFileName = "projsync.port"
)

// ErrLocked means another projsync process holds the data directory.
var ErrLocked = errors.New("another projsync instance is already running")

// Lock acquires an exclusive file lock for single-instance enforcement.
// Returns the flock handle (caller must defer Cleanup) or ErrLocked if
// another instance already holds the lock.
func Lock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return fl, nil
}

// WritePort writes the web server's listener address to the port file.
func WritePort(dataDir, addr string) error {
	return os.WriteFile(filepath.Join(dataDir, portFileName), []byte(addr), 0600)
}

// Cleanup removes the port file and releases the file lock.
func Cleanup(dataDir string, fl *flock.Flock) {
	_ = os.Remove(filepath.Join(dataDir, portFileName))
	if fl != nil {
		_ = fl.Unlock()
	}
}

// RemoveStale deletes lock and port files left by a crashed process.
// It refuses while a live process holds the lock.
func RemoveStale(dataDir string) ([]string, error) {
	fl, err := Lock(dataDir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fl.Unlock() }()

	var removed []string
	portPath := filepath.Join(dataDir, portFileName)
	if err := os.Remove(portPath); err == nil {
		removed = append(removed, portPath)
	}
	lockPath := filepath.Join(dataDir, lockFileName)
	if err := os.Remove(lockPath); err == nil {
		removed = append(removed, lockPath)
	}
	return removed, nil
}
