// pattern: Imperative Shell

package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

const healthTimeout = 2 * time.Second

// Discovery failures, from no process at all to a process that stopped answering.
var (
	ErrNotRunning   = errors.New("no running projsync instance")
	ErrNoAPI        = errors.New("the running projsync instance serves no API (stop it or run 'projsync serve')")
	ErrUnresponsive = errors.New("the running projsync instance is not responding (try 'projsync cleanup')")
)

// Running reports whether another process holds the lock on dataDir.
func Running(dataDir string) (bool, error) {
	fl := flock.New(filepath.Join(dataDir, lockFileName))
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("check lock: %w", err)
	}
	if locked {
		_ = fl.Unlock()
		return false, nil
	}
	return true, nil
}

// ReadPort returns the listener address published with WritePort.
func ReadPort(dataDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, portFileName))
	if err != nil {
		return "", err
	}
	addr := strings.TrimSpace(string(data))
	if addr == "" {
		return "", errors.New("port file is empty")
	}
	return addr, nil
}

// Discover returns a client for the server holding dataDir's lock, after a
// health check against its published address.
func Discover(dataDir string) (*Client, error) {
	running, err := Running(dataDir)
	if err != nil {
		return nil, err
	}
	if !running {
		return nil, ErrNotRunning
	}

	addr, err := ReadPort(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoAPI, err)
	}

	baseURL := "http://" + addr
	if err := NewClientWithTimeout(baseURL, healthTimeout).Health(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnresponsive, err)
	}
	return NewClient(baseURL), nil
}
