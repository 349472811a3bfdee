package instance

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLockAndCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	// First lock should succeed and create the directory
	fl, err := Lock(dir)
	if err != nil {
		t.Fatalf("Lock() failed: %v", err)
	}

	// Second lock should fail
	if _, err := Lock(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Lock() error = %v, want ErrLocked", err)
	}

	if err := WritePort(dir, "127.0.0.1:8080"); err != nil {
		t.Fatalf("WritePort() failed: %v", err)
	}
	portPath := filepath.Join(dir, portFileName)
	data, err := os.ReadFile(portPath)
	if err != nil {
		t.Fatalf("port file not found: %v", err)
	}
	if string(data) != "127.0.0.1:8080" {
		t.Fatalf("port file content = %q, want %q", string(data), "127.0.0.1:8080")
	}

	// Cleanup should remove port file and release lock
	Cleanup(dir, fl)

	if _, err := os.Stat(portPath); !os.IsNotExist(err) {
		t.Fatal("port file should have been removed after Cleanup")
	}

	fl2, err := Lock(dir)
	if err != nil {
		t.Fatalf("Lock() after Cleanup should succeed: %v", err)
	}
	Cleanup(dir, fl2)
}

func TestRemoveStale(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, portFileName), []byte("127.0.0.1:1"), 0600); err != nil {
		t.Fatal(err)
	}

	removed, err := RemoveStale(dir)
	if err != nil {
		t.Fatalf("RemoveStale() failed: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("expected port and lock files removed, got %v", removed)
	}
}

func TestRemoveStale_RefusesWhileRunning(t *testing.T) {
	dir := t.TempDir()
	fl, err := Lock(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer Cleanup(dir, fl)

	if _, err := RemoveStale(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("RemoveStale() error = %v, want ErrLocked", err)
	}
}
