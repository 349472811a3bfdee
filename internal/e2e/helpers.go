//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"projsync/internal/config"
	"projsync/internal/registry"
	"projsync/internal/session"
	"projsync/internal/web"
)

// Workspace is a config directory and project root on disk.
type Workspace struct {
	ConfigDir string
	Root      string
}

// NewWorkspace writes a config template pointing at a fresh root.
func NewWorkspace(t *testing.T) Workspace {
	t.Helper()
	ws := Workspace{ConfigDir: t.TempDir(), Root: t.TempDir()}
	if _, err := config.WriteTemplate(ws.ConfigDir, ws.Root, false); err != nil {
		t.Fatalf("WriteTemplate() error = %v", err)
	}
	return ws
}

// Open opens a session on the workspace and closes it at cleanup.
func (ws Workspace) Open(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.Open(context.Background(), session.Options{ConfigDir: ws.ConfigDir})
	if err != nil {
		t.Fatalf("session.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Mkdir creates directories below the root, each with a go.mod marker.
func (ws Workspace) Mkdir(t *testing.T, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		dir := filepath.Join(ws.Root, filepath.FromSlash(rel))
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// Remove deletes a directory below the root.
func (ws Workspace) Remove(t *testing.T, rel string) {
	t.Helper()
	if err := os.RemoveAll(filepath.Join(ws.Root, filepath.FromSlash(rel))); err != nil {
		t.Fatal(err)
	}
}

// StartServer serves the session's engine on a loopback port and returns
// the base URL.
func StartServer(t *testing.T, s *session.Session) (*web.Server, string) {
	t.Helper()
	srv := web.New(web.Config{Bind: "127.0.0.1", Port: 0}, s.Engine, s.Logs)
	ln, err := srv.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Serve() error = %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, "http://" + srv.Addr()
}

// WaitFor polls cond until it holds or timeout passes.
func WaitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Paths returns the session's records keyed by relative path.
func Paths(t *testing.T, s *session.Session) map[string]registry.Record {
	t.Helper()
	recs, err := s.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	out := make(map[string]registry.Record, len(recs))
	for _, r := range recs {
		out[r.RelativePath] = r
	}
	return out
}
