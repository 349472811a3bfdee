package web_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"projsync/internal/config"
	"projsync/internal/fsys"
	"projsync/internal/logging"
	"projsync/internal/reconcile"
	"projsync/internal/registry"
	"projsync/internal/session"
	"projsync/internal/web"
)

type testEnv struct {
	server *web.Server
	ts     *httptest.Server
	reg    *registry.Memory
	logs   *logging.TestLogManager
	root   string
}

func newTestEnv(t *testing.T, seed ...registry.Record) *testEnv {
	t.Helper()
	root := t.TempDir()
	reg := registry.NewMemory(root, seed...)
	lm := logging.NewTestLogManager(100)
	engine, err := session.NewEngine(config.DefaultConfig(), reg, fsys.OS(root), lm)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	s := web.New(web.Config{Bind: "127.0.0.1", Port: 0}, engine, lm)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: s, ts: ts, reg: reg, logs: lm, root: root}
}

func (e *testEnv) mkdir(t *testing.T, rels ...string) {
	t.Helper()
	for _, rel := range rels {
		if err := os.MkdirAll(filepath.Join(e.root, rel), 0755); err != nil {
			t.Fatal(err)
		}
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body error = %v", err)
	}
	return resp.StatusCode, data
}

func (e *testEnv) records(t *testing.T) []registry.Record {
	t.Helper()
	recs, err := e.reg.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestServer_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	s := env.server

	ln, err := s.Listen()
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ln)
	}()

	if strings.HasSuffix(s.Addr(), ":0") {
		t.Errorf("Addr() = %q, want the bound port", s.Addr())
	}

	resp, err := http.Get("http://" + s.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != `{"status":"ok"}` {
		t.Errorf("health = %d %q", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-done; err != http.ErrServerClosed {
		t.Errorf("Serve() = %v, want http.ErrServerClosed", err)
	}
}

func TestProjects_CreateListDelete(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.do(t, http.MethodPost, "/api/projects", `{"path":"clients/acme"}`)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", status, body)
	}
	rec := decode[registry.Record](t, body)
	if rec.Name != "acme" || rec.RelativePath != "clients/acme" || !rec.DirExists {
		t.Errorf("unexpected record %+v", rec)
	}
	if _, err := os.Stat(filepath.Join(env.root, "clients", "acme")); err != nil {
		t.Errorf("expected project directory to be created: %v", err)
	}

	status, body = env.do(t, http.MethodGet, "/api/projects", "")
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if recs := decode[[]registry.Record](t, body); len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}

	status, body = env.do(t, http.MethodDelete, "/api/projects/"+strconv.FormatInt(rec.ID, 10), "")
	if status != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", status, body)
	}
	if len(env.records(t)) != 0 {
		t.Error("expected registry to be empty after delete")
	}
	if _, err := os.Stat(filepath.Join(env.root, "clients", "acme")); err != nil {
		t.Error("expected delete to leave the directory alone")
	}
}

func TestProjects_Errors(t *testing.T) {
	env := newTestEnv(t, registry.Record{ID: 1, Name: "taken", RelativePath: "taken"})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"list", http.MethodGet, "/api/projects", "", http.StatusOK},
		{"invalid body", http.MethodPost, "/api/projects", `{`, http.StatusBadRequest},
		{"blank path", http.MethodPost, "/api/projects", `{"path":"  "}`, http.StatusBadRequest},
		{"escapes root", http.MethodPost, "/api/projects", `{"path":"a/../../elsewhere"}`, http.StatusBadRequest},
		{"duplicate path", http.MethodPost, "/api/projects", `{"path":"./taken/"}`, http.StatusConflict},
		{"invalid id", http.MethodDelete, "/api/projects/abc", "", http.StatusBadRequest},
		{"unknown id", http.MethodDelete, "/api/projects/99", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, tt.method, tt.path, tt.body)
			if status != tt.want {
				t.Errorf("status = %d, want %d (body %s)", status, tt.want, body)
			}
		})
	}
}

func TestScan_DoesNotMutate(t *testing.T) {
	env := newTestEnv(t, registry.Record{ID: 1, Name: "gone", RelativePath: "gone"})
	env.mkdir(t, "alpha")

	status, body := env.do(t, http.MethodGet, "/api/scan", "")
	if status != http.StatusOK {
		t.Fatalf("scan status = %d, body %s", status, body)
	}
	result := decode[reconcile.Result](t, body)
	if len(result.Orphaned) != 1 || result.Orphaned[0].Name != "gone" {
		t.Errorf("expected gone to be orphaned, got %+v", result.Orphaned)
	}
	if result.ID == "" {
		t.Error("expected a pass ID")
	}
	if len(env.records(t)) != 1 {
		t.Error("expected scan to leave the registry untouched")
	}
}

func TestReconcile_Policy(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "alpha", "beta")

	status, body := env.do(t, http.MethodPost, "/api/reconcile?policy=unregistered=register-all&dry_run=1", "")
	if status != http.StatusOK {
		t.Fatalf("dry run status = %d, body %s", status, body)
	}
	report := decode[reconcile.Report](t, body)
	if !report.DryRun || len(report.Mutations) != 2 {
		t.Errorf("expected 2 planned mutations, got %+v", report)
	}
	if len(env.records(t)) != 0 {
		t.Fatal("expected dry run to leave the registry untouched")
	}

	status, body = env.do(t, http.MethodPost, "/api/reconcile?policy=unregistered=register-all", "")
	if status != http.StatusOK {
		t.Fatalf("reconcile status = %d, body %s", status, body)
	}
	report = decode[reconcile.Report](t, body)
	if report.Summary.Registered != 2 {
		t.Errorf("expected 2 registered, got %+v", report.Summary)
	}
	if len(env.records(t)) != 2 {
		t.Errorf("expected 2 records, got %d", len(env.records(t)))
	}
}

func TestReconcile_DefaultPolicySkips(t *testing.T) {
	env := newTestEnv(t)
	env.mkdir(t, "alpha")

	status, body := env.do(t, http.MethodPost, "/api/reconcile", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, body)
	}
	if report := decode[reconcile.Report](t, body); len(report.Mutations) != 0 {
		t.Errorf("expected no mutations, got %v", report.Mutations)
	}
}

func TestReconcile_InvalidPolicy(t *testing.T) {
	env := newTestEnv(t)
	status, _ := env.do(t, http.MethodPost, "/api/reconcile?policy=orphaned=review-each", "")
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", status, http.StatusBadRequest)
	}
}

func TestLogs_Filter(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/projects", `{"path":"alpha"}`)

	status, body := env.do(t, http.MethodGet, "/api/logs?scope=registry", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	entries := decode[[]logging.LogEntry](t, body)
	found := false
	for _, e := range entries {
		if e.Message == "project added" {
			found = true
		}
		if !strings.HasPrefix(e.Scope, "registry") {
			t.Errorf("unexpected scope %q", e.Scope)
		}
	}
	if !found {
		t.Errorf("expected a project added entry, got %v", entries)
	}

	_, body = env.do(t, http.MethodGet, "/api/logs?scope=registry&level=error", "")
	if entries := decode[[]logging.LogEntry](t, body); len(entries) != 0 {
		t.Errorf("expected no error entries, got %v", entries)
	}
}

func TestEvents_StreamsChanges(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.ts.URL+"/api/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/events error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(want string) {
		t.Helper()
		for lines.Scan() {
			if lines.Text() == want {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", want, lines.Err())
	}

	waitFor("event: connected")
	env.do(t, http.MethodPost, "/api/projects", `{"path":"alpha"}`)
	waitFor("event: changed")
}
