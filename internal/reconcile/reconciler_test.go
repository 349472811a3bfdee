package reconcile

import (
	"context"
	"errors"
	"io/fs"
	"reflect"
	"testing"
	"testing/fstest"

	"projsync/internal/discovery"
	"projsync/internal/fsys"
	"projsync/internal/logging"
	"projsync/internal/pathnorm"
	"projsync/internal/registry"
)

func dir() *fstest.MapFile  { return &fstest.MapFile{Mode: fs.ModeDir | 0o755} }
func file() *fstest.MapFile { return &fstest.MapFile{Data: []byte("x")} }

func newReconciler(t *testing.T, reg registry.Registry, tree fsys.FS, logs logging.LoggerProvider) *Reconciler {
	t.Helper()
	var logger *logging.ScopedLogger
	var scanLogger *logging.ScopedLogger
	if logs != nil {
		logger = logs.For("reconcile")
		scanLogger = logs.For("scan")
	}
	scanner, err := discovery.NewScanner(tree, discovery.Options{Logger: scanLogger})
	if err != nil {
		t.Fatalf("NewScanner() error = %v", err)
	}
	return New(reg, tree, scanner, logger)
}

func candidatePaths(cands []discovery.Candidate) []string {
	out := []string{}
	for _, c := range cands {
		out = append(out, c.Path)
	}
	return out
}

func recordIDs(recs []registry.Record) []int64 {
	out := []int64{}
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

// statFailFS fails DirExists for the listed paths.
type statFailFS struct {
	fsys.FS
	fail map[string]bool
}

func (f statFailFS) DirExists(rel string) (bool, error) {
	if f.fail[rel] {
		return false, fs.ErrPermission
	}
	return f.FS.DirExists(rel)
}

func TestReconcile_ClassifiesRecords(t *testing.T) {
	tree := fsys.New(fstest.MapFS{
		"projects/web/src":         dir(),
		"projects/other/README.md": file(),
		"services/api/go.mod":      file(),
	})
	reg := registry.NewMemory("/srv", []registry.Record{
		{ID: 1, Name: "web", RelativePath: "projects/web"},
		{ID: 2, Name: "gone", RelativePath: "archive/gone"},
		{ID: 3, Name: "API", RelativePath: "./services/api/"},
		{ID: 4, Name: "blank", RelativePath: "  "},
	}...)
	r := newReconciler(t, reg, tree, nil)

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	if got := recordIDs(result.Orphaned); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("expected orphaned [2], got %v", got)
	}
	if len(result.Mismatched) != 1 || result.Mismatched[0].Record.ID != 3 || result.Mismatched[0].ActualName != "api" {
		t.Errorf("expected record 3 mismatched with actual name api, got %+v", result.Mismatched)
	}
	if got := candidatePaths(result.Unregistered); !reflect.DeepEqual(got, []string{"projects/other"}) {
		t.Errorf("expected unregistered [projects/other], got %v", got)
	}
	if result.Registered != 2 {
		t.Errorf("expected 2 registered paths, got %d", result.Registered)
	}
	if result.ID == "" {
		t.Error("expected a pass ID")
	}
	if result.Empty() {
		t.Error("result should not be empty")
	}
}

func TestReconcile_DoesNotMutateRegistry(t *testing.T) {
	tree := fsys.New(fstest.MapFS{"b/README": file()})
	reg := registry.NewMemory("/srv", registry.Record{ID: 1, Name: "a", RelativePath: "a"})
	r := newReconciler(t, reg, tree, nil)

	before, _ := reg.Snapshot(context.Background())
	if _, err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	after, _ := reg.Snapshot(context.Background())
	if !reflect.DeepEqual(before, after) {
		t.Errorf("registry changed during reconcile: %+v -> %+v", before, after)
	}
}

func TestReconcile_MismatchedIsNeverOrphaned(t *testing.T) {
	tree := fsys.New(fstest.MapFS{"renamed-dir/main.go": file()})
	reg := registry.NewMemory("/srv", registry.Record{ID: 1, Name: "original", RelativePath: "renamed-dir"})
	r := newReconciler(t, reg, tree, nil)

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Orphaned) != 0 {
		t.Errorf("expected no orphaned, got %v", recordIDs(result.Orphaned))
	}
	if len(result.Mismatched) != 1 || result.Mismatched[0].ActualName != "renamed-dir" {
		t.Errorf("expected one mismatch, got %+v", result.Mismatched)
	}
}

func TestReconcile_OrphanDoesNotSuppress(t *testing.T) {
	// The orphaned record points below labs/app; labs/app must still be proposed.
	tree := fsys.New(fstest.MapFS{
		"labs/app/README": file(),
		"home/go.mod":     file(),
	})
	reg := registry.NewMemory("/srv",
		registry.Record{ID: 1, Name: "sub", RelativePath: "labs/app/sub"},
		registry.Record{ID: 2, Name: "home", RelativePath: "home"},
	)
	r := newReconciler(t, reg, tree, nil)

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := recordIDs(result.Orphaned); !reflect.DeepEqual(got, []int64{1}) {
		t.Errorf("expected orphaned [1], got %v", got)
	}
	if got := candidatePaths(result.Unregistered); !reflect.DeepEqual(got, []string{"labs/app"}) {
		t.Errorf("expected unregistered [labs/app], got %v", got)
	}
}

func TestReconcile_StatErrorIsNeitherOrphanedNorMismatched(t *testing.T) {
	tree := statFailFS{
		FS: fsys.New(fstest.MapFS{
			"locked/inner/README": file(),
			"free/README":         file(),
		}),
		fail: map[string]bool{"locked": true},
	}
	logs := logging.NewTestLogManager(50)
	reg := registry.NewMemory("/srv", registry.Record{ID: 1, Name: "other-name", RelativePath: "locked"})
	r := newReconciler(t, reg, tree, logs)

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if len(result.Orphaned) != 0 || len(result.Mismatched) != 0 {
		t.Errorf("expected record to be neither orphaned nor mismatched, got %+v", result)
	}
	// locked still counts as registered, so locked/inner is suppressed.
	if got := candidatePaths(result.Unregistered); !reflect.DeepEqual(got, []string{"free"}) {
		t.Errorf("expected unregistered [free], got %v", got)
	}
	if len(logs.Find("WARN", "cannot check project directory")) != 1 {
		t.Error("expected a warning for the failed existence check")
	}
}

func TestReconcile_EmptyRegistryBootstraps(t *testing.T) {
	tree := fsys.New(fstest.MapFS{"a": dir(), "b/c": dir()})
	r := newReconciler(t, registry.NewMemory("/srv"), tree, nil)

	result, err := r.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if got := candidatePaths(result.Unregistered); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("expected unregistered [a], got %v", got)
	}
}

type cancelledScanner struct{}

func (cancelledScanner) Scan(_ context.Context, _ pathnorm.Set) ([]discovery.Candidate, error) {
	return []discovery.Candidate{{Path: "a", Name: "a"}}, context.Canceled
}

type brokenScanner struct{}

func (brokenScanner) Scan(_ context.Context, _ pathnorm.Set) ([]discovery.Candidate, error) {
	return nil, errors.New("boom")
}

func TestReconcile_ScanErrors(t *testing.T) {
	tree := fsys.New(fstest.MapFS{})
	reg := registry.NewMemory("/srv")

	result, err := New(reg, tree, cancelledScanner{}, nil).Reconcile(context.Background())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || len(result.Unregistered) != 1 {
		t.Fatalf("expected partial result with one candidate, got %+v", result)
	}

	result, err = New(reg, tree, brokenScanner{}, nil).Reconcile(context.Background())
	if err == nil || result != nil {
		t.Fatalf("expected error and nil result, got %+v, %v", result, err)
	}
}

func TestResult_Counts(t *testing.T) {
	r := &Result{
		Orphaned:     []registry.Record{{ID: 1}, {ID: 2}},
		Unregistered: []discovery.Candidate{{Path: "x"}},
	}
	want := Counts{Orphaned: 2, Mismatched: 0, Unregistered: 1}
	if got := r.Counts(); got != want {
		t.Errorf("Counts() = %+v, want %+v", got, want)
	}
	if (&Result{}).Empty() != true {
		t.Error("zero Result should be empty")
	}
}
