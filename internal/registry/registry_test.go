package registry

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

// contract runs the behaviour every Registry implementation must share.
func contract(t *testing.T, newRegistry func(t *testing.T) Registry) {
	ctx := context.Background()

	t.Run("create normalizes path and applies defaults", func(t *testing.T) {
		reg := newRegistry(t)
		rec, err := reg.Create(ctx, NewRecord{RelativePath: `./projects\web/`, DirExists: true})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if rec.RelativePath != "projects/web" {
			t.Errorf("RelativePath = %q, want projects/web", rec.RelativePath)
		}
		if rec.Name != "web" {
			t.Errorf("Name = %q, want web", rec.Name)
		}
		if rec.Status != DefaultStatus || rec.Priority != DefaultPriority {
			t.Errorf("defaults not applied: status=%q priority=%d", rec.Status, rec.Priority)
		}
		if !rec.DirExists {
			t.Error("expected DirExists to be stored")
		}
		if rec.ID == 0 {
			t.Error("expected an assigned ID")
		}
	})

	t.Run("create rejects blank and duplicate paths", func(t *testing.T) {
		reg := newRegistry(t)
		if _, err := reg.Create(ctx, NewRecord{Name: "x", RelativePath: " ./ "}); !errors.Is(err, ErrEmptyPath) {
			t.Errorf("expected ErrEmptyPath, got %v", err)
		}
		if _, err := reg.Create(ctx, NewRecord{RelativePath: "a/b"}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if _, err := reg.Create(ctx, NewRecord{RelativePath: "/a/b/"}); !errors.Is(err, ErrDuplicatePath) {
			t.Errorf("expected ErrDuplicatePath, got %v", err)
		}
	})

	t.Run("create resolves dot segments before the duplicate check", func(t *testing.T) {
		reg := newRegistry(t)
		rec, err := reg.Create(ctx, NewRecord{RelativePath: "a/../b"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if rec.RelativePath != "b" {
			t.Errorf("RelativePath = %q, want b", rec.RelativePath)
		}
		if _, err := reg.Create(ctx, NewRecord{RelativePath: "b"}); !errors.Is(err, ErrDuplicatePath) {
			t.Errorf("expected ErrDuplicatePath, got %v", err)
		}
		if _, err := reg.Create(ctx, NewRecord{RelativePath: "a/../../b"}); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("expected ErrOutsideRoot, got %v", err)
		}
		if _, err := reg.Create(ctx, NewRecord{RelativePath: "a/.."}); !errors.Is(err, ErrEmptyPath) {
			t.Errorf("expected ErrEmptyPath, got %v", err)
		}
	})

	t.Run("snapshot is ordered by id", func(t *testing.T) {
		reg := newRegistry(t)
		for _, p := range []string{"c", "a", "b"} {
			if _, err := reg.Create(ctx, NewRecord{RelativePath: p}); err != nil {
				t.Fatalf("Create(%s) error = %v", p, err)
			}
		}
		snap, err := reg.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}
		if len(snap) != 3 {
			t.Fatalf("expected 3 records, got %d", len(snap))
		}
		for i := 1; i < len(snap); i++ {
			if snap[i-1].ID >= snap[i].ID {
				t.Errorf("snapshot not ordered: %d before %d", snap[i-1].ID, snap[i].ID)
			}
		}
		if snap[0].RelativePath != "c" {
			t.Errorf("first record = %q, want c", snap[0].RelativePath)
		}
	})

	t.Run("rename changes name only", func(t *testing.T) {
		reg := newRegistry(t)
		rec, err := reg.Create(ctx, NewRecord{Name: "Old", RelativePath: "dir/new"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := reg.Rename(ctx, rec.ID, "new"); err != nil {
			t.Fatalf("Rename() error = %v", err)
		}
		snap, _ := reg.Snapshot(ctx)
		if snap[0].Name != "new" || snap[0].RelativePath != "dir/new" {
			t.Errorf("after rename got %+v", snap[0])
		}
		if err := reg.Rename(ctx, rec.ID, "  "); !errors.Is(err, ErrEmptyName) {
			t.Errorf("expected ErrEmptyName, got %v", err)
		}
		if err := reg.Rename(ctx, 9999, "x"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete removes permanently", func(t *testing.T) {
		reg := newRegistry(t)
		rec, err := reg.Create(ctx, NewRecord{RelativePath: "gone"})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := reg.Delete(ctx, rec.ID); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		snap, _ := reg.Snapshot(ctx)
		if len(snap) != 0 {
			t.Errorf("expected empty registry, got %d records", len(snap))
		}
		if err := reg.Delete(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestMemory(t *testing.T) {
	contract(t, func(t *testing.T) Registry {
		return NewMemory("/root")
	})
}

func TestSQLite(t *testing.T) {
	contract(t, func(t *testing.T) Registry {
		return openTestSQLite(t, filepath.Join(t.TempDir(), "projects.db"))
	})
}

func openTestSQLite(t *testing.T, dbPath string) *SQLite {
	t.Helper()
	reg, err := OpenSQLite(context.Background(), dbPath, "/root")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestNewMemory_Seed(t *testing.T) {
	reg := NewMemory("/r",
		Record{ID: 7, Name: "a", RelativePath: "a"},
		Record{Name: "b", RelativePath: "b"},
	)
	snap, _ := reg.Snapshot(context.Background())
	if len(snap) != 2 {
		t.Fatalf("expected 2 records, got %d", len(snap))
	}
	rec, err := reg.Create(context.Background(), NewRecord{RelativePath: "c"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID != 9 {
		t.Errorf("expected next ID 9 after seeds 7 and 8, got %d", rec.ID)
	}
	if reg.Root() != "/r" {
		t.Errorf("Root() = %q", reg.Root())
	}
}

func TestSQLite_PersistsAcrossOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "projects.db")
	ctx := context.Background()

	first, err := OpenSQLite(ctx, dbPath, "/root")
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	if _, err := first.Create(ctx, NewRecord{Name: "web", RelativePath: "projects/web", Category: "apps"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_ = first.Close()

	second := openTestSQLite(t, dbPath)
	snap, err := second.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap) != 1 || snap[0].Category != "apps" || snap[0].LastModified == "" {
		t.Errorf("unexpected snapshot after reopen: %+v", snap)
	}
}

func TestSQLite_LegacyRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")
	reg := openTestSQLite(t, dbPath)
	ctx := context.Background()

	// Rows written by older versions: NULL metadata, unnormalized path.
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`INSERT INTO projects (name, relative_path) VALUES ('legacy', './old/proj/')`); err != nil {
		t.Fatal(err)
	}

	snap, err := reg.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap) != 1 || snap[0].RelativePath != "./old/proj/" || snap[0].DirExists {
		t.Fatalf("unexpected legacy snapshot: %+v", snap)
	}

	if _, err := reg.Create(ctx, NewRecord{RelativePath: "old/proj"}); !errors.Is(err, ErrDuplicatePath) {
		t.Errorf("expected ErrDuplicatePath against unnormalized legacy path, got %v", err)
	}
}
