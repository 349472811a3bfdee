// pattern: Imperative Shell

package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"projsync/internal/pathnorm"
)

const schema = `
	CREATE TABLE IF NOT EXISTS projects (
		project_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		start_date TEXT,
		last_modified_date TEXT,
		status TEXT,
		category TEXT,
		relative_path TEXT,
		priority INTEGER,
		dir_exists INTEGER DEFAULT 0
	);
`

// SQLite is the persistent registry, one row per project in the projects table.
type SQLite struct {
	db   *sql.DB
	root string
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the database at dbPath. The parent
// directory is created when missing.
func OpenSQLite(ctx context.Context, dbPath, root string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Single connection: every statement runs on one sqlite handle.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, root: root, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create projects table: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Root implements Registry.
func (s *SQLite) Root() string {
	return s.root
}

// Snapshot implements Registry.
func (s *SQLite) Snapshot(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id, name, description, start_date, last_modified_date,
		       status, category, relative_path, priority, dir_exists
		FROM projects ORDER BY project_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var r Record
	var desc, start, modified, status, category, relPath sql.NullString
	var priority, dirExists sql.NullInt64
	if err := rows.Scan(&r.ID, &r.Name, &desc, &start, &modified, &status, &category, &relPath, &priority, &dirExists); err != nil {
		return Record{}, fmt.Errorf("scan project row: %w", err)
	}
	r.Description = desc.String
	r.StartDate = start.String
	r.LastModified = modified.String
	r.Status = status.String
	r.Category = category.String
	r.RelativePath = relPath.String
	r.Priority = int(priority.Int64)
	r.DirExists = dirExists.Int64 != 0
	return r, nil
}

// Create implements Registry.
func (s *SQLite) Create(ctx context.Context, rec NewRecord) (Record, error) {
	rec, err := prepare(rec)
	if err != nil {
		return Record{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("begin create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Stored paths may predate normalization, so compare in Go.
	taken, err := pathTaken(ctx, tx, rec.RelativePath)
	if err != nil {
		return Record{}, err
	}
	if taken {
		return Record{}, fmt.Errorf("%w: %s", ErrDuplicatePath, rec.RelativePath)
	}

	stamp := s.now().UTC().Format(TimeLayout)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO projects (name, description, start_date, last_modified_date, status, category, relative_path, priority, dir_exists)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.Name, rec.Description, stamp, stamp, rec.Status, rec.Category, rec.RelativePath, rec.Priority, boolToInt(rec.DirExists))
	if err != nil {
		return Record{}, fmt.Errorf("insert project %s: %w", rec.RelativePath, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Record{}, fmt.Errorf("insert project id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit create: %w", err)
	}

	return Record{
		ID:           id,
		Name:         rec.Name,
		RelativePath: rec.RelativePath,
		Description:  rec.Description,
		StartDate:    stamp,
		LastModified: stamp,
		Status:       rec.Status,
		Category:     rec.Category,
		Priority:     rec.Priority,
		DirExists:    rec.DirExists,
	}, nil
}

func pathTaken(ctx context.Context, tx *sql.Tx, normalized string) (bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT relative_path FROM projects WHERE relative_path IS NOT NULL`)
	if err != nil {
		return false, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return false, fmt.Errorf("scan path: %w", err)
		}
		if pathnorm.Normalize(p) == normalized {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Delete implements Registry.
func (s *SQLite) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE project_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

// Rename implements Registry.
func (s *SQLite) Rename(ctx context.Context, id int64, name string) error {
	name, err := validateName(name)
	if err != nil {
		return err
	}
	stamp := s.now().UTC().Format(TimeLayout)
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, last_modified_date = ? WHERE project_id = ?`,
		name, stamp, id)
	if err != nil {
		return fmt.Errorf("rename project %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
