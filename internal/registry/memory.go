// pattern: Imperative Shell

package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"projsync/internal/pathnorm"
)

// Memory is an in-process registry. It backs tests and unattended hosts that
// do not persist anything.
type Memory struct {
	mu      sync.RWMutex
	root    string
	records map[int64]Record
	nextID  int64
	now     func() time.Time
}

// NewMemory creates an empty registry rooted at root, seeded with records.
// Seed records keep their IDs when non-zero.
func NewMemory(root string, seed ...Record) *Memory {
	m := &Memory{
		root:    root,
		records: make(map[int64]Record),
		nextID:  1,
		now:     time.Now,
	}
	for _, r := range seed {
		if r.ID == 0 {
			r.ID = m.nextID
		}
		if r.ID >= m.nextID {
			m.nextID = r.ID + 1
		}
		m.records[r.ID] = r
	}
	return m
}

// Root implements Registry.
func (m *Memory) Root() string {
	return m.root
}

// Snapshot implements Registry.
func (m *Memory) Snapshot(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

// Create implements Registry.
func (m *Memory) Create(_ context.Context, rec NewRecord) (Record, error) {
	rec, err := prepare(rec)
	if err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.records {
		if pathnorm.Normalize(existing.RelativePath) == rec.RelativePath {
			return Record{}, fmt.Errorf("%w: %s", ErrDuplicatePath, rec.RelativePath)
		}
	}

	stamp := m.now().UTC().Format(TimeLayout)
	r := Record{
		ID:           m.nextID,
		Name:         rec.Name,
		RelativePath: rec.RelativePath,
		Description:  rec.Description,
		StartDate:    stamp,
		LastModified: stamp,
		Status:       rec.Status,
		Category:     rec.Category,
		Priority:     rec.Priority,
		DirExists:    rec.DirExists,
	}
	m.records[r.ID] = r
	m.nextID++
	return r, nil
}

// Delete implements Registry.
func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return notFound(id)
	}
	delete(m.records, id)
	return nil
}

// Rename implements Registry.
func (m *Memory) Rename(_ context.Context, id int64, name string) error {
	name, err := validateName(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return notFound(id)
	}
	r.Name = name
	r.LastModified = m.now().UTC().Format(TimeLayout)
	m.records[id] = r
	return nil
}
