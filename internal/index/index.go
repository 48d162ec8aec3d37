// Package index maintains the user-level catalog of every environment
// pyve has created, one SQLite database per user. The per-project
// registry stays authoritative; the index is a convenience view that
// `pyve list` reads, so writes here are best effort and callers warn
// rather than fail on error.
package index

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/pyve/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// timeFormat is how timestamps are stored in the database.
const timeFormat = time.RFC3339

// Entry is one indexed environment.
type Entry struct {
	ID          string
	ProjectPath string
	Backend     types.Backend
	Name        string
	Prefix      string
	Python      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Index is a handle on the user-level database.
type Index struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the index database at path.
func Open(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the database handle. Safe to call more than once.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.db == nil {
		return nil
	}
	err := ix.db.Close()
	ix.db = nil
	return err
}

// Upsert records an environment, replacing any previous row for the
// same (project, backend).
func (ix *Index) Upsert(projectPath string, h types.EnvironmentHandle) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.db == nil {
		return fmt.Errorf("index is closed")
	}

	_, err := ix.db.Exec(`
		INSERT INTO environments (id, project_path, backend, name, prefix, python, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (project_path, backend) DO UPDATE SET
			id = excluded.id,
			name = excluded.name,
			prefix = excluded.prefix,
			python = excluded.python,
			updated_at = excluded.updated_at`,
		h.ID, projectPath, string(h.Backend), h.Name, h.Prefix, h.Python,
		h.CreatedAt.UTC().Format(timeFormat), h.UpdatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("index upsert: %w", err)
	}
	return nil
}

// Delete drops the row for (project, backend). Deleting a row that is
// not there is not an error.
func (ix *Index) Delete(projectPath string, backend types.Backend) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.db == nil {
		return fmt.Errorf("index is closed")
	}

	_, err := ix.db.Exec(
		`DELETE FROM environments WHERE project_path = ? AND backend = ?`,
		projectPath, string(backend))
	if err != nil {
		return fmt.Errorf("index delete: %w", err)
	}
	return nil
}

// List returns every indexed environment ordered by project then
// backend.
func (ix *Index) List() ([]Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.db == nil {
		return nil, fmt.Errorf("index is closed")
	}

	rows, err := ix.db.Query(`
		SELECT id, project_path, backend, name, prefix, python, created_at, updated_at
		FROM environments
		ORDER BY project_path, backend`)
	if err != nil {
		return nil, fmt.Errorf("index list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var backend, created, updated string
		if err := rows.Scan(&e.ID, &e.ProjectPath, &backend, &e.Name, &e.Prefix, &e.Python, &created, &updated); err != nil {
			return nil, fmt.Errorf("index scan: %w", err)
		}
		e.Backend = types.Backend(backend)
		e.CreatedAt, _ = time.Parse(timeFormat, created)
		e.UpdatedAt, _ = time.Parse(timeFormat, updated)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index rows: %w", err)
	}
	return entries, nil
}
