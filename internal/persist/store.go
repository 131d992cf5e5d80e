// Package persist keeps named dashboard views in SQLite.
package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

var (
	// ErrNotFound is returned when a view does not exist.
	ErrNotFound = errors.New("view not found")
	// ErrEmptyName is returned when saving a view without a name.
	ErrEmptyName = errors.New("view name is empty")
)

// View is a saved dashboard link. Query is the canonical query string, so a
// loaded view decodes exactly like a shared link.
type View struct {
	Name    string    `json:"name"`
	Query   string    `json:"query"`
	SavedAt time.Time `json:"savedAt"`
}

// Store wraps SQLite access for saved views.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// One connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS views (
			name TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save stores query under name, replacing any existing view.
func (s *Store) Save(ctx context.Context, name, query string, at time.Time) (View, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return View{}, ErrEmptyName
	}
	at = at.UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO views (name, query, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET query = excluded.query, saved_at = excluded.saved_at`,
		name, query, at.Format(time.RFC3339Nano),
	)
	if err != nil {
		return View{}, fmt.Errorf("failed to save view %q: %w", name, err)
	}
	return View{Name: name, Query: query, SavedAt: at}, nil
}

// Load returns the view called name.
func (s *Store) Load(ctx context.Context, name string) (View, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, query, saved_at FROM views WHERE name = ?`, name)
	v, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return View{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return View{}, fmt.Errorf("failed to load view %q: %w", name, err)
	}
	return v, nil
}

// List returns all views ordered by name.
func (s *Store) List(ctx context.Context) ([]View, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, query, saved_at FROM views ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer rows.Close()

	views := []View{}
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// Delete removes the view called name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM views WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete view %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete view %q: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanView(sc scanner) (View, error) {
	var v View
	var savedAt string
	if err := sc.Scan(&v.Name, &v.Query, &savedAt); err != nil {
		return View{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return View{}, fmt.Errorf("bad saved_at %q: %w", savedAt, err)
	}
	v.SavedAt = t
	return v, nil
}
