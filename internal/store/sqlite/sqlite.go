// Package sqlite implements store.Store in a local SQLite file, the default
// preference store of a single-user explorer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/store"
)

// Store implements store.Store using SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func New(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// DefaultPath returns $XDG_STATE_HOME/kgv/prefs.db, falling back to
// ~/.local/state.
func DefaultPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "kgv", "prefs.db")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "kgv", "prefs.db")
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value JSON NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`)
	return err
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) GetPreference(ctx context.Context, key string) (*model.Preference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM preferences WHERE key = ?`, key)
	p, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preference %s: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get preference %s: %w", key, err)
	}
	return p, nil
}

func (s *Store) SetPreference(ctx context.Context, p *model.Preference) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		p.Key, string(p.Value), now, now)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", p.Key, err)
	}
	stored, err := s.GetPreference(ctx, p.Key)
	if err != nil {
		return err
	}
	p.CreatedAt, p.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (s *Store) DeletePreference(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) ListPreferences(ctx context.Context, namespace string) ([]*model.Preference, error) {
	query := `SELECT key, value, created_at, updated_at FROM preferences`
	var args []any
	if namespace != "" {
		query += ` WHERE key LIKE ? || ':%'`
		args = append(args, namespace)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY key`, args...)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*model.Preference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

func scanPreference(row interface{ Scan(...any) error }) (*model.Preference, error) {
	var (
		p     model.Preference
		value string
	)
	if err := row.Scan(&p.Key, &value, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Value = []byte(value)
	return &p, nil
}
