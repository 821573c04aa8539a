// Package postgres implements the store.Store interface backed by PostgreSQL.
// Several explorer deployments can share one database; each keeps its
// preferences under its own scope.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/kgview/internal/model"
	"github.com/alfredjeanlab/kgview/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DefaultScope is used when New is given an empty scope.
const DefaultScope = "default"

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db    executor
	close func() error
	scope string
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL, scope string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return newWithDB(db, scope), nil
}

func newWithDB(db *sql.DB, scope string) *PostgresStore {
	if scope == "" {
		scope = DefaultScope
	}
	return &PostgresStore{db: db, close: db.Close, scope: scope}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: "kgv_schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.close()
}

// Scope returns the scope this store reads and writes.
func (s *PostgresStore) Scope() string { return s.scope }

func (s *PostgresStore) GetPreference(ctx context.Context, key string) (*model.Preference, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, value, created_at, updated_at
		FROM preferences WHERE scope = $1 AND key = $2`, s.scope, key)
	p, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("preference %s: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get preference %s: %w", key, err)
	}
	return p, nil
}

func (s *PostgresStore) SetPreference(ctx context.Context, p *model.Preference) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO preferences (scope, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (scope, key) DO UPDATE SET value = $3, updated_at = NOW()
		RETURNING created_at, updated_at`,
		s.scope, p.Key, []byte(p.Value),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", p.Key, err)
	}
	return nil
}

func (s *PostgresStore) DeletePreference(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE scope = $1 AND key = $2`, s.scope, key); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}

// ListPreferences returns the preferences in namespace, or every
// preference of the scope when namespace is empty.
func (s *PostgresStore) ListPreferences(ctx context.Context, namespace string) ([]*model.Preference, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if namespace == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT key, value, created_at, updated_at
			FROM preferences WHERE scope = $1
			ORDER BY key`, s.scope)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT key, value, created_at, updated_at
			FROM preferences WHERE scope = $1 AND key LIKE $2 || ':%'
			ORDER BY key`, s.scope, namespace)
	}
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

// scannable is satisfied by *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanPreference(row scannable) (*model.Preference, error) {
	var p model.Preference
	var value []byte
	if err := row.Scan(&p.Key, &value, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Value = value
	return &p, nil
}
