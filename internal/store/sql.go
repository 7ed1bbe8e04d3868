package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
	CREATE TABLE IF NOT EXISTS kv_entries (
		namespace  TEXT NOT NULL,
		entry_key  TEXT NOT NULL,
		value      TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (namespace, entry_key)
	)`

// SQLStore keeps key-value entries in a single table, partitioned by namespace
type SQLStore struct {
	db        *sqlx.DB
	namespace string
}

// OpenPostgres connects to a Postgres database
func OpenPostgres(ctx context.Context, databaseURL, namespace string) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(ctx, db, namespace)
}

// OpenSQLite opens (and creates if missing) a local database file
func OpenSQLite(ctx context.Context, path, namespace string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

	return newSQLStore(ctx, db, namespace)
}

// NewSQLStore wraps an existing connection without migrating it
func NewSQLStore(db *sqlx.DB, namespace string) *SQLStore {
	return &SQLStore{db: db, namespace: namespace}
}

func newSQLStore(ctx context.Context, db *sqlx.DB, namespace string) (*SQLStore, error) {
	s := NewSQLStore(db, namespace)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the entries table
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	return nil
}

// Get returns the value stored under key
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		s.db.Rebind("SELECT value FROM kv_entries WHERE namespace = ? AND entry_key = ?"),
		s.namespace, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// Put upserts the value stored under key
func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	query := s.db.Rebind(`
		INSERT INTO kv_entries (namespace, entry_key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (namespace, entry_key)
		DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`)

	_, err := s.db.ExecContext(ctx, query, s.namespace, key, string(value))
	return err
}

// Delete removes key; deleting a missing key is not an error
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		s.db.Rebind("DELETE FROM kv_entries WHERE namespace = ? AND entry_key = ?"),
		s.namespace, key)
	return err
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}
