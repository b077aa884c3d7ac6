//go:build !js

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // sqlite driver
)

// SQLite implements Store on top of a single kv table
type SQLite struct {
	db      *sqlx.DB
	timeout time.Duration
}

// kvRecord is a row of kv table
type kvRecord struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	UpdatedAt int64  `db:"updated_at"`
}

// NewSQLite opens (or creates) the database at dbPath and makes sure the schema exists
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to set WAL mode: %w (also failed to close db: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	s := &SQLite{db: db, timeout: 5 * time.Second}
	if err := s.initialize(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("%w (also failed to close db: %v)", err, closeErr)
		}
		return nil, err
	}
	return s, nil
}

// initialize creates the database schema
func (s *SQLite) initialize() error {
	query := `CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER
	)`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}
	return nil
}

// Get returns value stored for key
func (s *SQLite) Get(key string) (value string, ok bool, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var rec kvRecord
	err = s.db.GetContext(ctx, &rec, "SELECT key, value, updated_at FROM kv WHERE key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return rec.Value, true, nil
}

// Set upserts value for key
func (s *SQLite) Set(key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	rec := kvRecord{Key: key, Value: value, UpdatedAt: time.Now().Unix()}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (:key, :value, :updated_at)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, rec)
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	log.Printf("[DEBUG] saved %d bytes to kv %q", len(value), key)
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) String() string {
	return "sqlite"
}
