package session

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteStoreConfig configures a SQLite credential store.
type SQLiteStoreConfig struct {
	// DSN is the database connection string.
	DSN string
}

// SQLiteStore is a credential slot persisted to a SQLite database, so the
// session survives process restarts the way a browser session survives page
// reloads. The table holds at most one row; last write wins.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed credential store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("credstore: open: %w", err)
	}

	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("credstore: set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("credstore: create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Token returns the stored token, or "" when the slot is empty.
func (s *SQLiteStore) Token(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		`SELECT token FROM credential WHERE slot = 1`,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("credstore: read token: %w", err)
	}
	return token, nil
}

// SetToken replaces the stored token.
func (s *SQLiteStore) SetToken(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credential (slot, token, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at`,
		token,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("credstore: set token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty slot is a no-op.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM credential WHERE slot = 1`); err != nil {
		return fmt.Errorf("credstore: clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Compile-time interface check.
var _ CredentialStore = (*SQLiteStore)(nil)
