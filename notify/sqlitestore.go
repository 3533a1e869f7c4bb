package notify

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLiteHistoryConfig configures the SQLite notification history.
type SQLiteHistoryConfig struct {
	// DSN is the database connection string.
	DSN string

	// RetentionCount keeps at most this many notifications (default 500,
	// 0 uses the default; the history is always bounded).
	RetentionCount int
}

// SQLiteHistory persists delivered notifications so they survive restarts.
// It satisfies the HistoryStore interface and prunes to the configured
// retention count as it appends.
type SQLiteHistory struct {
	db        *sql.DB
	retention int
}

// NewSQLiteHistory opens (or creates) a SQLite notification history.
func NewSQLiteHistory(cfg SQLiteHistoryConfig) (*SQLiteHistory, error) {
	if cfg.RetentionCount <= 0 {
		cfg.RetentionCount = 500
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("notifystore: open: %w", err)
	}

	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notifystore: set WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("notifystore: create schema: %w", err)
	}

	return &SQLiteHistory{db: db, retention: cfg.RetentionCount}, nil
}

// Append stores an event and prunes beyond the retention count.
func (s *SQLiteHistory) Append(ctx context.Context, e Event) error {
	payload := e.Fields
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notifystore: marshal payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO notifications (message, payload, received_at) VALUES (?, ?, ?)`,
		e.Message,
		string(payloadJSON),
		e.ReceivedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("notifystore: append: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE id NOT IN (
			SELECT id FROM notifications ORDER BY id DESC LIMIT ?
		)`, s.retention,
	)
	if err != nil {
		return fmt.Errorf("notifystore: prune: %w", err)
	}
	return nil
}

// Recent returns up to limit stored events, newest first (0 means all
// retained events).
func (s *SQLiteHistory) Recent(ctx context.Context, limit int) ([]Event, error) {
	query := `SELECT message, payload, received_at FROM notifications ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("notifystore: recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e           Event
			payloadJSON string
			receivedAt  string
		)
		if err := rows.Scan(&e.Message, &payloadJSON, &receivedAt); err != nil {
			return nil, fmt.Errorf("notifystore: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &e.Fields); err != nil {
			return nil, fmt.Errorf("notifystore: unmarshal payload: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("notifystore: parse time %q: %w", receivedAt, err)
		}
		e.ReceivedAt = t
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

// Compile-time interface check.
var _ HistoryStore = (*SQLiteHistory)(nil)
