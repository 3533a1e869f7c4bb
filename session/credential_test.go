package session

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemStore_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if err := store.SetToken(ctx, "first"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	if err := store.SetToken(ctx, "second"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}

	token, err := store.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "second" {
		t.Fatalf("token = %q, want %q", token, "second")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	token, err = store.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "" {
		t.Fatalf("token = %q, want empty after clear", token)
	}

	// Clearing an empty store is a no-op, not an error.
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() on empty store error = %v", err)
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "credentials.db")

	store, err := NewSQLiteStore(SQLiteStoreConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}

	token, err := store.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "" {
		t.Fatalf("token = %q, want empty on fresh store", token)
	}

	if err := store.SetToken(ctx, "first"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	if err := store.SetToken(ctx, "second"); err != nil {
		t.Fatalf("SetToken() error = %v", err)
	}
	token, err = store.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "second" {
		t.Fatalf("token = %q, want %q", token, "second")
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// The slot survives a reopen.
	reopened, err := NewSQLiteStore(SQLiteStoreConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("NewSQLiteStore() reopen error = %v", err)
	}
	defer reopened.Close()

	token, err = reopened.Token(ctx)
	if err != nil {
		t.Fatalf("Token() after reopen error = %v", err)
	}
	if token != "second" {
		t.Fatalf("token = %q after reopen, want %q", token, "second")
	}

	if err := reopened.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	token, err = reopened.Token(ctx)
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token != "" {
		t.Fatalf("token = %q, want empty after clear", token)
	}
}
