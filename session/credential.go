// Package session owns the authenticated-identity state machine and the
// bearer credential it is built on.
//
// The credential lives in a CredentialStore: a single mutable slot, last
// write wins, no versioning. The Controller is the only writer for identity
// purposes; the HTTP gateway clears it indirectly by calling the Controller's
// Invalidate on a server-confirmed 401, which always wins.
package session

import (
	"context"
	"sync"
)

// CredentialStore holds the current bearer token. Token returns "" when no
// credential is stored.
type CredentialStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemStore is an in-memory credential slot. It does not survive process
// restarts; use SQLiteStore for a persistent slot.
type MemStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemStore creates an empty in-memory credential store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Token returns the stored token, or "" when absent.
func (s *MemStore) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

// SetToken replaces the stored token.
func (s *MemStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear removes the stored token. Clearing an empty store is a no-op.
func (s *MemStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// Compile-time interface check.
var _ CredentialStore = (*MemStore)(nil)
