// Package catalog wraps the library service's book endpoints and layers the
// optimistic mutation protocol on top: every create, update, delete, borrow
// and favorite-toggle projects its effect onto the visible collection
// immediately, then reconciles against server truth (or rolls back).
package catalog

import (
	"context"
	"fmt"

	"github.com/shelf-labs/shelfsync/api"
	"github.com/shelf-labs/shelfsync/core"
)

// Fallback messages per operation, shown when the server rejects a call
// without a message of its own.
const (
	msgFetchFailed  = "Failed to fetch books"
	msgSaveFailed   = "Failed to save book"
	msgDeleteFailed = "Failed to delete book"
	msgBorrowFailed = "Failed to borrow"
)

// Service issues the raw catalog calls. It carries no state; the Mutator
// owns the visible collection.
type Service struct {
	api *api.Client
}

// NewService creates a catalog service over the given gateway.
func NewService(client *api.Client) *Service {
	return &Service{api: client}
}

// List fetches books matching the filter.
func (s *Service) List(ctx context.Context, f core.Filter) ([]core.Book, error) {
	var books []core.Book
	if err := s.api.Get(ctx, "/books", f.Values(), &books); err != nil {
		return nil, err
	}
	return books, nil
}

// Create adds a book. The server assigns the id; the draft's id is not sent.
func (s *Service) Create(ctx context.Context, draft core.Book) error {
	draft.ID = ""
	return s.api.Post(ctx, "/books", draft, nil)
}

// Update replaces the book with the given id.
func (s *Service) Update(ctx context.Context, id string, draft core.Book) error {
	draft.ID = id
	return s.api.Put(ctx, "/books/"+id, draft, nil)
}

// Delete removes the book with the given id.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.api.Delete(ctx, "/books/"+id, nil)
}

// Borrow lends the book to the given user.
func (s *Service) Borrow(ctx context.Context, userID int64, bookID string) error {
	return s.api.Post(ctx, fmt.Sprintf("/users/%d/borrow/%s", userID, bookID), nil, nil)
}

// ImageURL resolves a book's relative image reference against the service
// base URL. Returns "" when the book has no image.
func (s *Service) ImageURL(b core.Book) string {
	if b.ImageRef == "" {
		return ""
	}
	return s.api.BaseURL() + b.ImageRef
}
