// Package core provides the foundational types shared by the shelfsync client:
// the authenticated identity, the catalog book model, and catalog filters.
//
// These types mirror the wire shapes of the library service API; everything
// stateful (session machine, optimistic catalog view, notification channel)
// lives in the packages that own the behavior.
package core

import (
	"encoding/json"
	"net/url"
	"strconv"
)

// Role is the access level assigned to an identity by the server.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// Identity is the authenticated user as reported by GET /auth/me.
// Membership dates are ISO-8601 date strings passed through verbatim;
// the server owns membership validity rules.
type Identity struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	Email               string `json:"email"`
	Role                Role   `json:"role"`
	MembershipStartDate string `json:"membershipStartDate,omitempty"`
	MembershipEndDate   string `json:"membershipEndDate,omitempty"`
}

// IsAdmin reports whether the identity has the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// BookStatus is the lending state of a catalog book.
type BookStatus string

const (
	StatusAvailable BookStatus = "AVAILABLE"
	StatusTaken     BookStatus = "TAKEN"
)

// Book is one catalog item. ID is server-assigned; a client-generated
// placeholder id (see catalog.IsTempID) exists only between an optimistic
// insert and the reconciling refetch.
type Book struct {
	ID         string
	Title      string
	Author     string
	Category   string
	Status     BookStatus
	IsFavorite bool
	ImageRef   string // relative path, resolved against the API base URL
}

type bookWire struct {
	ID         string     `json:"id,omitempty"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	Category   string     `json:"category"`
	Status     BookStatus `json:"status"`
	IsFavorite bool       `json:"isFavorite"`
	ImageRef   string     `json:"imageUrl,omitempty"`
}

// MarshalJSON encodes the book in the service's wire shape.
func (b Book) MarshalJSON() ([]byte, error) {
	return json.Marshal(bookWire{
		ID:         b.ID,
		Title:      b.Title,
		Author:     b.Author,
		Category:   b.Category,
		Status:     b.Status,
		IsFavorite: b.IsFavorite,
		ImageRef:   b.ImageRef,
	})
}

// UnmarshalJSON decodes a book, normalizing the id: the service reports it
// as either "id" or "bookId", numeric or string.
func (b *Book) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID         any        `json:"id"`
		BookID     any        `json:"bookId"`
		Title      string     `json:"title"`
		Author     string     `json:"author"`
		Category   string     `json:"category"`
		Status     BookStatus `json:"status"`
		IsFavorite bool       `json:"isFavorite"`
		ImageRef   string     `json:"imageUrl"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	id := normalizeID(wire.ID)
	if id == "" {
		id = normalizeID(wire.BookID)
	}
	*b = Book{
		ID:         id,
		Title:      wire.Title,
		Author:     wire.Author,
		Category:   wire.Category,
		Status:     wire.Status,
		IsFavorite: wire.IsFavorite,
		ImageRef:   wire.ImageRef,
	}
	return nil
}

func normalizeID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// Filter narrows a catalog listing. Zero-value fields are omitted from the
// query string.
type Filter struct {
	Category string
	Author   string
	Name     string
	Status   BookStatus
}

// Values encodes the filter as URL query parameters for GET /books.
func (f Filter) Values() url.Values {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.Author != "" {
		q.Set("author", f.Author)
	}
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	return q
}

// IsZero reports whether the filter has no constraints.
func (f Filter) IsZero() bool {
	return f == Filter{}
}
