package catalog

import "github.com/shelf-labs/shelfsync/core"

// View is the visible book collection. All writes go through the Mutator;
// readers get defensive copies.
//
// Authoritative refetches are stamped with a monotonic sequence number, and
// a refetch that started earlier but lands later than another is dropped
// rather than applied: the freshest server truth wins. Optimistic
// projections are not coordinated with each other (last applied wins), which
// matches the one-interaction-at-a-time UI this client serves.
type View struct {
	books         []core.Book
	lastReconcile uint64
}

// Books returns a copy of the visible collection.
func (v *View) Books() []core.Book {
	out := make([]core.Book, len(v.books))
	copy(out, v.books)
	return out
}

// snapshot captures the collection for a later rollback.
func (v *View) snapshot() []core.Book {
	out := make([]core.Book, len(v.books))
	copy(out, v.books)
	return out
}

// restore rolls the collection back to a previously captured snapshot.
func (v *View) restore(books []core.Book) {
	v.books = books
}

// reconcile applies an authoritative server listing, unless a refetch with a
// higher sequence already landed. Reports whether the listing was applied.
func (v *View) reconcile(seq uint64, books []core.Book) bool {
	if seq <= v.lastReconcile {
		return false
	}
	v.lastReconcile = seq
	v.books = books
	return true
}

// insert appends a projected book.
func (v *View) insert(b core.Book) {
	v.books = append(v.books, b)
}

// replace swaps the book with the given id for the projected one.
func (v *View) replace(id string, b core.Book) {
	for i := range v.books {
		if v.books[i].ID == id {
			v.books[i] = b
			return
		}
	}
}

// remove drops the book with the given id.
func (v *View) remove(id string) {
	for i := range v.books {
		if v.books[i].ID == id {
			v.books = append(v.books[:i], v.books[i+1:]...)
			return
		}
	}
}

// get returns the book with the given id.
func (v *View) get(id string) (core.Book, bool) {
	for _, b := range v.books {
		if b.ID == id {
			return b, true
		}
	}
	return core.Book{}, false
}
