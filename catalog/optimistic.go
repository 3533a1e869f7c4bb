package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/shelf-labs/shelfsync/api"
	"github.com/shelf-labs/shelfsync/core"
)

// tempIDPrefix marks client-generated placeholder ids used between an
// optimistic insert and the reconciling refetch.
const tempIDPrefix = "tmp-"

// IsTempID reports whether id is a client-generated placeholder. After a
// successful reconciliation no visible book carries one.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

func tempID() string {
	return tempIDPrefix + uuid.NewString()
}

// ErrLoginRequired is returned when a mutation needs an authenticated user
// and the session is anonymous.
var ErrLoginRequired = errors.New("Please login to borrow a book")

// MutationKind identifies which optimistic protocol ran.
type MutationKind string

const (
	KindCreate MutationKind = "create"
	KindUpdate MutationKind = "update"
	KindDelete MutationKind = "delete"
	KindBorrow MutationKind = "borrow"
	KindToggle MutationKind = "toggle"
)

// MutationError is a failed (and rolled-back) mutation. Message is the
// server's text when present, a per-operation default otherwise. For create
// and update, Draft carries the rejected submission so a form can re-open
// with the user's input intact.
type MutationError struct {
	Kind    MutationKind
	Message string
	Draft   *core.Book
	Err     error
}

func (e *MutationError) Error() string {
	return e.Message
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// IdentitySource yields the current authenticated identity, nil when
// anonymous. The session controller satisfies this.
type IdentitySource interface {
	Identity() *core.Identity
}

// Mutator wraps catalog mutations in the optimistic protocol: capture a
// snapshot, project the change onto the visible collection, issue the server
// call, then either refetch (success) or restore the snapshot (failure).
// Steps run strictly in that order within one invocation; across invocations
// the freshest refetch wins and stale ones are dropped (see View).
//
// A failed reconciling refetch after a successful mutation leaves the
// projection in place and is only logged: the mutation itself succeeded and
// the next listing restores server truth.
type Mutator struct {
	svc    *Service
	ids    IdentitySource
	logger *slog.Logger

	fetchSeq atomic.Uint64

	mu     sync.Mutex
	view   View
	filter core.Filter
}

// NewMutator creates a Mutator over the given service. ids may be nil for a
// client that never borrows.
func NewMutator(svc *Service, ids IdentitySource, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mutator{svc: svc, ids: ids, logger: logger}
}

// Books returns a copy of the visible collection.
func (m *Mutator) Books() []core.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.Books()
}

// Favorites returns the visible books flagged as favorites.
func (m *Mutator) Favorites() []core.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.Book
	for _, b := range m.view.books {
		if b.IsFavorite {
			out = append(out, b)
		}
	}
	return out
}

// Search replaces the active filter and refetches.
func (m *Mutator) Search(ctx context.Context, f core.Filter) error {
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
	return m.Refresh(ctx)
}

// Refresh fetches the authoritative listing for the active filter and
// reconciles the visible collection with it.
func (m *Mutator) Refresh(ctx context.Context) error {
	m.mu.Lock()
	filter := m.filter
	m.mu.Unlock()

	// Stamp before the call so a slower, earlier-started refetch cannot
	// overwrite a fresher one.
	seq := m.fetchSeq.Add(1)

	books, err := m.svc.List(ctx, filter)
	if err != nil {
		return &MutationError{Kind: KindUpdate, Message: api.Message(err, msgFetchFailed), Err: err}
	}

	m.mu.Lock()
	applied := m.view.reconcile(seq, books)
	m.mu.Unlock()
	if !applied {
		m.logger.Debug("dropping stale catalog refetch", "seq", seq)
	}
	return nil
}

// Create optimistically inserts the draft under a placeholder id, then
// persists it. On failure the collection reverts and the returned
// MutationError carries the draft for re-editing.
func (m *Mutator) Create(ctx context.Context, draft core.Book) error {
	submitted := draft
	if draft.Status == "" {
		draft.Status = core.StatusAvailable
	}
	draft.ID = tempID()

	m.mu.Lock()
	prev := m.view.snapshot()
	m.view.insert(draft)
	m.mu.Unlock()

	if err := m.svc.Create(ctx, draft); err != nil {
		m.rollback(prev)
		return &MutationError{
			Kind:    KindCreate,
			Message: api.Message(err, msgSaveFailed),
			Draft:   &submitted,
			Err:     err,
		}
	}

	m.reconcileAfter(ctx, KindCreate)
	return nil
}

// Update optimistically replaces the identified book with the draft, keeping
// the existing image reference when the draft has none, then persists it.
func (m *Mutator) Update(ctx context.Context, id string, draft core.Book) error {
	submitted := draft
	draft.ID = id

	m.mu.Lock()
	prev := m.view.snapshot()
	if current, ok := m.view.get(id); ok && draft.ImageRef == "" {
		draft.ImageRef = current.ImageRef
	}
	m.view.replace(id, draft)
	m.mu.Unlock()

	if err := m.svc.Update(ctx, id, draft); err != nil {
		m.rollback(prev)
		return &MutationError{
			Kind:    KindUpdate,
			Message: api.Message(err, msgSaveFailed),
			Draft:   &submitted,
			Err:     err,
		}
	}

	m.reconcileAfter(ctx, KindUpdate)
	return nil
}

// Delete optimistically removes the book, then persists the removal.
func (m *Mutator) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	prev := m.view.snapshot()
	m.view.remove(id)
	m.mu.Unlock()

	if err := m.svc.Delete(ctx, id); err != nil {
		m.rollback(prev)
		return &MutationError{Kind: KindDelete, Message: api.Message(err, msgDeleteFailed), Err: err}
	}

	m.reconcileAfter(ctx, KindDelete)
	return nil
}

// Borrow optimistically marks the book taken, then lends it to the current
// user. It requires an authenticated session.
func (m *Mutator) Borrow(ctx context.Context, bookID string) error {
	var identity *core.Identity
	if m.ids != nil {
		identity = m.ids.Identity()
	}
	if identity == nil {
		return ErrLoginRequired
	}

	m.mu.Lock()
	prev := m.view.snapshot()
	if b, ok := m.view.get(bookID); ok {
		b.Status = core.StatusTaken
		m.view.replace(bookID, b)
	}
	m.mu.Unlock()

	if err := m.svc.Borrow(ctx, identity.ID, bookID); err != nil {
		m.rollback(prev)
		return &MutationError{Kind: KindBorrow, Message: api.Message(err, msgBorrowFailed), Err: err}
	}

	m.reconcileAfter(ctx, KindBorrow)
	return nil
}

// ToggleFavorite flips the favorite flag on the visible book. There is no
// persistence call behind it: the flag is a client-side projection only and
// resets to server truth on the next refetch.
func (m *Mutator) ToggleFavorite(bookID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.view.get(bookID); ok {
		b.IsFavorite = !b.IsFavorite
		m.view.replace(bookID, b)
	}
}

func (m *Mutator) rollback(prev []core.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.restore(prev)
}

// reconcileAfter refetches server truth after a successful mutation; the
// authoritative listing discards placeholder ids and any projected guesses.
func (m *Mutator) reconcileAfter(ctx context.Context, kind MutationKind) {
	if err := m.Refresh(ctx); err != nil {
		m.logger.Warn("reconciling refetch failed", "mutation", string(kind), "error", err)
	}
}
