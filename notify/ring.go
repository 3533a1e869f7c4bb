package notify

import "sync"

// Ring is a bounded buffer of recent events, newest first. Once full, adding
// drops the oldest event; memory use is capped regardless of how long the
// channel stays open.
type Ring struct {
	mu     sync.Mutex
	events []Event
	cap    int
}

// NewRing creates a ring holding at most capacity events (default 100).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 100
	}
	return &Ring{cap: capacity}
}

// Add records an event as the newest entry, evicting the oldest when full.
func (r *Ring) Add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append([]Event{e}, r.events...)
	if len(r.events) > r.cap {
		r.events = r.events[:r.cap]
	}
}

// Recent returns a copy of the buffered events, newest first.
func (r *Ring) Recent() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
