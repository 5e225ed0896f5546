package shipping

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Ticket identifies one postal-code lookup.
type Ticket struct {
	ID         ulid.ULID
	PostalCode string
}

// Tracker applies last-write-wins to concurrent lookups: only the most
// recently issued ticket may publish its result, whatever order responses
// arrive in.
type Tracker struct {
	mu       sync.Mutex
	entropy  io.Reader
	latest   ulid.ULID
	inFlight bool
}

// NewTracker returns an idle tracker.
func NewTracker() *Tracker {
	return &Tracker{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Issue registers a new lookup, superseding any earlier one.
func (t *Tracker) Issue(postalCode string) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), t.entropy)
	t.latest = id
	t.inFlight = true
	return Ticket{ID: id, PostalCode: postalCode}
}

// Current reports whether ticket is still the latest lookup.
func (t *Tracker) Current(ticket Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ticket.ID == t.latest
}

// Complete marks ticket finished. It returns false for superseded tickets,
// whose results must be discarded.
func (t *Tracker) Complete(ticket Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket.ID != t.latest {
		return false
	}
	t.inFlight = false
	return true
}

// InFlight reports whether the latest lookup has not completed yet.
func (t *Tracker) InFlight() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

// Reset abandons any pending lookup.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.latest = ulid.ULID{}
	t.inFlight = false
}
