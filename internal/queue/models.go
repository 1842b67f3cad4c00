package queue

import (
	"fmt"
	"time"

	"stallbook/internal/stallkey"
)

// EntryState is the lifecycle state of a queue ticket
type EntryState string

const (
	StateWaiting  EntryState = "WAITING"
	StateOffered  EntryState = "OFFERED"
	StateAccepted EntryState = "ACCEPTED"
	StateExpired  EntryState = "EXPIRED"
)

// An entry that loses its offer is removed, never sent back to WAITING.
var validTransitions = map[EntryState][]EntryState{
	StateWaiting:  {StateOffered, StateExpired},
	StateOffered:  {StateAccepted, StateExpired},
	StateAccepted: {},
	StateExpired:  {},
}

func (s EntryState) CanTransitionTo(target EntryState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s EntryState) IsTerminal() bool {
	return s == StateAccepted || s == StateExpired
}

// EndReason records why a ticket left the active line
type EndReason string

const (
	EndRejected    EndReason = "REJECTED"
	EndTimedOut    EndReason = "TIMED_OUT"
	EndLeft        EndReason = "LEFT"
	EndStallBooked EndReason = "STALL_BOOKED"
	EndBooked      EndReason = "BOOKED"
	EndClaimLapsed EndReason = "CLAIM_LAPSED"
)

// QueueEntry is one user's ticket for a stall on a date.
type QueueEntry struct {
	ID             string       `json:"id"`
	Key            stallkey.Key `json:"stallKey"`
	UserID         string       `json:"userId"`
	DisplayName    string       `json:"displayName"`
	Position       int          `json:"position"`
	State          EntryState   `json:"state"`
	OfferExpiresAt *time.Time   `json:"offerExpiresAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	AcceptedAt     *time.Time   `json:"acceptedAt,omitempty"`
	EndedAt        *time.Time   `json:"endedAt,omitempty"`
	EndReason      EndReason    `json:"endReason,omitempty"`
}

// OfferLapsed is the pure expiry rule every read applies.
func (e *QueueEntry) OfferLapsed(now time.Time) bool {
	return e.State == StateOffered && e.OfferExpiresAt != nil && !now.Before(*e.OfferExpiresAt)
}

// TimeLeft is max(0, offerExpiresAt - now) for an offered entry, else 0.
func (e *QueueEntry) TimeLeft(now time.Time) time.Duration {
	if e.State != StateOffered || e.OfferExpiresAt == nil {
		return 0
	}
	if d := e.OfferExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (e *QueueEntry) clone() *QueueEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.OfferExpiresAt = copyTime(e.OfferExpiresAt)
	c.AcceptedAt = copyTime(e.AcceptedAt)
	c.EndedAt = copyTime(e.EndedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Claim is the right an accepted ticket holds while its booking is made.
// No one else is offered the stall while a claim is outstanding.
type Claim struct {
	TicketID   string    `json:"ticketId"`
	UserID     string    `json:"userId"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Finalizing bool      `json:"finalizing"`
}

func (c *Claim) Lapsed(now time.Time) bool {
	return !c.Finalizing && !now.Before(c.ExpiresAt)
}

// StallQueue is the persisted line for one key. Entries are ordered by
// position; only WAITING and OFFERED entries live here.
type StallQueue struct {
	Key     stallkey.Key  `json:"stallKey"`
	Entries []*QueueEntry `json:"entries"`
	Claim   *Claim        `json:"claim,omitempty"`
}

func (q *StallQueue) IsEmpty() bool {
	return len(q.Entries) == 0 && q.Claim == nil
}

// LiveAt reports whether the line would still be non-empty once everything
// due at now is settled: a live claim, a live offer or anyone waiting.
func (q *StallQueue) LiveAt(now time.Time) bool {
	if q.Claim != nil && !q.Claim.Lapsed(now) {
		return true
	}
	for _, e := range q.Entries {
		if e.State == StateWaiting || !e.OfferLapsed(now) {
			return true
		}
	}
	return false
}

func (q *StallQueue) Head() *QueueEntry {
	if len(q.Entries) == 0 {
		return nil
	}
	return q.Entries[0]
}

func (q *StallQueue) indexOf(ticketID string) int {
	for i, e := range q.Entries {
		if e.ID == ticketID {
			return i
		}
	}
	return -1
}

func (q *StallQueue) indexOfUser(userID string) int {
	for i, e := range q.Entries {
		if e.UserID == userID {
			return i
		}
	}
	return -1
}

// remove takes the entry at i out of the line and renumbers the rest.
func (q *StallQueue) remove(i int) *QueueEntry {
	e := q.Entries[i]
	q.Entries = append(q.Entries[:i], q.Entries[i+1:]...)
	q.renumber()
	e.Position = 0
	return e
}

func (q *StallQueue) renumber() {
	for i, e := range q.Entries {
		e.Position = i + 1
	}
}

// Validate checks the line invariants: positions are 1..N in order and only
// the head may be OFFERED.
func (q *StallQueue) Validate() error {
	seen := make(map[string]bool, len(q.Entries))
	for i, e := range q.Entries {
		if e.Position != i+1 {
			return fmt.Errorf("entry %s at index %d has position %d", e.ID, i, e.Position)
		}
		if e.State.IsTerminal() {
			return fmt.Errorf("terminal entry %s still queued", e.ID)
		}
		if e.State == StateOffered && i != 0 {
			return fmt.Errorf("entry %s offered at position %d", e.ID, e.Position)
		}
		if seen[e.UserID] {
			return fmt.Errorf("user %s queued twice", e.UserID)
		}
		seen[e.UserID] = true
	}
	if q.Claim != nil {
		if h := q.Head(); h != nil && h.State == StateOffered {
			return fmt.Errorf("entry %s offered while claim %s is outstanding", h.ID, q.Claim.TicketID)
		}
	}
	return nil
}

func (q *StallQueue) clone() *StallQueue {
	c := &StallQueue{Key: q.Key, Entries: make([]*QueueEntry, len(q.Entries))}
	for i, e := range q.Entries {
		c.Entries[i] = e.clone()
	}
	if q.Claim != nil {
		claim := *q.Claim
		c.Claim = &claim
	}
	return c
}
