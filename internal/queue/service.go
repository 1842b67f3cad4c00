package queue

import (
	"context"
	"fmt"
	"time"

	"stallbook/internal/notifications"
	"stallbook/internal/shared/apperr"
	"stallbook/internal/stallkey"
	"stallbook/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Coordinator runs the FIFO waiting line for contested stalls. Every
// operation settles lapsed offers and claims before it looks at the line,
// so correctness never depends on the background sweep.
type Coordinator interface {
	Enqueue(ctx context.Context, key stallkey.Key, userID, displayName string) (*TicketStatus, error)
	Status(ctx context.Context, key stallkey.Key, userID string) (*TicketStatus, error)
	Ticket(ctx context.Context, ticketID string) (*TicketStatus, error)
	ListQueue(ctx context.Context, key stallkey.Key) ([]QueueEntry, error)
	Accept(ctx context.Context, ticketID string) (*QueueEntry, error)
	// Reject and Leave return the newly offered entry, if the head changed.
	Reject(ctx context.Context, ticketID string) (*QueueEntry, error)
	Leave(ctx context.Context, ticketID string) (*QueueEntry, error)
	SweepExpiredOffers(ctx context.Context) ([]SweepResult, error)
	Stats(ctx context.Context, key stallkey.Key) (*QueueStats, error)
	HasActivity(ctx context.Context, key stallkey.Key) (bool, error)
	// LineActiveLocked is HasActivity for callers that already hold key's
	// lock in the shared Locker. It reads without settling or writing.
	LineActiveLocked(ctx context.Context, key stallkey.Key) (bool, error)

	// BeginClaim marks an accepted ticket's claim as being finalized.
	BeginClaim(ctx context.Context, ticketID string) (*Claim, stallkey.Key, error)
	// CompleteClaim consumes the claim and closes the line: the stall is booked.
	CompleteClaim(ctx context.Context, ticketID string) error
	// AbortClaim undoes BeginClaim. With stallBooked the claim is dropped and
	// the line closed, otherwise the ticket may retry within its window.
	AbortClaim(ctx context.Context, ticketID string, stallBooked bool) error
	// CloseForBooking ends the line after the stall was booked from a hold.
	CloseForBooking(ctx context.Context, key stallkey.Key) error
}

// BookingGuard tells the coordinator whether a stall is already booked.
type BookingGuard interface {
	IsBooked(ctx context.Context, key stallkey.Key) (bool, error)
}

type CoordinatorConfig struct {
	OfferWindow    time.Duration
	ClaimWindow    time.Duration
	MaxQueueLength int
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		OfferWindow:    10 * time.Minute,
		ClaimWindow:    10 * time.Minute,
		MaxQueueLength: 500,
	}
}

type TicketStatus struct {
	Entry        QueueEntry
	TotalInQueue int
	TimeLeft     time.Duration
}

type SweepResult struct {
	Key         stallkey.Key
	Expired     []QueueEntry
	Promoted    *QueueEntry
	ClaimLapsed *Claim
}

type QueueStats struct {
	Key          stallkey.Key `json:"stallKey"`
	Total        int          `json:"total"`
	Waiting      int          `json:"waiting"`
	Offered      int          `json:"offered"`
	ClaimPending bool         `json:"claimPending"`
	OfferExpiry  *time.Time   `json:"offerExpiresAt,omitempty"`
}

type coordinator struct {
	store    Store
	keys     *stallkey.Locker
	clock    clockwork.Clock
	notifier notifications.Notifier
	guard    BookingGuard
	config   CoordinatorConfig
	log      *logger.Logger
}

func NewCoordinator(store Store, keys *stallkey.Locker, clock clockwork.Clock, notifier notifications.Notifier, guard BookingGuard, config CoordinatorConfig) Coordinator {
	defaults := DefaultCoordinatorConfig()
	if config.OfferWindow <= 0 {
		config.OfferWindow = defaults.OfferWindow
	}
	if config.ClaimWindow <= 0 {
		config.ClaimWindow = defaults.ClaimWindow
	}
	return &coordinator{
		store:    store,
		keys:     keys,
		clock:    clock,
		notifier: notifier,
		guard:    guard,
		config:   config,
		log:      logger.GetDefault(),
	}
}

// change collects everything one locked operation did to a key's queue.
type change struct {
	ctx       context.Context
	q         *StallQueue
	now       time.Time
	positions map[string]int
	dirty     bool
	tickets   []*QueueEntry
	events    []notifications.Event

	expired     []QueueEntry
	promoted    *QueueEntry
	lapsedClaim *Claim
}

// withQueue runs fn on the settled queue for key under the key lock, then
// persists and notifies. Settled state is saved even when fn fails.
func (c *coordinator) withQueue(ctx context.Context, key stallkey.Key, fn func(ch *change) error) error {
	events, err := c.applyLocked(ctx, key, fn)
	// push only after the key lock is released
	notifications.Dispatch(ctx, c.notifier, c.log, events)
	return err
}

func (c *coordinator) applyLocked(ctx context.Context, key stallkey.Key, fn func(ch *change) error) ([]notifications.Event, error) {
	unlock := c.keys.Lock(key)
	defer unlock()

	q, err := c.store.LoadQueue(ctx, key)
	if err != nil {
		return nil, err
	}

	ch := &change{ctx: ctx, q: q, now: c.clock.Now(), positions: make(map[string]int, len(q.Entries))}
	for _, e := range q.Entries {
		ch.positions[e.ID] = e.Position
	}

	err = c.settle(ch)
	if err == nil && fn != nil {
		err = fn(ch)
	}

	if ch.dirty {
		c.positionEvents(ch)
		if perr := c.persist(ctx, ch); perr != nil {
			return nil, perr
		}
	}
	return ch.events, err
}

func (c *coordinator) persist(ctx context.Context, ch *change) error {
	for _, t := range ch.tickets {
		if err := c.store.PutTicket(ctx, t); err != nil {
			return err
		}
	}
	return c.store.SaveQueue(ctx, ch.q)
}

// settle applies every expiry that is due at ch.now until the line is stable.
func (c *coordinator) settle(ch *change) error {
	for {
		changed := false

		if cl := ch.q.Claim; cl != nil && cl.Lapsed(ch.now) {
			ch.q.Claim = nil
			lapsed := *cl
			ch.lapsedClaim = &lapsed
			ch.dirty = true
			if err := c.finishTicket(ch, cl.TicketID, EndClaimLapsed); err != nil {
				return err
			}
			ev := c.event(ch, notifications.EventQueueOfferExpired, cl.UserID)
			ev.TicketID = cl.TicketID
			ev.Message = fmt.Sprintf("Your booking window for stall %s on %s has closed", ch.q.Key.StallID, ch.q.Key.BookingDate)
			ch.events = append(ch.events, ev)
			changed = true
		}

		if head := ch.q.Head(); head != nil && head.OfferLapsed(ch.now) {
			if _, err := c.dropAt(ch, 0, EndTimedOut); err != nil {
				return err
			}
			changed = true
		}

		if next, err := c.promote(ch); err != nil {
			return err
		} else if next != nil {
			ch.promoted = next
			changed = true
		}

		if !changed {
			return nil
		}
	}
}

func (c *coordinator) transition(ch *change, e *QueueEntry, to EntryState) error {
	from := e.State
	if from != "" && !from.CanTransitionTo(to) {
		return apperr.InvalidState("queue.transition", "ticket %s cannot move from %s to %s", e.ID, from, to)
	}
	e.State = to
	c.log.LogQueueTransition(ch.ctx, e.ID, ch.q.Key.String(), e.UserID, string(from), string(to))
	return nil
}

// promote offers the stall to the head when nobody holds an offer or claim.
func (c *coordinator) promote(ch *change) (*QueueEntry, error) {
	head := ch.q.Head()
	if head == nil || head.State != StateWaiting || ch.q.Claim != nil {
		return nil, nil
	}
	if err := c.transition(ch, head, StateOffered); err != nil {
		return nil, err
	}
	expires := ch.now.Add(c.config.OfferWindow)
	head.OfferExpiresAt = &expires
	ch.dirty = true

	ev := c.event(ch, notifications.EventQueueOffered, head.UserID)
	ev.TicketID = head.ID
	ev.Position = 1
	ev.ExpiresAt = &expires
	ev.Message = fmt.Sprintf("It's your turn: stall %s on %s is offered to you for %d minutes",
		ch.q.Key.StallID, ch.q.Key.BookingDate, int(c.config.OfferWindow.Minutes()))
	ch.events = append(ch.events, ev)
	return head.clone(), nil
}

// dropAt removes the entry at i as EXPIRED with the given reason.
func (c *coordinator) dropAt(ch *change, i int, reason EndReason) (*QueueEntry, error) {
	e := ch.q.remove(i)
	if err := c.transition(ch, e, StateExpired); err != nil {
		return nil, err
	}
	now := ch.now
	e.OfferExpiresAt = nil
	e.EndedAt = &now
	e.EndReason = reason
	ch.dirty = true
	ch.tickets = append(ch.tickets, e)

	switch reason {
	case EndTimedOut:
		ch.expired = append(ch.expired, *e.clone())
		ev := c.event(ch, notifications.EventQueueOfferExpired, e.UserID)
		ev.TicketID = e.ID
		ev.Message = fmt.Sprintf("Your offer for stall %s on %s expired", ch.q.Key.StallID, ch.q.Key.BookingDate)
		ch.events = append(ch.events, ev)
	case EndStallBooked:
		ev := c.event(ch, notifications.EventStallBooked, e.UserID)
		ev.TicketID = e.ID
		ev.Message = fmt.Sprintf("Stall %s on %s has been booked", ch.q.Key.StallID, ch.q.Key.BookingDate)
		ch.events = append(ch.events, ev)
	}
	return e, nil
}

// closeLine ends every queued entry because the stall is no longer available.
func (c *coordinator) closeLine(ch *change) error {
	for len(ch.q.Entries) > 0 {
		if _, err := c.dropAt(ch, 0, EndStallBooked); err != nil {
			return err
		}
	}
	return nil
}

// finishTicket stamps the end of an accepted ticket's claim.
func (c *coordinator) finishTicket(ch *change, ticketID string, reason EndReason) error {
	t, err := c.store.GetTicket(ch.ctx, ticketID)
	if err != nil {
		return err
	}
	if t == nil {
		return nil
	}
	now := ch.now
	t.EndedAt = &now
	t.EndReason = reason
	ch.dirty = true
	ch.tickets = append(ch.tickets, t)
	return nil
}

func (c *coordinator) positionEvents(ch *change) {
	for _, e := range ch.q.Entries {
		before, known := ch.positions[e.ID]
		if !known || before == e.Position || e.State != StateWaiting {
			continue
		}
		ev := c.event(ch, notifications.EventQueuePositionUpdate, e.UserID)
		ev.TicketID = e.ID
		ev.Position = e.Position
		ev.Message = fmt.Sprintf("You are now number %d in line for stall %s", e.Position, ch.q.Key.StallID)
		ch.events = append(ch.events, ev)
	}
}

func (c *coordinator) event(ch *change, t notifications.EventType, userID string) notifications.Event {
	ev := notifications.NewEvent(t, userID, ch.now)
	ev.StallID = ch.q.Key.StallID
	ev.Date = ch.q.Key.BookingDate
	return ev
}

func (c *coordinator) statusOf(ch *change, e *QueueEntry) *TicketStatus {
	return &TicketStatus{
		Entry:        *e.clone(),
		TotalInQueue: len(ch.q.Entries),
		TimeLeft:     e.TimeLeft(ch.now),
	}
}

func (c *coordinator) lookupTicket(ctx context.Context, ticketID string) (*QueueEntry, error) {
	if ticketID == "" {
		return nil, apperr.Validation("queue.ticket", "queueId is required")
	}
	t, err := c.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, apperr.NotFound("queue.ticket", "queue ticket %s not found", ticketID)
	}
	return t, nil
}

// endedTicket finds a ticket that is no longer in the line, preferring the
// version this operation just wrote.
func (c *coordinator) endedTicket(ch *change, ticketID string) (*QueueEntry, error) {
	for i := len(ch.tickets) - 1; i >= 0; i-- {
		if ch.tickets[i].ID == ticketID {
			return ch.tickets[i].clone(), nil
		}
	}
	t, err := c.store.GetTicket(ch.ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if t == nil || !t.State.IsTerminal() {
		return nil, apperr.NotFound("queue.ticket", "queue ticket %s not found", ticketID)
	}
	return t, nil
}

func (c *coordinator) Enqueue(ctx context.Context, key stallkey.Key, userID, displayName string) (*TicketStatus, error) {
	if userID == "" {
		return nil, apperr.Validation("queue.enqueue", "userId is required")
	}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var out *TicketStatus
	err := c.withQueue(ctx, key, func(ch *change) error {
		// checked under the key lock so a booking cannot close the line in between
		if c.guard != nil {
			booked, err := c.guard.IsBooked(ctx, key)
			if err != nil {
				return err
			}
			if booked {
				return apperr.AlreadyBooked("queue.enqueue", "stall %s is already booked", key)
			}
		}
		q := ch.q
		if q.indexOfUser(userID) >= 0 {
			return apperr.Conflict("queue.enqueue", "user %s is already queued for stall %s", userID, key)
		}
		if q.Claim != nil && q.Claim.UserID == userID {
			return apperr.Conflict("queue.enqueue", "user %s already accepted the offer for stall %s", userID, key)
		}
		if c.config.MaxQueueLength > 0 && len(q.Entries) >= c.config.MaxQueueLength {
			return apperr.Conflict("queue.enqueue", "queue for stall %s is full", key)
		}

		e := &QueueEntry{
			ID:          uuid.NewString(),
			Key:         key,
			UserID:      userID,
			DisplayName: displayName,
			Position:    len(q.Entries) + 1,
			CreatedAt:   ch.now,
		}
		if err := c.transition(ch, e, StateWaiting); err != nil {
			return err
		}
		q.Entries = append(q.Entries, e)
		ch.dirty = true
		ch.tickets = append(ch.tickets, e)

		if _, err := c.promote(ch); err != nil {
			return err
		}
		out = c.statusOf(ch, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinator) Status(ctx context.Context, key stallkey.Key, userID string) (*TicketStatus, error) {
	var out *TicketStatus
	err := c.withQueue(ctx, key, func(ch *change) error {
		idx := ch.q.indexOfUser(userID)
		if idx < 0 {
			return apperr.NotFound("queue.status", "user %s is not queued for stall %s", userID, key)
		}
		out = c.statusOf(ch, ch.q.Entries[idx])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinator) Ticket(ctx context.Context, ticketID string) (*TicketStatus, error) {
	t, err := c.lookupTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	var out *TicketStatus
	err = c.withQueue(ctx, t.Key, func(ch *change) error {
		if idx := ch.q.indexOf(ticketID); idx >= 0 {
			out = c.statusOf(ch, ch.q.Entries[idx])
			return nil
		}
		ended, err := c.endedTicket(ch, ticketID)
		if err != nil {
			return err
		}
		out = &TicketStatus{Entry: *ended, TotalInQueue: len(ch.q.Entries)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinator) ListQueue(ctx context.Context, key stallkey.Key) ([]QueueEntry, error) {
	var out []QueueEntry
	err := c.withQueue(ctx, key, func(ch *change) error {
		out = make([]QueueEntry, 0, len(ch.q.Entries))
		for _, e := range ch.q.Entries {
			out = append(out, *e.clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *coordinator) Accept(ctx context.Context, ticketID string) (*QueueEntry, error) {
	t, err := c.lookupTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	var out *QueueEntry
	err = c.withQueue(ctx, t.Key, func(ch *change) error {
		q := ch.q
		idx := q.indexOf(ticketID)
		if idx < 0 {
			ended, err := c.endedTicket(ch, ticketID)
			if err != nil {
				return err
			}
			if cl := q.Claim; cl != nil && cl.TicketID == ticketID {
				// retried accept while the claim is still open
				out = ended
				return nil
			}
			return acceptRefusal(ticketID, ended)
		}

		e := q.Entries[idx]
		if e.State != StateOffered {
			return apperr.InvalidState("queue.accept", "ticket %s is %s; only an OFFERED ticket can be accepted", ticketID, e.State)
		}

		q.remove(idx)
		if err := c.transition(ch, e, StateAccepted); err != nil {
			return err
		}
		now := ch.now
		e.AcceptedAt = &now
		e.OfferExpiresAt = nil
		q.Claim = &Claim{
			TicketID:  e.ID,
			UserID:    e.UserID,
			ExpiresAt: now.Add(c.config.ClaimWindow),
		}
		ch.dirty = true
		ch.tickets = append(ch.tickets, e)

		ev := c.event(ch, notifications.EventQueueAccepted, e.UserID)
		ev.TicketID = e.ID
		claimEnds := q.Claim.ExpiresAt
		ev.ExpiresAt = &claimEnds
		ev.Message = fmt.Sprintf("Offer accepted: complete your booking for stall %s before the window closes", q.Key.StallID)
		ch.events = append(ch.events, ev)

		out = e.clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// acceptRefusal explains why a ticket that left the line cannot be accepted.
func acceptRefusal(ticketID string, ended *QueueEntry) error {
	switch ended.EndReason {
	case EndTimedOut:
		return apperr.Expired("queue.accept", "offer for ticket %s has expired", ticketID)
	case EndClaimLapsed:
		return apperr.Expired("queue.accept", "booking window for ticket %s has lapsed", ticketID)
	case EndStallBooked, EndBooked:
		return apperr.AlreadyBooked("queue.accept", "stall %s is already booked", ended.Key)
	}
	return apperr.InvalidState("queue.accept", "ticket %s is %s (%s); only an OFFERED ticket can be accepted", ticketID, ended.State, ended.EndReason)
}

func (c *coordinator) Reject(ctx context.Context, ticketID string) (*QueueEntry, error) {
	return c.removeTicket(ctx, "queue.reject", ticketID, EndRejected, func(s EntryState) bool {
		return s == StateOffered
	})
}

func (c *coordinator) Leave(ctx context.Context, ticketID string) (*QueueEntry, error) {
	return c.removeTicket(ctx, "queue.leave", ticketID, EndLeft, func(s EntryState) bool {
		return s == StateOffered || s == StateWaiting
	})
}

// removeTicket drops an active ticket and offers the stall to the new head.
// A ticket that already left the line is a no-op.
func (c *coordinator) removeTicket(ctx context.Context, op, ticketID string, reason EndReason, allowed func(EntryState) bool) (*QueueEntry, error) {
	t, err := c.lookupTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	var next *QueueEntry
	err = c.withQueue(ctx, t.Key, func(ch *change) error {
		idx := ch.q.indexOf(ticketID)
		if idx < 0 {
			return nil
		}
		e := ch.q.Entries[idx]
		if !allowed(e.State) {
			return apperr.InvalidState(op, "ticket %s is %s", ticketID, e.State)
		}
		if _, err := c.dropAt(ch, idx, reason); err != nil {
			return err
		}
		promoted, err := c.promote(ch)
		if err != nil {
			return err
		}
		next = promoted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (c *coordinator) SweepExpiredOffers(ctx context.Context) ([]SweepResult, error) {
	keys, err := c.store.ActiveKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active queues: %w", err)
	}

	var results []SweepResult
	for _, key := range keys {
		var res SweepResult
		err := c.withQueue(ctx, key, func(ch *change) error {
			res = SweepResult{Key: key, Expired: ch.expired, Promoted: ch.promoted, ClaimLapsed: ch.lapsedClaim}
			return nil
		})
		if err != nil {
			c.log.WithStallKey(key.String()).WithError(err).ErrorContext(ctx, "queue sweep failed")
			continue
		}
		if len(res.Expired) > 0 || res.Promoted != nil || res.ClaimLapsed != nil {
			results = append(results, res)
		}
	}
	return results, nil
}

func (c *coordinator) Stats(ctx context.Context, key stallkey.Key) (*QueueStats, error) {
	stats := &QueueStats{Key: key}
	err := c.withQueue(ctx, key, func(ch *change) error {
		stats.Total = len(ch.q.Entries)
		stats.ClaimPending = ch.q.Claim != nil
		for _, e := range ch.q.Entries {
			switch e.State {
			case StateWaiting:
				stats.Waiting++
			case StateOffered:
				stats.Offered++
				stats.OfferExpiry = copyTime(e.OfferExpiresAt)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *coordinator) HasActivity(ctx context.Context, key stallkey.Key) (bool, error) {
	active := false
	err := c.withQueue(ctx, key, func(ch *change) error {
		active = !ch.q.IsEmpty()
		return nil
	})
	return active, err
}

func (c *coordinator) LineActiveLocked(ctx context.Context, key stallkey.Key) (bool, error) {
	q, err := c.store.LoadQueue(ctx, key)
	if err != nil {
		return false, err
	}
	return q.LiveAt(c.clock.Now()), nil
}

func (c *coordinator) BeginClaim(ctx context.Context, ticketID string) (*Claim, stallkey.Key, error) {
	t, err := c.lookupTicket(ctx, ticketID)
	if err != nil {
		return nil, stallkey.Key{}, err
	}

	var out Claim
	err = c.withQueue(ctx, t.Key, func(ch *change) error {
		cl := ch.q.Claim
		if cl == nil || cl.TicketID != ticketID {
			if ch.q.indexOf(ticketID) >= 0 {
				return apperr.InvalidState("queue.claim", "ticket %s must be accepted before booking", ticketID)
			}
			ended, err := c.endedTicket(ch, ticketID)
			if err != nil {
				return err
			}
			if ended.EndReason == EndBooked {
				return apperr.AlreadyBooked("queue.claim", "ticket %s was already used to book stall %s", ticketID, t.Key)
			}
			if ended.EndReason == EndStallBooked {
				return apperr.AlreadyBooked("queue.claim", "stall %s was booked by someone else", t.Key)
			}
			return apperr.Expired("queue.claim", "booking window for ticket %s has lapsed", ticketID)
		}
		if cl.Finalizing {
			return apperr.Conflict("queue.claim", "booking for ticket %s is already in progress", ticketID)
		}
		cl.Finalizing = true
		ch.dirty = true
		out = *cl
		return nil
	})
	if err != nil {
		return nil, stallkey.Key{}, err
	}
	return &out, t.Key, nil
}

func (c *coordinator) finalizingClaim(ch *change, op, ticketID string) (*Claim, error) {
	cl := ch.q.Claim
	if cl == nil || cl.TicketID != ticketID || !cl.Finalizing {
		return nil, apperr.InvalidState(op, "no booking in progress for ticket %s", ticketID)
	}
	return cl, nil
}

func (c *coordinator) CompleteClaim(ctx context.Context, ticketID string) error {
	t, err := c.lookupTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	return c.withQueue(ctx, t.Key, func(ch *change) error {
		if _, err := c.finalizingClaim(ch, "queue.complete", ticketID); err != nil {
			return err
		}
		ch.q.Claim = nil
		ch.dirty = true
		if err := c.finishTicket(ch, ticketID, EndBooked); err != nil {
			return err
		}
		return c.closeLine(ch)
	})
}

func (c *coordinator) AbortClaim(ctx context.Context, ticketID string, stallBooked bool) error {
	t, err := c.lookupTicket(ctx, ticketID)
	if err != nil {
		return err
	}
	return c.withQueue(ctx, t.Key, func(ch *change) error {
		cl, err := c.finalizingClaim(ch, "queue.abort", ticketID)
		if err != nil {
			return err
		}
		ch.dirty = true
		if !stallBooked {
			cl.Finalizing = false
			return nil
		}

		ch.q.Claim = nil
		if err := c.finishTicket(ch, ticketID, EndStallBooked); err != nil {
			return err
		}
		ev := c.event(ch, notifications.EventStallBooked, cl.UserID)
		ev.TicketID = ticketID
		ev.Message = fmt.Sprintf("Stall %s on %s was booked before your booking completed", ch.q.Key.StallID, ch.q.Key.BookingDate)
		ch.events = append(ch.events, ev)
		return c.closeLine(ch)
	})
}

func (c *coordinator) CloseForBooking(ctx context.Context, key stallkey.Key) error {
	return c.withQueue(ctx, key, func(ch *change) error {
		if cl := ch.q.Claim; cl != nil && !cl.Finalizing {
			ch.q.Claim = nil
			ch.dirty = true
			if err := c.finishTicket(ch, cl.TicketID, EndStallBooked); err != nil {
				return err
			}
			ev := c.event(ch, notifications.EventStallBooked, cl.UserID)
			ev.TicketID = cl.TicketID
			ev.Message = fmt.Sprintf("Stall %s on %s has been booked", ch.q.Key.StallID, ch.q.Key.BookingDate)
			ch.events = append(ch.events, ev)
		}
		return c.closeLine(ch)
	})
}
