package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stallbook/internal/notifications"
	"stallbook/internal/shared/apperr"
	"stallbook/internal/stallkey"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock       *clockwork.FakeClock
	store       Store
	coordinator Coordinator
	notifier    *notifications.Recorder
}

type bookedSet map[stallkey.Key]bool

func (b bookedSet) IsBooked(_ context.Context, key stallkey.Key) (bool, error) {
	return b[key], nil
}

func newFixture(t *testing.T, opts ...func(*CoordinatorConfig)) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(start)
	return newFixtureWithStore(t, clock, NewMemoryStore(clock.Now, 24*time.Hour), nil, opts...)
}

func newFixtureWithStore(t *testing.T, clock *clockwork.FakeClock, store Store, guard BookingGuard, opts ...func(*CoordinatorConfig)) *fixture {
	t.Helper()
	cfg := DefaultCoordinatorConfig()
	for _, o := range opts {
		o(&cfg)
	}
	rec := &notifications.Recorder{}
	c := NewCoordinator(store, stallkey.NewLocker(), clock, rec, guard, cfg)
	return &fixture{clock: clock, store: store, coordinator: c, notifier: rec}
}

func key(t *testing.T, stall string) stallkey.Key {
	t.Helper()
	k, err := stallkey.New(stall, "2026-02-01")
	require.NoError(t, err)
	return k
}

func (f *fixture) assertLineValid(t *testing.T, k stallkey.Key) {
	t.Helper()
	q, err := f.store.LoadQueue(context.Background(), k)
	require.NoError(t, err)
	require.NoError(t, q.Validate())
}

func TestEnqueueRejectPromotesNext(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05 := key(t, "B05")

	a, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Entry.Position)
	assert.Equal(t, StateOffered, a.Entry.State)
	assert.Equal(t, 10*time.Minute, a.TimeLeft)
	assert.Equal(t, 1, a.TotalInQueue)

	b, err := f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Entry.Position)
	assert.Equal(t, StateWaiting, b.Entry.State)
	assert.Nil(t, b.Entry.OfferExpiresAt)
	assert.Equal(t, 2, b.TotalInQueue)

	f.clock.Advance(3 * time.Minute)
	next, err := f.coordinator.Reject(ctx, a.Entry.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, b.Entry.ID, next.ID)
	assert.Equal(t, 1, next.Position)
	assert.Equal(t, StateOffered, next.State)
	assert.True(t, next.OfferExpiresAt.Equal(f.clock.Now().Add(10*time.Minute)))

	list, err := f.coordinator.ListQueue(ctx, b05)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "userB", list[0].UserID)
	assert.Equal(t, 1, list[0].Position)

	status, err := f.coordinator.Status(ctx, b05, "userB")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, status.TimeLeft)

	rejected, err := f.coordinator.Ticket(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, rejected.Entry.State)
	assert.Equal(t, EndRejected, rejected.Entry.EndReason)
	assert.Zero(t, rejected.Entry.Position)

	f.assertLineValid(t, b05)
}

func TestEnqueueDuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05 := key(t, "B05")

	first, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	_, err = f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)

	_, err = f.coordinator.Enqueue(ctx, b05, "userA", "Alice again")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	status, err := f.coordinator.Status(ctx, b05, "userA")
	require.NoError(t, err)
	assert.Equal(t, first.Entry.ID, status.Entry.ID)
	assert.Equal(t, 1, status.Entry.Position)
	assert.Equal(t, StateOffered, status.Entry.State)
	assert.Equal(t, "Alice", status.Entry.DisplayName)

	// another date is an independent line
	other, err := stallkey.New("B05", "2026-02-02")
	require.NoError(t, err)
	s, err := f.coordinator.Enqueue(ctx, other, "userA", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Entry.Position)
}

func TestEnqueueValidationAndLimits(t *testing.T) {
	f := newFixture(t, func(c *CoordinatorConfig) { c.MaxQueueLength = 2 })
	ctx := context.Background()
	b05 := key(t, "B05")

	_, err := f.coordinator.Enqueue(ctx, b05, "", "Nobody")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.coordinator.Enqueue(ctx, stallkey.Key{StallID: "B05", BookingDate: "soon"}, "userA", "Alice")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	for _, u := range []string{"userA", "userB"} {
		_, err := f.coordinator.Enqueue(ctx, b05, u, u)
		require.NoError(t, err)
	}
	_, err = f.coordinator.Enqueue(ctx, b05, "userC", "Carol")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestEnqueueRefusesBookedStall(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	b05 := key(t, "B05")
	f := newFixtureWithStore(t, clock, NewMemoryStore(clock.Now, time.Hour), bookedSet{b05: true})

	_, err := f.coordinator.Enqueue(context.Background(), b05, "userA", "Alice")
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)
}

func TestOfferExpiresLazilyOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c03 := key(t, "C03")

	a, err := f.coordinator.Enqueue(ctx, c03, "userA", "Alice")
	require.NoError(t, err)
	_, err = f.coordinator.Enqueue(ctx, c03, "userB", "Bob")
	require.NoError(t, err)

	f.clock.Advance(601 * time.Second)

	b, err := f.coordinator.Status(ctx, c03, "userB")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Entry.Position)
	assert.Equal(t, StateOffered, b.Entry.State)
	assert.Equal(t, 10*time.Minute, b.TimeLeft)

	_, err = f.coordinator.Status(ctx, c03, "userA")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	ticket, err := f.coordinator.Ticket(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, ticket.Entry.State)
	assert.Equal(t, EndTimedOut, ticket.Entry.EndReason)

	_, err = f.coordinator.Accept(ctx, a.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrExpired)

	expired := f.notifier.OfType(notifications.EventQueueOfferExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, "userA", expired[0].UserID)
	f.assertLineValid(t, c03)
}

func TestSweepExpiredOffers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c03, d04 := key(t, "C03"), key(t, "D04")

	a, err := f.coordinator.Enqueue(ctx, c03, "userA", "Alice")
	require.NoError(t, err)
	b, err := f.coordinator.Enqueue(ctx, c03, "userB", "Bob")
	require.NoError(t, err)
	_, err = f.coordinator.Enqueue(ctx, d04, "userC", "Carol")
	require.NoError(t, err)

	f.clock.Advance(9 * time.Minute)
	results, err := f.coordinator.SweepExpiredOffers(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	f.clock.Advance(time.Minute)
	results, err = f.coordinator.SweepExpiredOffers(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byKey := map[stallkey.Key]SweepResult{}
	for _, r := range results {
		byKey[r.Key] = r
	}
	require.Len(t, byKey[c03].Expired, 1)
	assert.Equal(t, a.Entry.ID, byKey[c03].Expired[0].ID)
	require.NotNil(t, byKey[c03].Promoted)
	assert.Equal(t, b.Entry.ID, byKey[c03].Promoted.ID)
	assert.Nil(t, byKey[d04].Promoted)

	// a second sweep finds nothing new
	results, err = f.coordinator.SweepExpiredOffers(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	// the drained line leaves no state behind
	keys, err := f.store.ActiveKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []stallkey.Key{c03}, keys)
}

func TestAcceptHoldsClaimAndBlocksPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05 := key(t, "B05")

	a, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	b, err := f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)

	_, err = f.coordinator.Accept(ctx, b.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	accepted, err := f.coordinator.Accept(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, accepted.State)
	assert.Nil(t, accepted.OfferExpiresAt)
	require.NotNil(t, accepted.AcceptedAt)

	// retrying accept hands back the same ticket
	again, err := f.coordinator.Accept(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, accepted.ID, again.ID)
	assert.Equal(t, StateAccepted, again.State)

	status, err := f.coordinator.Status(ctx, b05, "userB")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Entry.Position)
	assert.Equal(t, StateWaiting, status.Entry.State)

	// the claimant cannot queue again while their claim is open
	_, err = f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stats, err := f.coordinator.Stats(ctx, b05)
	require.NoError(t, err)
	assert.True(t, stats.ClaimPending)
	assert.Equal(t, 1, stats.Waiting)
	assert.Equal(t, 0, stats.Offered)

	require.Len(t, f.notifier.OfType(notifications.EventQueueAccepted), 1)
	f.assertLineValid(t, b05)
}

func TestLapsedClaimPromotesNext(t *testing.T) {
	f := newFixture(t, func(c *CoordinatorConfig) { c.ClaimWindow = 5 * time.Minute })
	ctx := context.Background()
	b05 := key(t, "B05")

	a, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	_, err = f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)
	_, err = f.coordinator.Accept(ctx, a.Entry.ID)
	require.NoError(t, err)

	f.clock.Advance(5 * time.Minute)
	results, err := f.coordinator.SweepExpiredOffers(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NotNil(t, results[0].ClaimLapsed)
	assert.Equal(t, a.Entry.ID, results[0].ClaimLapsed.TicketID)
	require.NotNil(t, results[0].Promoted)
	assert.Equal(t, "userB", results[0].Promoted.UserID)

	ticket, err := f.coordinator.Ticket(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, ticket.Entry.State)
	assert.Equal(t, EndClaimLapsed, ticket.Entry.EndReason)

	_, _, err = f.coordinator.BeginClaim(ctx, a.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrExpired)
}

func TestClaimLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05 := key(t, "B05")

	a, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	b, err := f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)
	c, err := f.coordinator.Enqueue(ctx, b05, "userC", "Carol")
	require.NoError(t, err)

	_, _, err = f.coordinator.BeginClaim(ctx, a.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.coordinator.Accept(ctx, a.Entry.ID)
	require.NoError(t, err)

	claim, k, err := f.coordinator.BeginClaim(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, b05, k)
	assert.True(t, claim.Finalizing)

	_, _, err = f.coordinator.BeginClaim(ctx, a.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// a finalizing claim does not lapse
	f.clock.Advance(time.Hour)
	status, err := f.coordinator.Status(ctx, b05, "userB")
	require.NoError(t, err)
	assert.Equal(t, StateWaiting, status.Entry.State)

	// once handed back the overdue claim lapses and the next user gets the offer
	require.NoError(t, f.coordinator.AbortClaim(ctx, a.Entry.ID, false))
	status, err = f.coordinator.Status(ctx, b05, "userB")
	require.NoError(t, err)
	assert.Equal(t, StateOffered, status.Entry.State)

	_, err = f.coordinator.Accept(ctx, b.Entry.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, f.coordinator.CompleteClaim(ctx, b.Entry.ID), apperr.ErrInvalidState)

	_, _, err = f.coordinator.BeginClaim(ctx, b.Entry.ID)
	require.NoError(t, err)
	require.NoError(t, f.coordinator.CompleteClaim(ctx, b.Entry.ID))

	ticket, err := f.coordinator.Ticket(ctx, b.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, ticket.Entry.State)
	assert.Equal(t, EndBooked, ticket.Entry.EndReason)

	lapsed, err := f.coordinator.Ticket(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, EndClaimLapsed, lapsed.Entry.EndReason)

	closed, err := f.coordinator.Ticket(ctx, c.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, closed.Entry.State)
	assert.Equal(t, EndStallBooked, closed.Entry.EndReason)

	active, err := f.coordinator.HasActivity(ctx, b05)
	require.NoError(t, err)
	assert.False(t, active)

	_, _, err = f.coordinator.BeginClaim(ctx, b.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)

	booked := f.notifier.OfType(notifications.EventStallBooked)
	require.Len(t, booked, 1)
	assert.Equal(t, "userC", booked[0].UserID)
}

func TestAbortClaimWhenStallBookedElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05 := key(t, "B05")

	a, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	_, err = f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)
	_, err = f.coordinator.Accept(ctx, a.Entry.ID)
	require.NoError(t, err)
	_, _, err = f.coordinator.BeginClaim(ctx, a.Entry.ID)
	require.NoError(t, err)

	require.NoError(t, f.coordinator.AbortClaim(ctx, a.Entry.ID, true))

	list, err := f.coordinator.ListQueue(ctx, b05)
	require.NoError(t, err)
	assert.Empty(t, list)

	ticket, err := f.coordinator.Ticket(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, EndStallBooked, ticket.Entry.EndReason)
	assert.Len(t, f.notifier.OfType(notifications.EventStallBooked), 2)
}

func TestCloseForBookingEndsLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05 := key(t, "B05")

	a, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	b, err := f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)

	require.NoError(t, f.coordinator.CloseForBooking(ctx, b05))

	for _, id := range []string{a.Entry.ID, b.Entry.ID} {
		ticket, err := f.coordinator.Ticket(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, StateExpired, ticket.Entry.State)
		assert.Equal(t, EndStallBooked, ticket.Entry.EndReason)
	}
	// closing an empty line is fine
	require.NoError(t, f.coordinator.CloseForBooking(ctx, b05))
}

func TestRejectAndLeaveRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05 := key(t, "B05")

	a, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	b, err := f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)
	c, err := f.coordinator.Enqueue(ctx, b05, "userC", "Carol")
	require.NoError(t, err)

	_, err = f.coordinator.Reject(ctx, b.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	// leaving from the middle renumbers without a new offer
	next, err := f.coordinator.Leave(ctx, b.Entry.ID)
	require.NoError(t, err)
	assert.Nil(t, next)

	status, err := f.coordinator.Status(ctx, b05, "userC")
	require.NoError(t, err)
	assert.Equal(t, 2, status.Entry.Position)
	updates := f.notifier.OfType(notifications.EventQueuePositionUpdate)
	require.Len(t, updates, 1)
	assert.Equal(t, "userC", updates[0].UserID)
	assert.Equal(t, 2, updates[0].Position)

	// leaving a second time is a no-op
	next, err = f.coordinator.Leave(ctx, b.Entry.ID)
	require.NoError(t, err)
	assert.Nil(t, next)

	// the head leaving promotes the next entry
	next, err = f.coordinator.Leave(ctx, a.Entry.ID)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, c.Entry.ID, next.ID)
	assert.Equal(t, StateOffered, next.State)

	// rejecting the same ticket twice is also a no-op
	_, err = f.coordinator.Reject(ctx, c.Entry.ID)
	require.NoError(t, err)
	next, err = f.coordinator.Reject(ctx, c.Entry.ID)
	require.NoError(t, err)
	assert.Nil(t, next)

	_, err = f.coordinator.Reject(ctx, "no-such-ticket")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	offered := f.notifier.OfType(notifications.EventQueueOffered)
	require.Len(t, offered, 2)
	assert.Equal(t, "userA", offered[0].UserID)
	assert.Equal(t, "userC", offered[1].UserID)
}

func TestConcurrentEnqueueKeepsLineContiguous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05 := key(t, "B05")

	const users = 40
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.coordinator.Enqueue(ctx, b05, fmt.Sprintf("user-%02d", i), "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := f.coordinator.ListQueue(ctx, b05)
	require.NoError(t, err)
	require.Len(t, list, users)
	offered := 0
	for i, e := range list {
		assert.Equal(t, i+1, e.Position)
		if e.State == StateOffered {
			offered++
		}
	}
	assert.Equal(t, 1, offered)
	assert.Equal(t, StateOffered, list[0].State)
	f.assertLineValid(t, b05)
}

func TestConcurrentRejectAndSweepAreIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c03 := key(t, "C03")

	a, err := f.coordinator.Enqueue(ctx, c03, "userA", "Alice")
	require.NoError(t, err)
	_, err = f.coordinator.Enqueue(ctx, c03, "userB", "Bob")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.coordinator.Reject(ctx, a.Entry.ID)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.coordinator.SweepExpiredOffers(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := f.coordinator.ListQueue(ctx, c03)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "userB", list[0].UserID)
	assert.Equal(t, StateOffered, list[0].State)
	assert.Len(t, f.notifier.OfType(notifications.EventQueueOfferExpired), 1)
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	f := newFixture(t)
	f.notifier.Err = fmt.Errorf("broker down")

	status, err := f.coordinator.Enqueue(context.Background(), key(t, "B05"), "userA", "Alice")
	require.NoError(t, err)
	assert.Equal(t, StateOffered, status.Entry.State)
}

// lateBooking reports the stall free on its first read, then books it and
// closes the line as a finalizer would.
type lateBooking struct {
	coordinator Coordinator
	key         stallkey.Key
	booked      atomic.Bool
	closed      chan error
}

func (g *lateBooking) IsBooked(ctx context.Context, key stallkey.Key) (bool, error) {
	if g.booked.Swap(true) {
		return true, nil
	}
	go func() { g.closed <- g.coordinator.CloseForBooking(ctx, g.key) }()
	select {
	case err := <-g.closed:
		// the line closed while this read was in flight; hand the result back
		g.closed <- err
	case <-time.After(50 * time.Millisecond):
	}
	return false, nil
}

func TestEnqueueCannotSlipPastAClosingBooking(t *testing.T) {
	clock := clockwork.NewFakeClockAt(start)
	b05 := key(t, "B05")
	guard := &lateBooking{key: b05, closed: make(chan error, 1)}
	f := newFixtureWithStore(t, clock, NewMemoryStore(clock.Now, time.Hour), guard)
	guard.coordinator = f.coordinator
	ctx := context.Background()

	joined, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	require.NoError(t, <-guard.closed)

	ticket, err := f.coordinator.Ticket(ctx, joined.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, StateExpired, ticket.Entry.State)
	assert.Equal(t, EndStallBooked, ticket.Entry.EndReason)

	list, err := f.coordinator.ListQueue(ctx, b05)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)
}

func TestAcceptRefusalDependsOnHowTheTicketEnded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05, c03 := key(t, "B05"), key(t, "C03")

	rejected, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	left, err := f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)
	_, err = f.coordinator.Reject(ctx, rejected.Entry.ID)
	require.NoError(t, err)
	_, err = f.coordinator.Leave(ctx, left.Entry.ID)
	require.NoError(t, err)

	_, err = f.coordinator.Accept(ctx, rejected.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = f.coordinator.Accept(ctx, left.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	closed, err := f.coordinator.Enqueue(ctx, c03, "userC", "Carol")
	require.NoError(t, err)
	require.NoError(t, f.coordinator.CloseForBooking(ctx, c03))
	_, err = f.coordinator.Accept(ctx, closed.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)
}

func TestRetriedAcceptNeedsAnOpenClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b05, c03 := key(t, "B05"), key(t, "C03")

	a, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	_, err = f.coordinator.Accept(ctx, a.Entry.ID)
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	_, err = f.coordinator.Accept(ctx, a.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrExpired)

	c, err := f.coordinator.Enqueue(ctx, c03, "userC", "Carol")
	require.NoError(t, err)
	_, err = f.coordinator.Accept(ctx, c.Entry.ID)
	require.NoError(t, err)
	_, _, err = f.coordinator.BeginClaim(ctx, c.Entry.ID)
	require.NoError(t, err)
	require.NoError(t, f.coordinator.CompleteClaim(ctx, c.Entry.ID))

	_, err = f.coordinator.Accept(ctx, c.Entry.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)
}

func TestLineActiveLockedIgnoresLapsedState(t *testing.T) {
	f := newFixture(t, func(c *CoordinatorConfig) { c.ClaimWindow = 5 * time.Minute })
	ctx := context.Background()
	b05 := key(t, "B05")

	active, err := f.coordinator.LineActiveLocked(ctx, b05)
	require.NoError(t, err)
	assert.False(t, active)

	a, err := f.coordinator.Enqueue(ctx, b05, "userA", "Alice")
	require.NoError(t, err)
	active, err = f.coordinator.LineActiveLocked(ctx, b05)
	require.NoError(t, err)
	assert.True(t, active)

	// an offer nobody answered no longer contests the stall
	f.clock.Advance(10 * time.Minute)
	active, err = f.coordinator.LineActiveLocked(ctx, b05)
	require.NoError(t, err)
	assert.False(t, active)

	b, err := f.coordinator.Enqueue(ctx, b05, "userB", "Bob")
	require.NoError(t, err)
	_, err = f.coordinator.Accept(ctx, b.Entry.ID)
	require.NoError(t, err)
	active, err = f.coordinator.LineActiveLocked(ctx, b05)
	require.NoError(t, err)
	assert.True(t, active, "an open claim contests the stall")

	f.clock.Advance(5 * time.Minute)
	active, err = f.coordinator.LineActiveLocked(ctx, b05)
	require.NoError(t, err)
	assert.False(t, active)

	ticket, err := f.coordinator.Ticket(ctx, a.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, EndTimedOut, ticket.Entry.EndReason)
}
