package bookings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"stallbook/internal/notifications"
	"stallbook/internal/queue"
	"stallbook/internal/reservations"
	"stallbook/internal/shared/apperr"
	"stallbook/internal/stallkey"
	"stallbook/internal/stalls"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock     *clockwork.FakeClock
	repo      *MemoryRepository
	service   Service
	holds     reservations.Manager
	queue     queue.Coordinator
	finalizer Finalizer
	notifier  *notifications.Recorder
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithRepo(t, nil)
}

// wrap, when set, lets a test interpose on the repository the finalizer sees.
func newFixtureWithRepo(t *testing.T, wrap func(Repository) Repository) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(start)
	keys := stallkey.NewLocker()
	rec := &notifications.Recorder{}

	repo := NewMemoryRepository(clock.Now)
	svc := NewService(repo, rec, clock)
	catalog := stalls.NewCatalog(stalls.NewMemoryRepository(
		stalls.Stall{Code: "A01", Zone: "A", Size: stalls.SizeSmall, PricePerDay: 1500},
		stalls.Stall{Code: "A02", Zone: "A", Size: stalls.SizeMedium, PricePerDay: 2500},
		stalls.Stall{Code: "B06", Zone: "B", Size: stalls.SizeLarge, PricePerDay: 4000, Status: stalls.StallMaintenance},
	), nil)
	coordinator := queue.NewCoordinator(queue.NewMemoryStore(clock.Now, 24*time.Hour), keys, clock, rec, svc, queue.DefaultCoordinatorConfig())
	holds := reservations.NewManager(reservations.NewMemoryStore(clock.Now), keys, coordinator, clock, rec, reservations.DefaultManagerConfig())

	var finalizerRepo Repository = repo
	if wrap != nil {
		finalizerRepo = wrap(repo)
	}
	return &fixture{
		clock:     clock,
		repo:      repo,
		service:   svc,
		holds:     holds,
		queue:     coordinator,
		finalizer: NewFinalizer(finalizerRepo, catalog, holds, coordinator, rec, clock),
		notifier:  rec,
	}
}

func mustKey(t *testing.T, stall string) stallkey.Key {
	t.Helper()
	k, err := stallkey.New(stall, "2026-02-01")
	require.NoError(t, err)
	return k
}

// acceptedTicket queues userID behind an existing hold and accepts the offer.
func (f *fixture) acceptedTicket(t *testing.T, key stallkey.Key, userID string) string {
	t.Helper()
	ctx := context.Background()
	ticket, err := f.queue.Enqueue(ctx, key, userID, strings.ToUpper(userID))
	require.NoError(t, err)
	require.Equal(t, queue.StateOffered, ticket.Entry.State)
	_, err = f.queue.Accept(ctx, ticket.Entry.ID)
	require.NoError(t, err)
	return ticket.Entry.ID
}

func TestFinalizeFromReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a01 := mustKey(t, "A01")

	_, err := f.holds.Reserve(ctx, a01, "s1", 0)
	require.NoError(t, err)

	booking, err := f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "s1"}, CustomerDetails{
		CustomerID:   "cust-1",
		CustomerName: "Alice",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, booking.Status)
	assert.Equal(t, PaymentUnpaid, booking.PaymentStatus)
	assert.Equal(t, SourceReservation, booking.Source)
	assert.Equal(t, "cust-1", booking.CustomerID)
	assert.Equal(t, "A01", booking.StallCode)
	assert.Equal(t, 1500.0, booking.TotalPrice)
	assert.True(t, strings.HasPrefix(booking.BookingRef, "STL-20260120-"), booking.BookingRef)
	require.Len(t, booking.PaymentIntents, 1)
	assert.Equal(t, IntentPending, booking.PaymentIntents[0].Status)

	_, err = f.holds.Get(ctx, a01)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "hold is consumed")

	booked, err := f.service.IsBooked(ctx, a01)
	require.NoError(t, err)
	assert.True(t, booked)

	created := f.notifier.OfType(notifications.EventBookingCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "cust-1", created[0].UserID)
	assert.Equal(t, booking.ID.String(), created[0].BookingID)

	// the consumed hold can not book twice
	_, err = f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "s1"}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)

	// and nobody can queue for a booked stall
	_, err = f.queue.Enqueue(ctx, a01, "late", "Late")
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)
}

func TestFinalizeReservationRefusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a01 := mustKey(t, "A01")

	_, err := f.finalizer.Finalize(ctx, a01, nil, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "nobody"}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrExpired)

	_, err = f.holds.Reserve(ctx, a01, "s1", 0)
	require.NoError(t, err)
	_, err = f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "s2"}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrNotOwner)

	f.clock.Advance(5 * time.Minute)
	_, err = f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "s1"}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrExpired)

	// maintenance stalls can be held but never booked; the hold survives
	b06 := mustKey(t, "B06")
	_, err = f.holds.Reserve(ctx, b06, "s3", 0)
	require.NoError(t, err)
	_, err = f.finalizer.Finalize(ctx, b06, ReservationProof{SessionID: "s3"}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	slot, err := f.holds.Get(ctx, b06)
	require.NoError(t, err)
	assert.False(t, slot.Finalizing)
}

func TestFinalizeFromQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a01 := mustKey(t, "A01")

	_, err := f.holds.Reserve(ctx, a01, "s1", 0)
	require.NoError(t, err)
	ticketID := f.acceptedTicket(t, a01, "userB")
	waiting, err := f.queue.Enqueue(ctx, a01, "userC", "C")
	require.NoError(t, err)

	_, err = f.finalizer.Finalize(ctx, a01, QueueProof{TicketID: ticketID}, CustomerDetails{CustomerID: "someone-else"})
	assert.ErrorIs(t, err, apperr.ErrNotOwner)

	booking, err := f.finalizer.Finalize(ctx, a01, QueueProof{TicketID: ticketID}, CustomerDetails{CustomerName: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, SourceQueue, booking.Source)
	assert.Equal(t, "userB", booking.CustomerID)
	assert.Equal(t, ticketID, booking.ProofRef)

	used, err := f.queue.Ticket(ctx, ticketID)
	require.NoError(t, err)
	assert.Equal(t, queue.EndBooked, used.Entry.EndReason)

	other, err := f.queue.Ticket(ctx, waiting.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateExpired, other.Entry.State)
	assert.Equal(t, queue.EndStallBooked, other.Entry.EndReason)

	_, err = f.holds.Get(ctx, a01)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "the direct hold is revoked")

	// the revoked holder learns the stall is gone rather than that time ran out
	_, err = f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "s1"}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)

	_, err = f.finalizer.Finalize(ctx, a01, QueueProof{TicketID: ticketID}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)
}

func TestFinalizeQueueProofForWrongStall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a01, a02 := mustKey(t, "A01"), mustKey(t, "A02")

	ticketID := f.acceptedTicket(t, a01, "userB")

	_, err := f.finalizer.Finalize(ctx, a02, QueueProof{TicketID: ticketID}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	// the claim was handed back untouched
	booking, err := f.finalizer.Finalize(ctx, a01, QueueProof{TicketID: ticketID}, CustomerDetails{})
	require.NoError(t, err)
	assert.Equal(t, "A01", booking.StallCode)
}

func TestFinalizeStorageFailureRestoresProof(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a01 := mustKey(t, "A01")

	_, err := f.holds.Reserve(ctx, a01, "s1", 0)
	require.NoError(t, err)

	f.repo.FailWith = errors.New("connection refused")
	_, err = f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "s1"}, CustomerDetails{})
	require.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	assert.True(t, apperr.Retryable(err))

	slot, err := f.holds.Get(ctx, a01)
	require.NoError(t, err)
	assert.Equal(t, "s1", slot.HolderSessionID)
	assert.False(t, slot.Finalizing)

	f.repo.FailWith = nil
	_, err = f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "s1"}, CustomerDetails{})
	require.NoError(t, err)
}

func TestFinalizeWhenStallBookedElsewhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a01 := mustKey(t, "A01")

	_, err := f.holds.Reserve(ctx, a01, "s1", 0)
	require.NoError(t, err)
	offered, err := f.queue.Enqueue(ctx, a01, "userW", "W")
	require.NoError(t, err)

	// a booking written behind the coordinators' backs, e.g. by another instance
	require.NoError(t, f.repo.Create(ctx, &Booking{
		BookingRef: "STL-EXTERNAL", StallCode: "A01", CustomerID: "walk-in",
		StartDate: a01.Date(), EndDate: a01.Date(), Status: StatusConfirmed, Source: SourceReservation,
	}, nil))

	_, err = f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "s1"}, CustomerDetails{})
	require.ErrorIs(t, err, apperr.ErrAlreadyBooked)

	_, err = f.holds.Get(ctx, a01)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "a worthless hold is dropped")

	ticket, err := f.queue.Ticket(ctx, offered.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.EndStallBooked, ticket.Entry.EndReason)
}

// gatedRepo blocks Create until released so a finalization can be held in flight.
type gatedRepo struct {
	Repository
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRepo) Create(ctx context.Context, b *Booking, in *PaymentIntent) error {
	close(g.entered)
	<-g.release
	return g.Repository.Create(ctx, b, in)
}

func TestFinalizeRefusesSecondFinalizationInFlight(t *testing.T) {
	gate := &gatedRepo{entered: make(chan struct{}), release: make(chan struct{})}
	f := newFixtureWithRepo(t, func(r Repository) Repository {
		gate.Repository = r
		return gate
	})
	ctx := context.Background()
	a01 := mustKey(t, "A01")

	_, err := f.holds.Reserve(ctx, a01, "s1", 0)
	require.NoError(t, err)
	ticketID := f.acceptedTicket(t, a01, "userB")

	done := make(chan error, 1)
	go func() {
		_, err := f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "s1"}, CustomerDetails{})
		done <- err
	}()
	<-gate.entered

	_, err = f.finalizer.Finalize(ctx, a01, QueueProof{TicketID: ticketID}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	close(gate.release)
	require.NoError(t, <-done)

	// the claim was never pinned, so the booking closed it
	_, err = f.finalizer.Finalize(ctx, a01, QueueProof{TicketID: ticketID}, CustomerDetails{})
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)
}

func TestConcurrentFinalizeBooksOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t)
		ctx := context.Background()
		a01 := mustKey(t, "A01")

		_, err := f.holds.Reserve(ctx, a01, "s1", 0)
		require.NoError(t, err)
		ticketID := f.acceptedTicket(t, a01, "userB")

		proofs := []Proof{ReservationProof{SessionID: "s1"}, QueueProof{TicketID: ticketID}}
		errs := make([]error, len(proofs))
		var wg sync.WaitGroup
		for i, p := range proofs {
			wg.Add(1)
			go func(i int, p Proof) {
				defer wg.Done()
				_, errs[i] = f.finalizer.Finalize(ctx, a01, p, CustomerDetails{})
			}(i, p)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.True(t, apperr.IsKind(err, apperr.KindConflict) || apperr.IsKind(err, apperr.KindAlreadyBooked), "unexpected error: %v", err)
		}
		assert.Equal(t, 1, succeeded)

		codes, err := f.repo.ActiveStallCodes(ctx, a01.Date())
		require.NoError(t, err)
		assert.Equal(t, []string{"A01"}, codes)
	}
}

func TestOfferedHeadKeepsItsTurnAgainstDirectHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a01 := mustKey(t, "A01")

	offered, err := f.queue.Enqueue(ctx, a01, "userA", "Alice")
	require.NoError(t, err)
	require.Equal(t, queue.StateOffered, offered.Entry.State)

	_, err = f.holds.Reserve(ctx, a01, "intruder", 0)
	require.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.finalizer.Finalize(ctx, a01, ReservationProof{SessionID: "intruder"}, CustomerDetails{})
	require.ErrorIs(t, err, apperr.ErrExpired)

	_, err = f.queue.Accept(ctx, offered.Entry.ID)
	require.NoError(t, err)
	booking, err := f.finalizer.Finalize(ctx, a01, QueueProof{TicketID: offered.Entry.ID}, CustomerDetails{})
	require.NoError(t, err)
	assert.Equal(t, "userA", booking.CustomerID)
}

func TestStallCodeSpellingsShareOneKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	lower, err := stallkey.New("a01", "2026-02-01")
	require.NoError(t, err)
	upper := mustKey(t, "A01")

	_, err = f.holds.Reserve(ctx, lower, "s1", 0)
	require.NoError(t, err)
	_, err = f.holds.Reserve(ctx, upper, "s2", 0)
	require.ErrorIs(t, err, apperr.ErrConflict)

	first, err := f.queue.Enqueue(ctx, upper, "userW", "W")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Entry.Position)
	second, err := f.queue.Enqueue(ctx, lower, "userX", "X")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Entry.Position)

	booking, err := f.finalizer.Finalize(ctx, lower, ReservationProof{SessionID: "s1"}, CustomerDetails{})
	require.NoError(t, err)
	assert.Equal(t, "A01", booking.StallCode)

	_, err = f.holds.Get(ctx, upper)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	line, err := f.queue.ListQueue(ctx, upper)
	require.NoError(t, err)
	assert.Empty(t, line)
	ticket, err := f.queue.Ticket(ctx, first.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.EndStallBooked, ticket.Entry.EndReason)
}
