package bookings

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"

	"stallbook/internal/notifications"
	"stallbook/internal/queue"
	"stallbook/internal/reservations"
	"stallbook/internal/shared/apperr"
	"stallbook/internal/stalls"
	"stallbook/internal/stallkey"
	"stallbook/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// Proof is what entitles a caller to book a stall: a live hold or an
// accepted queue offer.
type Proof interface {
	source() Source
	ref() string
}

type ReservationProof struct {
	SessionID string
}

func (p ReservationProof) source() Source { return SourceReservation }
func (p ReservationProof) ref() string    { return p.SessionID }

type QueueProof struct {
	TicketID string
}

func (p QueueProof) source() Source { return SourceQueue }
func (p QueueProof) ref() string    { return p.TicketID }

// Finalizer turns a proof into a durable booking. At most one finalization
// runs per stall key, and a stall date never gets two active bookings.
type Finalizer interface {
	Finalize(ctx context.Context, key stallkey.Key, proof Proof, details CustomerDetails) (*Booking, error)
}

type finalizer struct {
	repo     Repository
	catalog  stalls.Catalog
	holds    reservations.Manager
	queue    queue.Coordinator
	notifier notifications.Notifier
	clock    clockwork.Clock
	log      *logger.Logger

	mu       sync.Mutex
	inflight map[stallkey.Key]string
}

func NewFinalizer(repo Repository, catalog stalls.Catalog, holds reservations.Manager, coordinator queue.Coordinator, notifier notifications.Notifier, clock clockwork.Clock) Finalizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &finalizer{
		repo:     repo,
		catalog:  catalog,
		holds:    holds,
		queue:    coordinator,
		notifier: notifier,
		clock:    clock,
		log:      logger.GetDefault(),
		inflight: make(map[stallkey.Key]string),
	}
}

func (f *finalizer) begin(key stallkey.Key, ref string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.inflight[key]; busy {
		return false
	}
	f.inflight[key] = ref
	return true
}

func (f *finalizer) end(key stallkey.Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.inflight, key)
}

func (f *finalizer) Finalize(ctx context.Context, key stallkey.Key, proof Proof, details CustomerDetails) (*Booking, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if proof == nil || proof.ref() == "" {
		return nil, apperr.Validation("bookings.finalize", "a sessionId or queueId is required")
	}

	if !f.begin(key, proof.ref()) {
		return nil, apperr.Conflict("bookings.finalize", "another booking for stall %s is in progress", key)
	}
	defer f.end(key)

	customerID, err := f.acquire(ctx, key, proof, details.CustomerID)
	if err != nil {
		return nil, err
	}
	details.CustomerID = customerID

	booking, err := f.write(ctx, key, proof, details)
	if err != nil {
		f.restore(ctx, key, proof, apperr.IsKind(err, apperr.KindAlreadyBooked))
		return nil, err
	}

	f.consume(ctx, key, proof)

	f.log.LogBookingCreated(ctx, booking.ID.String(), key.String(), booking.CustomerID)
	ev := notifications.NewEvent(notifications.EventBookingCreated, booking.CustomerID, f.clock.Now())
	ev.BookingID = booking.ID.String()
	ev.StallID = key.StallID
	ev.Date = key.BookingDate
	ev.Message = fmt.Sprintf("Booking %s created for stall %s on %s", booking.BookingRef, key.StallID, key.BookingDate)
	if p, ok := proof.(QueueProof); ok {
		ev.TicketID = p.TicketID
	}
	notifications.Dispatch(ctx, f.notifier, f.log, []notifications.Event{ev})

	return booking, nil
}

// acquire pins the proof so it cannot lapse while the booking is written.
func (f *finalizer) acquire(ctx context.Context, key stallkey.Key, proof Proof, customerID string) (string, error) {
	switch p := proof.(type) {
	case ReservationProof:
		if _, err := f.holds.Finalize(ctx, key, p.SessionID); err != nil {
			// a hold revoked by a queue booking reads as lapsed; say why
			if apperr.IsKind(err, apperr.KindExpired) {
				if b, ferr := f.repo.FindActive(ctx, key.StallID, key.Date()); ferr == nil && b != nil {
					return "", apperr.AlreadyBooked("bookings.finalize", "stall %s is already booked for %s", key.StallID, key.BookingDate)
				}
			}
			return "", err
		}
		if customerID == "" {
			customerID = p.SessionID
		}
		return customerID, nil

	case QueueProof:
		claim, claimKey, err := f.queue.BeginClaim(ctx, p.TicketID)
		if err != nil {
			return "", err
		}
		if claimKey != key {
			f.abortClaim(ctx, p.TicketID, false)
			return "", apperr.Validation("bookings.finalize", "ticket %s is for stall %s, not %s", p.TicketID, claimKey, key)
		}
		if customerID != "" && customerID != claim.UserID {
			f.abortClaim(ctx, p.TicketID, false)
			return "", apperr.NotOwner("bookings.finalize", "ticket %s belongs to another user", p.TicketID)
		}
		return claim.UserID, nil
	}
	return "", apperr.Validation("bookings.finalize", "unsupported proof %T", proof)
}

func (f *finalizer) write(ctx context.Context, key stallkey.Key, proof Proof, details CustomerDetails) (*Booking, error) {
	stall, err := f.catalog.FindByCode(ctx, key.StallID)
	if err != nil {
		return nil, err
	}
	if !stall.IsBookable() {
		return nil, apperr.InvalidState("bookings.finalize", "stall %s is under maintenance", stall.Code)
	}

	existing, err := f.repo.FindActive(ctx, stall.Code, key.Date())
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.AlreadyBooked("bookings.finalize", "stall %s is already booked for %s", stall.Code, key.BookingDate)
	}

	ref, err := f.generateBookingReference()
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}

	method := details.PaymentMethod
	if method == "" {
		method = "BANK_TRANSFER"
	}
	booking := &Booking{
		BookingRef:    ref,
		StallID:       stall.ID,
		StallCode:     stall.Code,
		Zone:          stall.Zone,
		CustomerID:    details.CustomerID,
		CustomerName:  details.CustomerName,
		CustomerPhone: details.CustomerPhone,
		StartDate:     key.Date(),
		EndDate:       key.Date(),
		TotalPrice:    stall.PricePerDay,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		Source:        proof.source(),
		ProofRef:      proof.ref(),
	}
	intent := &PaymentIntent{
		Amount:   stall.PricePerDay,
		Currency: "LKR",
		Method:   method,
		Status:   IntentPending,
	}
	if err := f.repo.Create(ctx, booking, intent); err != nil {
		return nil, err
	}
	booking.PaymentIntents = []PaymentIntent{*intent}
	return booking, nil
}

// consume retires the proof once the booking is durable. Failures here only
// leave stale state that lazy expiry and the sweeper clean up, so they are logged.
func (f *finalizer) consume(ctx context.Context, key stallkey.Key, proof Proof) {
	switch p := proof.(type) {
	case ReservationProof:
		f.logFailure(ctx, "failed to complete hold", key, f.holds.Complete(ctx, key, p.SessionID))
		f.logFailure(ctx, "failed to close queue", key, f.queue.CloseForBooking(ctx, key))
	case QueueProof:
		f.logFailure(ctx, "failed to complete claim", key, f.queue.CompleteClaim(ctx, p.TicketID))
		f.logFailure(ctx, "failed to revoke hold", key, f.holds.Revoke(ctx, key))
	}
}

// restore hands the proof back after a failed write. When the stall turned
// out to be booked already the proof is worthless and is dropped instead.
func (f *finalizer) restore(ctx context.Context, key stallkey.Key, proof Proof, stallBooked bool) {
	switch p := proof.(type) {
	case ReservationProof:
		f.logFailure(ctx, "failed to abort hold", key, f.holds.Abort(ctx, key, p.SessionID, stallBooked))
		if stallBooked {
			f.logFailure(ctx, "failed to close queue", key, f.queue.CloseForBooking(ctx, key))
		}
	case QueueProof:
		f.abortClaim(ctx, p.TicketID, stallBooked)
		if stallBooked {
			f.logFailure(ctx, "failed to revoke hold", key, f.holds.Revoke(ctx, key))
		}
	}
}

func (f *finalizer) abortClaim(ctx context.Context, ticketID string, stallBooked bool) {
	if err := f.queue.AbortClaim(ctx, ticketID, stallBooked); err != nil {
		f.log.ErrorWithContext(ctx, "failed to abort claim", err, map[string]interface{}{
			"ticket_id": ticketID,
		})
	}
}

func (f *finalizer) logFailure(ctx context.Context, msg string, key stallkey.Key, err error) {
	if err == nil {
		return
	}
	f.log.WithStallKey(key.String()).WithError(err).ErrorContext(ctx, msg)
}

// generateBookingReference returns STL-YYYYMMDD-XXXXXX
func (f *finalizer) generateBookingReference() (string, error) {
	timestamp := f.clock.Now().Format("20060102")

	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	randomPart := make([]byte, 6)
	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("STL-%s-%s", timestamp, string(randomPart)), nil
}
