package bookings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stallbook/internal/notifications"
	"stallbook/internal/shared/apperr"
	"stallbook/internal/stallkey"
	"stallbook/pkg/logger"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Service covers booking reads, admin moderation and payment slips.
// Creating bookings is the Finalizer's job.
type Service interface {
	GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error)
	ListBookings(ctx context.Context, query ListQuery) ([]Booking, int64, error)
	Moderate(ctx context.Context, bookingID uuid.UUID, action Action) (*Booking, error)
	SubmitPaymentSlip(ctx context.Context, bookingID uuid.UUID, customerID, slipReference string) (*PaymentIntent, error)

	// IsBooked and BookedStalls let the queue and the stall map refuse
	// stalls that already carry an active booking.
	IsBooked(ctx context.Context, key stallkey.Key) (bool, error)
	BookedStalls(ctx context.Context, date time.Time) (map[string]bool, error)
}

type service struct {
	repo     Repository
	notifier notifications.Notifier
	clock    clockwork.Clock
	log      *logger.Logger
}

func NewService(repo Repository, notifier notifications.Notifier, clock clockwork.Clock) Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &service{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		log:      logger.GetDefault(),
	}
}

func (s *service) GetBooking(ctx context.Context, bookingID uuid.UUID) (*Booking, error) {
	return s.repo.GetByID(ctx, bookingID)
}

func (s *service) ListBookings(ctx context.Context, query ListQuery) ([]Booking, int64, error) {
	if query.Status != "" && !query.Status.IsValid() {
		return nil, 0, apperr.Validation("bookings.list", "unknown status %q", query.Status)
	}
	return s.repo.List(ctx, query)
}

// paymentEffects decides what a moderation step does to money state.
func paymentEffects(b *Booking, target Status) (PaymentStatus, IntentStatus) {
	switch target {
	case StatusConfirmed:
		return PaymentPaid, IntentVerified
	case StatusCancelled:
		if b.PaymentStatus == PaymentPaid {
			return PaymentRefunded, ""
		}
		return "", IntentRejected
	}
	return "", ""
}

func (s *service) Moderate(ctx context.Context, bookingID uuid.UUID, action Action) (*Booking, error) {
	target, ok := Action(strings.ToUpper(string(action))).Target()
	if !ok {
		return nil, apperr.Validation("bookings.moderate", "unknown action %q", action)
	}

	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	from := booking.Status
	if !from.CanTransitionTo(target) {
		return nil, apperr.InvalidState("bookings.moderate", "cannot move booking %s from %s to %s", booking.BookingRef, from, target)
	}

	payment, intent := paymentEffects(booking, target)
	if err := s.repo.Transition(ctx, bookingID, StatusChange{From: from, To: target, Payment: payment, Intent: intent}); err != nil {
		return nil, err
	}

	s.log.LogBookingStatusChanged(ctx, bookingID.String(), string(from), string(target))

	updated, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	ev := notifications.NewEvent(notifications.EventBookingStatus, updated.CustomerID, s.clock.Now())
	ev.BookingID = updated.ID.String()
	ev.StallID = updated.StallCode
	ev.Date = updated.StartDate.Format(stallkey.DateLayout)
	ev.Message = fmt.Sprintf("Booking %s is now %s", updated.BookingRef, updated.Status)
	notifications.Dispatch(ctx, s.notifier, s.log, []notifications.Event{ev})

	return updated, nil
}

func (s *service) SubmitPaymentSlip(ctx context.Context, bookingID uuid.UUID, customerID, slipReference string) (*PaymentIntent, error) {
	slipReference = strings.TrimSpace(slipReference)
	if slipReference == "" {
		return nil, apperr.Validation("bookings.slip", "slipReference is required")
	}

	booking, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.CustomerID != customerID {
		return nil, apperr.NotOwner("bookings.slip", "booking %s belongs to another customer", booking.BookingRef)
	}
	if booking.Status != StatusPending {
		return nil, apperr.InvalidState("bookings.slip", "booking %s is %s, slips are only accepted while pending", booking.BookingRef, booking.Status)
	}

	intent, err := s.repo.SubmitSlip(ctx, bookingID, slipReference)
	if err != nil {
		return nil, err
	}
	s.log.InfoWithContext(ctx, "payment slip submitted", map[string]interface{}{
		"booking_id": bookingID.String(),
		"intent_id":  intent.ID.String(),
	})
	return intent, nil
}

func (s *service) IsBooked(ctx context.Context, key stallkey.Key) (bool, error) {
	b, err := s.repo.FindActive(ctx, key.StallID, key.Date())
	if err != nil {
		return false, err
	}
	return b != nil, nil
}

func (s *service) BookedStalls(ctx context.Context, date time.Time) (map[string]bool, error) {
	codes, err := s.repo.ActiveStallCodes(ctx, date)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(codes))
	for _, c := range codes {
		out[c] = true
	}
	return out, nil
}
