package bookings

import (
	"context"
	"testing"
	"time"

	"stallbook/internal/notifications"
	"stallbook/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// book finalizes a fresh hold on stall for customerID.
func (f *fixture) book(t *testing.T, stall, customerID string) *Booking {
	t.Helper()
	ctx := context.Background()
	k := mustKey(t, stall)
	session := "session-" + customerID
	_, err := f.holds.Reserve(ctx, k, session, 0)
	require.NoError(t, err)
	b, err := f.finalizer.Finalize(ctx, k, ReservationProof{SessionID: session}, CustomerDetails{CustomerID: customerID})
	require.NoError(t, err)
	return b
}

func TestModerateLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "A01", "cust-1")

	approved, err := f.service.Moderate(ctx, b.ID, "approve")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, approved.Status)
	assert.Equal(t, PaymentPaid, approved.PaymentStatus)
	require.Len(t, approved.PaymentIntents, 1)
	assert.Equal(t, IntentVerified, approved.PaymentIntents[0].Status)

	_, err = f.service.Moderate(ctx, b.ID, ActionApprove)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	completed, err := f.service.Moderate(ctx, b.ID, ActionComplete)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)

	_, err = f.service.Moderate(ctx, b.ID, ActionCancel)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	changes := f.notifier.OfType(notifications.EventBookingStatus)
	require.Len(t, changes, 2)
	assert.Equal(t, "cust-1", changes[0].UserID)

	_, err = f.service.Moderate(ctx, b.ID, "ARCHIVE")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = f.service.Moderate(ctx, uuid.New(), ActionApprove)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRejectFreesTheStall(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "A01", "cust-1")

	rejected, err := f.service.Moderate(ctx, b.ID, ActionReject)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, rejected.Status)
	assert.Equal(t, IntentRejected, rejected.PaymentIntents[0].Status)

	booked, err := f.service.IsBooked(ctx, mustKey(t, "A01"))
	require.NoError(t, err)
	assert.False(t, booked)

	again := f.book(t, "A01", "cust-2")
	assert.Equal(t, "cust-2", again.CustomerID)
}

func TestCancelPaidBookingRefunds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "A01", "cust-1")

	_, err := f.service.Moderate(ctx, b.ID, ActionApprove)
	require.NoError(t, err)
	cancelled, err := f.service.Moderate(ctx, b.ID, ActionCancel)
	require.NoError(t, err)
	assert.Equal(t, PaymentRefunded, cancelled.PaymentStatus)
}

func TestSubmitPaymentSlip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.book(t, "A01", "cust-1")

	_, err := f.service.SubmitPaymentSlip(ctx, b.ID, "cust-1", "   ")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.service.SubmitPaymentSlip(ctx, b.ID, "cust-2", "BOC-7781")
	assert.ErrorIs(t, err, apperr.ErrNotOwner)

	intent, err := f.service.SubmitPaymentSlip(ctx, b.ID, "cust-1", "BOC-7781")
	require.NoError(t, err)
	assert.Equal(t, IntentSubmitted, intent.Status)
	assert.Equal(t, "BOC-7781", intent.SlipReference)

	got, err := f.service.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, got.PaymentStatus)

	_, err = f.service.Moderate(ctx, b.ID, ActionApprove)
	require.NoError(t, err)
	_, err = f.service.SubmitPaymentSlip(ctx, b.ID, "cust-1", "BOC-7782")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestListBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.book(t, "A01", "cust-1")
	f.clock.Advance(time.Minute)
	f.book(t, "A02", "cust-2")
	_, err := f.service.Moderate(ctx, first.ID, ActionApprove)
	require.NoError(t, err)

	all, total, err := f.service.ListBookings(ctx, ListQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, all, 2)
	assert.Equal(t, "A02", all[0].StallCode, "newest first")

	confirmed, total, err := f.service.ListBookings(ctx, ListQuery{Status: StatusConfirmed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, first.ID, confirmed[0].ID)

	page, total, err := f.service.ListBookings(ctx, ListQuery{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, "A01", page[0].StallCode)

	_, _, err = f.service.ListBookings(ctx, ListQuery{Status: "lost"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	booked, err := f.service.BookedStalls(ctx, mustKey(t, "A01").Date())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A01": true, "A02": true}, booked)

	assert.Equal(t, 3, CalculateTotalPages(5, 2))
	assert.Equal(t, 0, CalculateTotalPages(5, 0))
}
