package bookings

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"stallbook/internal/shared/apperr"

	"github.com/google/uuid"
)

// MemoryRepository keeps bookings in process. It enforces the same
// one-active-booking-per-stall-date rule as the database index.
type MemoryRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]*Booking
	intents  map[uuid.UUID][]*PaymentIntent
	now      func() time.Time
	// FailWith, when set, is returned by every call. Tests use it to
	// simulate an unreachable database.
	FailWith error
}

func NewMemoryRepository(now func() time.Time) *MemoryRepository {
	if now == nil {
		now = time.Now
	}
	return &MemoryRepository{
		bookings: make(map[uuid.UUID]*Booking),
		intents:  make(map[uuid.UUID][]*PaymentIntent),
		now:      now,
	}
}

func (m *MemoryRepository) fail(op string) error {
	if m.FailWith == nil {
		return nil
	}
	return apperr.Unavailable(op, m.FailWith)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (m *MemoryRepository) activeLocked(stallCode string, date time.Time) *Booking {
	for _, b := range m.bookings {
		if b.StallCode == stallCode && sameDay(b.StartDate, date) && b.IsActive() {
			return b
		}
	}
	return nil
}

func (m *MemoryRepository) Create(_ context.Context, booking *Booking, intent *PaymentIntent) error {
	if err := m.fail("bookings.create"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	booking.StallCode = strings.ToUpper(booking.StallCode)
	if booking.IsActive() && m.activeLocked(booking.StallCode, booking.StartDate) != nil {
		return apperr.AlreadyBooked("bookings.create", "stall already has an active booking for that date")
	}
	now := m.now()
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.CreatedAt, booking.UpdatedAt = now, now
	stored := *booking
	stored.PaymentIntents = nil
	m.bookings[booking.ID] = &stored

	if intent != nil {
		if intent.ID == uuid.Nil {
			intent.ID = uuid.New()
		}
		intent.BookingID = booking.ID
		intent.CreatedAt, intent.UpdatedAt = now, now
		cp := *intent
		m.intents[booking.ID] = append(m.intents[booking.ID], &cp)
	}
	return nil
}

func (m *MemoryRepository) FindActive(_ context.Context, stallCode string, date time.Time) (*Booking, error) {
	if err := m.fail("bookings.find_active"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b := m.activeLocked(strings.ToUpper(stallCode), date); b != nil {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryRepository) ActiveStallCodes(_ context.Context, date time.Time) ([]string, error) {
	if err := m.fail("bookings.active_codes"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, b := range m.bookings {
		if sameDay(b.StartDate, date) && b.IsActive() {
			out = append(out, b.StallCode)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Booking, error) {
	if err := m.fail("bookings.get"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, apperr.NotFound("bookings.get", "booking %s not found", id)
	}
	cp := *b
	for _, in := range m.intents[id] {
		cp.PaymentIntents = append(cp.PaymentIntents, *in)
	}
	return &cp, nil
}

func (m *MemoryRepository) List(_ context.Context, query ListQuery) ([]Booking, int64, error) {
	if err := m.fail("bookings.list"); err != nil {
		return nil, 0, err
	}
	query.normalize()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Booking
	for _, b := range m.bookings {
		if query.Status != "" && b.Status != query.Status {
			continue
		}
		if query.StallCode != "" && b.StallCode != strings.ToUpper(query.StallCode) {
			continue
		}
		if query.CustomerID != "" && b.CustomerID != query.CustomerID {
			continue
		}
		matched = append(matched, *b)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].BookingRef > matched[j].BookingRef
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (query.Page - 1) * query.Limit
	if start >= len(matched) {
		return []Booking{}, total, nil
	}
	end := start + query.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (m *MemoryRepository) Transition(_ context.Context, id uuid.UUID, change StatusChange) error {
	if err := m.fail("bookings.transition"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return apperr.NotFound("bookings.transition", "booking %s not found", id)
	}
	if b.Status != change.From {
		return apperr.Conflict("bookings.transition", "booking %s is no longer %s", id, change.From)
	}
	b.Status = change.To
	if change.Payment != "" {
		b.PaymentStatus = change.Payment
	}
	b.UpdatedAt = m.now()
	if intents := m.intents[id]; change.Intent != "" && len(intents) > 0 {
		intents[len(intents)-1].Status = change.Intent
	}
	return nil
}

func (m *MemoryRepository) SubmitSlip(_ context.Context, bookingID uuid.UUID, slipReference string) (*PaymentIntent, error) {
	if err := m.fail("bookings.slip"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	intents := m.intents[bookingID]
	if len(intents) == 0 {
		return nil, apperr.NotFound("bookings.slip", "no payment intent for booking %s", bookingID)
	}
	intent := intents[len(intents)-1]
	if intent.Status == IntentVerified {
		return nil, apperr.InvalidState("bookings.slip", "payment for booking %s is already verified", bookingID)
	}
	intent.Status = IntentSubmitted
	intent.SlipReference = slipReference
	intent.UpdatedAt = m.now()
	if b, ok := m.bookings[bookingID]; ok {
		b.PaymentStatus = PaymentPending
	}
	cp := *intent
	return &cp, nil
}
