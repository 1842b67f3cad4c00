package reservations

import (
	"time"

	"stallbook/internal/stallkey"
)

// ReservationSlot is the single exclusive hold on a stall for one date.
type ReservationSlot struct {
	Key             stallkey.Key `json:"stallKey"`
	HolderSessionID string       `json:"holderSessionId"`
	HeldUntil       time.Time    `json:"heldUntil"`
	CreatedAt       time.Time    `json:"createdAt"`
	// Finalizing is set while a booking is being written from this hold.
	// A finalizing slot does not lapse until the finalizer reconciles it.
	Finalizing bool `json:"finalizing"`
}

// IsExpired reports whether the hold has lapsed at now. Expired slots are
// treated exactly like absent ones.
func (s *ReservationSlot) IsExpired(now time.Time) bool {
	if s.Finalizing {
		return false
	}
	return !now.Before(s.HeldUntil)
}

func (s *ReservationSlot) TimeRemaining(now time.Time) time.Duration {
	if s.IsExpired(now) {
		return 0
	}
	if d := s.HeldUntil.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (s *ReservationSlot) HeldBy(sessionID string) bool {
	return s.HolderSessionID == sessionID
}

func (s *ReservationSlot) clone() *ReservationSlot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
