// Package stallkey identifies a stall on one calendar date and serializes
// every state change made against it.
package stallkey

import (
	"strings"
	"time"

	"stallbook/internal/shared/apperr"
)

const DateLayout = "2006-01-02"

// Key scopes all hold, queue and booking exclusivity. The same stall on two
// dates is two independent keys.
type Key struct {
	StallID     string `json:"stallId"`
	BookingDate string `json:"bookingDate"`
}

// New builds a normalized key. Stall codes are case-insensitive, so "a01"
// and "A01" name the same stall.
func New(stallID, bookingDate string) (Key, error) {
	k := Key{StallID: strings.ToUpper(strings.TrimSpace(stallID)), BookingDate: strings.TrimSpace(bookingDate)}
	if err := k.Validate(); err != nil {
		return Key{}, err
	}
	return k, nil
}

func (k Key) Validate() error {
	if k.StallID == "" {
		return apperr.Validation("stallkey", "stallId is required")
	}
	if strings.Contains(k.StallID, "|") {
		return apperr.Validation("stallkey", "stallId must not contain '|'")
	}
	if _, err := time.Parse(DateLayout, k.BookingDate); err != nil {
		return apperr.Validation("stallkey", "bookingDate must be YYYY-MM-DD, got %q", k.BookingDate)
	}
	return nil
}

func (k Key) String() string {
	return k.StallID + "|" + k.BookingDate
}

// Date returns the booking date at midnight UTC.
func (k Key) Date() time.Time {
	d, _ := time.Parse(DateLayout, k.BookingDate)
	return d
}

func Parse(s string) (Key, error) {
	stallID, date, ok := strings.Cut(s, "|")
	if !ok {
		return Key{}, apperr.Validation("stallkey", "malformed stall key %q", s)
	}
	return New(stallID, date)
}
