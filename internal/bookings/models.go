package bookings

import (
	"time"

	"stallbook/internal/stallkey"

	"github.com/google/uuid"
)

// Booking is the durable record that a customer has a stall for a date.
// At most one active booking exists per stall and start date; the partial
// unique index created in database.CreateConstraints enforces it.
type Booking struct {
	ID            uuid.UUID     `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingRef    string        `gorm:"unique;not null;size:32" json:"bookingRef"`
	StallID       uuid.UUID     `gorm:"type:uuid;index;not null" json:"stallId"`
	StallCode     string        `gorm:"index;not null;size:16" json:"stallCode"`
	Zone          string        `gorm:"size:50" json:"zone"`
	CustomerID    string        `gorm:"index;not null;size:100" json:"customerId"`
	CustomerName  string        `gorm:"size:200" json:"customerName"`
	CustomerPhone string        `gorm:"size:30" json:"customerPhone"`
	StartDate     time.Time     `gorm:"type:date;index;not null" json:"startDate"`
	EndDate       time.Time     `gorm:"type:date;not null" json:"endDate"`
	TotalPrice    float64       `gorm:"not null" json:"totalPrice"`
	Status        Status        `gorm:"type:varchar(20);check:status IN ('pending','confirmed','cancelled','completed');default:'pending'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);default:'unpaid'" json:"paymentStatus"`
	Source        Source        `gorm:"type:varchar(20);not null" json:"source"`
	ProofRef      string        `gorm:"size:100" json:"proofRef"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`

	PaymentIntents []PaymentIntent `json:"paymentIntents,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;"`
}

// PaymentIntent tracks the bank slip a customer submits for a booking.
type PaymentIntent struct {
	ID            uuid.UUID    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID     uuid.UUID    `gorm:"type:uuid;index;not null" json:"bookingId"`
	Amount        float64      `gorm:"not null" json:"amount"`
	Currency      string       `gorm:"type:varchar(3);default:'LKR'" json:"currency"`
	Method        string       `gorm:"type:varchar(50)" json:"method"`
	Status        IntentStatus `gorm:"type:varchar(20);check:status IN ('PENDING','SUBMITTED','VERIFIED','REJECTED');default:'PENDING'" json:"status"`
	SlipReference string       `gorm:"size:500" json:"slipReference,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func (Booking) TableName() string {
	return "bookings"
}

func (PaymentIntent) TableName() string {
	return "payment_intents"
}

func (b *Booking) Key() stallkey.Key {
	return stallkey.Key{StallID: b.StallCode, BookingDate: b.StartDate.Format(stallkey.DateLayout)}
}

func (b *Booking) IsActive() bool {
	return b.Status.IsActive()
}

// CustomerDetails is what the caller supplies alongside a proof when finalizing.
type CustomerDetails struct {
	CustomerID    string
	CustomerName  string
	CustomerPhone string
	PaymentMethod string
}

// ListQuery filters admin and customer booking listings.
type ListQuery struct {
	Status     Status
	StallCode  string
	CustomerID string
	DateFrom   string
	DateTo     string
	Page       int
	Limit      int
}

func (q *ListQuery) normalize() {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}
