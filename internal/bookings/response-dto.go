package bookings

import (
	"time"

	"stallbook/internal/stallkey"
)

type PaymentIntentResponse struct {
	ID            string       `json:"id"`
	Amount        float64      `json:"amount"`
	Currency      string       `json:"currency"`
	Method        string       `json:"method"`
	Status        IntentStatus `json:"status"`
	SlipReference string       `json:"slipReference,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
}

type BookingResponse struct {
	ID            string                 `json:"id"`
	BookingRef    string                 `json:"bookingRef"`
	StallID       string                 `json:"stallId"`
	Zone          string                 `json:"zone"`
	BookingDate   string                 `json:"bookingDate"`
	CustomerID    string                 `json:"customerId"`
	CustomerName  string                 `json:"customerName,omitempty"`
	CustomerPhone string                 `json:"customerPhone,omitempty"`
	TotalPrice    float64                `json:"totalPrice"`
	Status        Status                 `json:"status"`
	PaymentStatus PaymentStatus          `json:"paymentStatus"`
	Source        Source                 `json:"source"`
	Payment       *PaymentIntentResponse `json:"payment,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

type BookingListResponse struct {
	Bookings   []BookingResponse `json:"bookings"`
	TotalCount int64             `json:"totalCount"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

func ToPaymentIntentResponse(p *PaymentIntent) *PaymentIntentResponse {
	if p == nil {
		return nil
	}
	return &PaymentIntentResponse{
		ID:            p.ID.String(),
		Amount:        p.Amount,
		Currency:      p.Currency,
		Method:        p.Method,
		Status:        p.Status,
		SlipReference: p.SlipReference,
		CreatedAt:     p.CreatedAt,
	}
}

func ToBookingResponse(b *Booking) BookingResponse {
	out := BookingResponse{
		ID:            b.ID.String(),
		BookingRef:    b.BookingRef,
		StallID:       b.StallCode,
		Zone:          b.Zone,
		BookingDate:   b.StartDate.Format(stallkey.DateLayout),
		CustomerID:    b.CustomerID,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		TotalPrice:    b.TotalPrice,
		Status:        b.Status,
		PaymentStatus: b.PaymentStatus,
		Source:        b.Source,
		CreatedAt:     b.CreatedAt,
	}
	if n := len(b.PaymentIntents); n > 0 {
		out.Payment = ToPaymentIntentResponse(&b.PaymentIntents[n-1])
	}
	return out
}

func ToBookingListResponse(bookings []Booking, total int64, query ListQuery) BookingListResponse {
	query.normalize()
	out := BookingListResponse{
		Bookings:   make([]BookingResponse, 0, len(bookings)),
		TotalCount: total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: CalculateTotalPages(total, query.Limit),
	}
	for i := range bookings {
		out.Bookings = append(out.Bookings, ToBookingResponse(&bookings[i]))
	}
	return out
}
