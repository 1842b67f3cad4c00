package bookings

// FinalizeRequest carries exactly one proof: sessionId for a direct hold,
// queueId for an accepted queue offer.
type FinalizeRequest struct {
	StallID       string `json:"stallId" binding:"required"`
	BookingDate   string `json:"bookingDate" binding:"required,datetime=2006-01-02"`
	SessionID     string `json:"sessionId"`
	QueueID       string `json:"queueId"`
	CustomerID    string `json:"customerId"`
	CustomerName  string `json:"customerName" binding:"omitempty,max=200"`
	CustomerPhone string `json:"customerPhone" binding:"omitempty,max=30"`
	PaymentMethod string `json:"paymentMethod" binding:"omitempty,max=50"`
}

type PaymentSlipRequest struct {
	CustomerID    string `json:"customerId" binding:"required"`
	SlipReference string `json:"slipReference" binding:"required,max=500"`
}

type ModerateRequest struct {
	Action string `json:"action" binding:"required"`
}

type ListBookingsQuery struct {
	Status     string `form:"status"`
	StallID    string `form:"stallId"`
	CustomerID string `form:"customerId"`
	DateFrom   string `form:"dateFrom" binding:"omitempty,datetime=2006-01-02"`
	DateTo     string `form:"dateTo" binding:"omitempty,datetime=2006-01-02"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (q ListBookingsQuery) ToListQuery() ListQuery {
	return ListQuery{
		Status:     Status(q.Status),
		StallCode:  q.StallID,
		CustomerID: q.CustomerID,
		DateFrom:   q.DateFrom,
		DateTo:     q.DateTo,
		Page:       q.Page,
		Limit:      q.Limit,
	}
}
