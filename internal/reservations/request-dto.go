package reservations

type ReserveRequest struct {
	StallID     string `json:"stallId" binding:"required"`
	BookingDate string `json:"bookingDate" binding:"required,datetime=2006-01-02"`
	SessionID   string `json:"sessionId" binding:"required"`
}

type ReleaseRequest struct {
	StallID     string `json:"stallId" binding:"required"`
	BookingDate string `json:"bookingDate" binding:"required,datetime=2006-01-02"`
	SessionID   string `json:"sessionId" binding:"required"`
}

type HoldQuery struct {
	StallID     string `form:"stallId" binding:"required"`
	BookingDate string `form:"bookingDate" binding:"required,datetime=2006-01-02"`
	SessionID   string `form:"sessionId"`
}
