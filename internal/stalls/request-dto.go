package stalls

type SelectRequest struct {
	StallID     string `json:"stallId" binding:"required"`
	BookingDate string `json:"bookingDate" binding:"required,datetime=2006-01-02"`
	SessionID   string `json:"sessionId" binding:"required"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
}

type MapQuery struct {
	Zone      string `form:"zone"`
	Date      string `form:"date" binding:"omitempty,datetime=2006-01-02"`
	SessionID string `form:"sessionId"`
}

// UpsertStallRequest is the admin payload for PUT /admin/stalls/:code
type UpsertStallRequest struct {
	Zone        string      `json:"zone" binding:"required,max=50"`
	Size        StallSize   `json:"size" binding:"required,oneof=SMALL MEDIUM LARGE"`
	PricePerDay float64     `json:"pricePerDay" binding:"gte=0"`
	Status      StallStatus `json:"status" binding:"omitempty,oneof=ACTIVE MAINTENANCE"`
}
