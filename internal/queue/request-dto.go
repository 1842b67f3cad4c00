package queue

type EnqueueRequest struct {
	StallID     string `json:"stallId" binding:"required"`
	BookingDate string `json:"bookingDate" binding:"required,datetime=2006-01-02"`
	UserID      string `json:"userId" binding:"required"`
	UserName    string `json:"userName" binding:"required"`
}

// Action values accepted by PATCH /api/queue
const (
	ActionAccept = "ACCEPT"
	ActionReject = "REJECT"
)

type TicketActionRequest struct {
	QueueID string `json:"queueId" binding:"required"`
	Action  string `json:"action" binding:"required"`
}

type LeaveRequest struct {
	QueueID string `json:"queueId" binding:"required"`
}

type QueueQuery struct {
	StallID     string `form:"stallId" binding:"required"`
	BookingDate string `form:"bookingDate" binding:"required,datetime=2006-01-02"`
	UserID      string `form:"userId"`
}
