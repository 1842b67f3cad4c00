package queue

import (
	"math"
	"time"
)

type QueueStatusResponse struct {
	ID           string     `json:"id"`
	Position     int        `json:"position"`
	Status       EntryState `json:"status"`
	TotalInQueue int        `json:"totalInQueue"`
	TimeLeft     int        `json:"timeLeft"`
	StallID      string     `json:"stallId"`
	BookingDate  string     `json:"bookingDate"`
	EndReason    EndReason  `json:"endReason,omitempty"`
}

type QueueStatusEnvelope struct {
	QueueStatus *QueueStatusResponse `json:"queueStatus"`
}

type EntryResponse struct {
	ID          string     `json:"id"`
	StallID     string     `json:"stallId"`
	BookingDate string     `json:"bookingDate"`
	UserID      string     `json:"userId"`
	UserName    string     `json:"userName"`
	Position    int        `json:"position"`
	Status      EntryState `json:"status"`
	OfferExpiry *time.Time `json:"offerExpiry"`
	TimeLeft    int        `json:"timeLeft"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type QueueListResponse struct {
	Queue      []EntryResponse `json:"queue"`
	TotalCount int             `json:"totalCount"`
}

type EnqueueResponse struct {
	QueueID      string     `json:"queueId"`
	Position     int        `json:"position"`
	Status       EntryState `json:"status"`
	TotalInQueue int        `json:"totalInQueue"`
	OfferExpiry  *time.Time `json:"offerExpiry"`
}

type NextInQueueResponse struct {
	NextInQueue *EntryResponse `json:"nextInQueue"`
}

// seconds rounds up so a fresh ten minute offer reads as 600.
func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func ToQueueStatusResponse(s *TicketStatus) *QueueStatusResponse {
	if s == nil {
		return nil
	}
	return &QueueStatusResponse{
		ID:           s.Entry.ID,
		Position:     s.Entry.Position,
		Status:       s.Entry.State,
		TotalInQueue: s.TotalInQueue,
		TimeLeft:     seconds(s.TimeLeft),
		StallID:      s.Entry.Key.StallID,
		BookingDate:  s.Entry.Key.BookingDate,
		EndReason:    s.Entry.EndReason,
	}
}

func ToEntryResponse(e *QueueEntry, now time.Time) *EntryResponse {
	if e == nil {
		return nil
	}
	return &EntryResponse{
		ID:          e.ID,
		StallID:     e.Key.StallID,
		BookingDate: e.Key.BookingDate,
		UserID:      e.UserID,
		UserName:    e.DisplayName,
		Position:    e.Position,
		Status:      e.State,
		OfferExpiry: copyTime(e.OfferExpiresAt),
		TimeLeft:    seconds(e.TimeLeft(now)),
		CreatedAt:   e.CreatedAt,
	}
}

func ToQueueListResponse(entries []QueueEntry, now time.Time) QueueListResponse {
	out := QueueListResponse{Queue: make([]EntryResponse, 0, len(entries)), TotalCount: len(entries)}
	for i := range entries {
		out.Queue = append(out.Queue, *ToEntryResponse(&entries[i], now))
	}
	return out
}

func ToEnqueueResponse(s *TicketStatus) EnqueueResponse {
	return EnqueueResponse{
		QueueID:      s.Entry.ID,
		Position:     s.Entry.Position,
		Status:       s.Entry.State,
		TotalInQueue: s.TotalInQueue,
		OfferExpiry:  copyTime(s.Entry.OfferExpiresAt),
	}
}
