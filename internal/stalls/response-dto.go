package stalls

import (
	"time"

	"stallbook/internal/queue"
	"stallbook/internal/reservations"
)

type StallResponse struct {
	ID          string      `json:"id"`
	Code        string      `json:"code"`
	Zone        string      `json:"zone"`
	Size        StallSize   `json:"size"`
	PricePerDay float64     `json:"pricePerDay"`
	Status      StallStatus `json:"status"`
}

type MapEntryResponse struct {
	StallResponse
	Availability MapStatus `json:"availability"`
	QueueLength  int       `json:"queueLength,omitempty"`
}

type StallMapResponse struct {
	Date   string             `json:"date,omitempty"`
	Zone   string             `json:"zone,omitempty"`
	Stalls []MapEntryResponse `json:"stalls"`
}

type SelectResponse struct {
	Mode        SelectionMode              `json:"mode"`
	Stall       StallResponse              `json:"stall"`
	Reservation *reservations.HoldResponse `json:"reservation,omitempty"`
	Queue       *queue.EnqueueResponse     `json:"queue,omitempty"`
}

func ToStallResponse(s *Stall) StallResponse {
	return StallResponse{
		ID:          s.ID.String(),
		Code:        s.Code,
		Zone:        s.Zone,
		Size:        s.Size,
		PricePerDay: s.PricePerDay,
		Status:      s.Status,
	}
}

func ToStallMapResponse(zone, date string, entries []MapEntry) StallMapResponse {
	out := StallMapResponse{Date: date, Zone: zone, Stalls: make([]MapEntryResponse, 0, len(entries))}
	for i := range entries {
		out.Stalls = append(out.Stalls, MapEntryResponse{
			StallResponse: ToStallResponse(&entries[i].Stall),
			Availability:  entries[i].Status,
			QueueLength:   entries[i].QueueLength,
		})
	}
	return out
}

func ToSelectResponse(r *SelectionResult, now time.Time) SelectResponse {
	out := SelectResponse{Mode: r.Mode, Stall: ToStallResponse(r.Stall)}
	if r.Reservation != nil {
		out.Reservation = reservations.ToHoldResponse(r.Reservation, now)
	}
	if r.Ticket != nil {
		q := queue.ToEnqueueResponse(r.Ticket)
		out.Queue = &q
	}
	return out
}
