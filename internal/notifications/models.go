package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventQueueOffered        EventType = "QUEUE_OFFERED"
	EventQueuePositionUpdate EventType = "QUEUE_POSITION_UPDATE"
	EventQueueOfferExpired   EventType = "QUEUE_OFFER_EXPIRED"
	EventQueueAccepted       EventType = "QUEUE_ACCEPTED"
	EventStallBooked         EventType = "STALL_BOOKED"
	EventReservationExpired  EventType = "RESERVATION_EXPIRED"
	EventBookingCreated      EventType = "BOOKING_CREATED"
	EventBookingStatus       EventType = "BOOKING_STATUS_CHANGED"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Event is one "something changed for you" message pushed to a user.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Type      EventType  `json:"type"`
	Priority  Priority   `json:"priority"`
	UserID    string     `json:"userId"`
	StallID   string     `json:"stallId,omitempty"`
	Date      string     `json:"bookingDate,omitempty"`
	TicketID  string     `json:"ticketId,omitempty"`
	BookingID string     `json:"bookingId,omitempty"`
	Position  int        `json:"position,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
}

func NewEvent(eventType EventType, userID string, now time.Time) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Priority:  priorityFor(eventType),
		UserID:    userID,
		CreatedAt: now,
	}
}

func priorityFor(t EventType) Priority {
	switch t {
	case EventQueueOffered, EventStallBooked, EventBookingCreated:
		return PriorityHigh
	case EventQueuePositionUpdate:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// StallKey returns "stallId|date" or "" when the event is not stall scoped
func (e Event) StallKey() string {
	if e.StallID == "" {
		return ""
	}
	return e.StallID + "|" + e.Date
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
