package stalls

import (
	"context"
	"time"

	"stallbook/internal/queue"
	"stallbook/internal/reservations"
	"stallbook/internal/shared/apperr"
	"stallbook/internal/stallkey"
)

// BookingLookup reports which stalls already carry an active booking.
type BookingLookup interface {
	IsBooked(ctx context.Context, key stallkey.Key) (bool, error)
	BookedStalls(ctx context.Context, date time.Time) (map[string]bool, error)
}

type SelectionMode string

const (
	SelectionReserved SelectionMode = "RESERVED"
	SelectionQueued   SelectionMode = "QUEUED"
)

type SelectionResult struct {
	Mode        SelectionMode
	Stall       *Stall
	Reservation *reservations.ReservationSlot
	Ticket      *queue.TicketStatus
}

type MapEntry struct {
	Stall       Stall
	Status      MapStatus
	QueueLength int
}

// SelectionService decides whether a user picking a stall gets a direct
// hold or a place in the stall's waiting line.
type SelectionService interface {
	Select(ctx context.Context, key stallkey.Key, sessionID, userID, displayName string) (*SelectionResult, error)
	Map(ctx context.Context, zone string, date string, sessionID string) ([]MapEntry, error)
}

type selectionService struct {
	catalog  Catalog
	holds    reservations.Manager
	queue    queue.Coordinator
	bookings BookingLookup
}

func NewSelectionService(catalog Catalog, holds reservations.Manager, coordinator queue.Coordinator, bookings BookingLookup) SelectionService {
	return &selectionService{catalog: catalog, holds: holds, queue: coordinator, bookings: bookings}
}

func (s *selectionService) Select(ctx context.Context, key stallkey.Key, sessionID, userID, displayName string) (*SelectionResult, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, apperr.Validation("stalls.select", "sessionId is required")
	}
	if userID == "" {
		userID = sessionID
	}

	stall, err := s.catalog.FindByCode(ctx, key.StallID)
	if err != nil {
		return nil, err
	}
	if !stall.IsBookable() {
		return nil, apperr.InvalidState("stalls.select", "stall %s is under maintenance", stall.Code)
	}

	if s.bookings != nil {
		booked, err := s.bookings.IsBooked(ctx, key)
		if err != nil {
			return nil, err
		}
		if booked {
			return nil, apperr.AlreadyBooked("stalls.select", "stall %s is already booked for %s", key.StallID, key.BookingDate)
		}
	}

	// a stall with a line is contested even if nobody holds it right now;
	// Reserve repeats the check under the key lock and refuses with Conflict
	contested, err := s.queue.HasActivity(ctx, key)
	if err != nil {
		return nil, err
	}
	if !contested {
		slot, err := s.holds.Reserve(ctx, key, sessionID, 0)
		if err == nil {
			return &SelectionResult{Mode: SelectionReserved, Stall: stall, Reservation: slot}, nil
		}
		if !apperr.IsKind(err, apperr.KindConflict) {
			return nil, err
		}
		// the session's own finalizing hold is not a reason to queue
		if held, herr := s.holds.Get(ctx, key); herr == nil && held.HeldBy(sessionID) {
			return nil, err
		}
	}

	ticket, err := s.queue.Enqueue(ctx, key, userID, displayName)
	if err != nil {
		return nil, err
	}
	return &SelectionResult{Mode: SelectionQueued, Stall: stall, Ticket: ticket}, nil
}

func (s *selectionService) Map(ctx context.Context, zone string, date string, sessionID string) ([]MapEntry, error) {
	list, err := s.catalog.List(ctx, zone)
	if err != nil {
		return nil, err
	}

	out := make([]MapEntry, 0, len(list))
	if date == "" {
		for _, stall := range list {
			out = append(out, MapEntry{Stall: stall, Status: baseStatus(&stall)})
		}
		return out, nil
	}

	day, err := time.Parse(stallkey.DateLayout, date)
	if err != nil {
		return nil, apperr.Validation("stalls.map", "date must be YYYY-MM-DD, got %q", date)
	}
	booked := map[string]bool{}
	if s.bookings != nil {
		if booked, err = s.bookings.BookedStalls(ctx, day); err != nil {
			return nil, err
		}
	}

	for _, stall := range list {
		entry := MapEntry{Stall: stall, Status: baseStatus(&stall)}
		if entry.Status == MapMaintenance {
			out = append(out, entry)
			continue
		}
		if booked[stall.Code] {
			entry.Status = MapBooked
			out = append(out, entry)
			continue
		}

		key := stallkey.Key{StallID: stall.Code, BookingDate: date}
		status, length, err := s.liveStatus(ctx, key, sessionID)
		if err != nil {
			return nil, err
		}
		entry.Status, entry.QueueLength = status, length
		out = append(out, entry)
	}
	return out, nil
}

func (s *selectionService) liveStatus(ctx context.Context, key stallkey.Key, sessionID string) (MapStatus, int, error) {
	slot, err := s.holds.Get(ctx, key)
	if err != nil && !apperr.IsKind(err, apperr.KindNotFound) {
		return "", 0, err
	}
	if slot != nil && sessionID != "" && slot.HeldBy(sessionID) {
		return MapHeldByYou, 0, nil
	}

	stats, err := s.queue.Stats(ctx, key)
	if err != nil {
		return "", 0, err
	}
	if stats.Total > 0 || stats.ClaimPending {
		return MapQueued, stats.Total, nil
	}
	if slot != nil {
		return MapHeld, 0, nil
	}
	return MapAvailable, 0, nil
}

func baseStatus(stall *Stall) MapStatus {
	if !stall.IsBookable() {
		return MapMaintenance
	}
	return MapAvailable
}
