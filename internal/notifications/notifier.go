package notifications

import (
	"context"
	"errors"
	"sync"

	"stallbook/pkg/logger"
)

// Notifier pushes an event to one user. Delivery is best effort: callers log
// failures and never roll back the state change that produced the event.
type Notifier interface {
	Push(ctx context.Context, userID string, event Event) error
}

// Dispatch pushes each event and logs failures instead of returning them.
func Dispatch(ctx context.Context, n Notifier, log *logger.Logger, events []Event) {
	if n == nil {
		return
	}
	for _, ev := range events {
		if err := n.Push(ctx, ev.UserID, ev); err != nil {
			log.ErrorWithContext(ctx, "notification push failed", err, map[string]interface{}{
				"type":      string(ev.Type),
				"user_id":   ev.UserID,
				"stall_key": ev.StallKey(),
			})
		}
	}
}

// LogNotifier writes events to the application log. Used when no broker is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Push(ctx context.Context, userID string, event Event) error {
	n.log.InfoWithContext(ctx, "notification", map[string]interface{}{
		"type":       string(event.Type),
		"user_id":    userID,
		"stall_key":  event.StallKey(),
		"ticket_id":  event.TicketID,
		"booking_id": event.BookingID,
		"position":   event.Position,
		"message":    event.Message,
	})
	return nil
}

// Multi fans an event out to several notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Push(ctx context.Context, userID string, event Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Push(ctx, userID, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps pushed events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Push(_ context.Context, _ string, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t, oldest first
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
