package bookings

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCancelled: {},
	StatusCompleted: {},
}

// IsValid checks if the booking status is valid
func (s Status) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

func (s Status) String() string {
	return string(s)
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsActive reports whether the booking still occupies its stall.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// ActiveStatuses are the statuses covered by the one-booking-per-stall-date rule.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

// Source records which proof a booking was finalized from.
type Source string

const (
	SourceReservation Source = "RESERVATION"
	SourceQueue       Source = "QUEUE"
)

type IntentStatus string

const (
	IntentPending   IntentStatus = "PENDING"
	IntentSubmitted IntentStatus = "SUBMITTED"
	IntentVerified  IntentStatus = "VERIFIED"
	IntentRejected  IntentStatus = "REJECTED"
)

// Action is an admin moderation verb applied to a booking.
type Action string

const (
	ActionApprove  Action = "APPROVE"
	ActionReject   Action = "REJECT"
	ActionCancel   Action = "CANCEL"
	ActionComplete Action = "COMPLETE"
)

func (a Action) Target() (Status, bool) {
	switch a {
	case ActionApprove:
		return StatusConfirmed, true
	case ActionReject, ActionCancel:
		return StatusCancelled, true
	case ActionComplete:
		return StatusCompleted, true
	}
	return "", false
}
