package reservations

import "time"

type HoldResponse struct {
	StallID          string    `json:"stallId"`
	BookingDate      string    `json:"bookingDate"`
	HolderSessionID  string    `json:"holderSessionId"`
	HeldUntil        time.Time `json:"heldUntil"`
	TimeLeftSeconds  int       `json:"timeLeftSeconds"`
	BookingInProcess bool      `json:"bookingInProgress"`
}

type HoldStatusResponse struct {
	HeldByOther bool          `json:"heldByOther"`
	Reservation *HoldResponse `json:"reservation"`
}

func ToHoldResponse(slot *ReservationSlot, now time.Time) *HoldResponse {
	if slot == nil {
		return nil
	}
	return &HoldResponse{
		StallID:          slot.Key.StallID,
		BookingDate:      slot.Key.BookingDate,
		HolderSessionID:  slot.HolderSessionID,
		HeldUntil:        slot.HeldUntil,
		TimeLeftSeconds:  int(slot.TimeRemaining(now).Seconds()),
		BookingInProcess: slot.Finalizing,
	}
}
