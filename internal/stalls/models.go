package stalls

import (
	"time"

	"github.com/google/uuid"
)

type StallStatus string

const (
	StallActive      StallStatus = "ACTIVE"
	StallMaintenance StallStatus = "MAINTENANCE"
)

type StallSize string

const (
	SizeSmall  StallSize = "SMALL"
	SizeMedium StallSize = "MEDIUM"
	SizeLarge  StallSize = "LARGE"
)

// Stall is a physical market space. Code ("A01") is what the booking flow
// uses as the stall id of a StallKey.
type Stall struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Code        string      `json:"code" gorm:"uniqueIndex;not null;size:16"`
	Zone        string      `json:"zone" gorm:"index;not null;size:50"`
	Size        StallSize   `json:"size" gorm:"type:varchar(10);default:'MEDIUM'"`
	PricePerDay float64     `json:"pricePerDay" gorm:"not null;check:price_per_day >= 0"`
	Status      StallStatus `json:"status" gorm:"type:varchar(20);default:'ACTIVE'"`
	CreatedAt   time.Time   `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updatedAt" gorm:"autoUpdateTime"`
}

func (Stall) TableName() string {
	return "stalls"
}

func (s *Stall) IsBookable() bool {
	return s.Status == StallActive
}

// MapStatus is a stall's state on one date as shown on the stall map.
type MapStatus string

const (
	MapAvailable   MapStatus = "AVAILABLE"
	MapHeld        MapStatus = "HELD"
	MapHeldByYou   MapStatus = "HELD_BY_YOU"
	MapQueued      MapStatus = "QUEUED"
	MapBooked      MapStatus = "BOOKED"
	MapMaintenance MapStatus = "MAINTENANCE"
)
