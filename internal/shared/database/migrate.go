package database

import (
	"stallbook/internal/auth"
	"stallbook/internal/bookings"
	"stallbook/internal/stalls"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return err
	}
	return db.AutoMigrate(
		&auth.Account{},
		&stalls.Stall{},
		&bookings.Booking{},
		&bookings.PaymentIntent{},
	)
}
