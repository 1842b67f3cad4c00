package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the constraints the booking core relies on for
// concurrency control across service instances.
func MigrateConstraints(db *gorm.DB) error {
	// one active booking per stall and day
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_active_stall_date
		ON bookings (stall_code, start_date)
		WHERE status IN ('pending', 'confirmed');
	`).Error
	if err != nil {
		return err
	}

	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bookings_customer_status
		ON bookings (customer_id, status);
	`).Error
	if err != nil {
		return err
	}

	return nil
}
