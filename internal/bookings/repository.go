package bookings

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"stallbook/internal/shared/apperr"
	"stallbook/internal/stallkey"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// StatusChange is applied atomically to a booking and its latest payment intent.
type StatusChange struct {
	From    Status
	To      Status
	Payment PaymentStatus // empty leaves payment status untouched
	Intent  IntentStatus  // empty leaves the intent untouched
}

type Repository interface {
	// Create writes a booking and its first payment intent in one transaction.
	// A second active booking for the same stall and date fails AlreadyBooked.
	Create(ctx context.Context, booking *Booking, intent *PaymentIntent) error
	// FindActive returns the active booking for a stall on date, or nil.
	FindActive(ctx context.Context, stallCode string, date time.Time) (*Booking, error)
	ActiveStallCodes(ctx context.Context, date time.Time) ([]string, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	List(ctx context.Context, query ListQuery) ([]Booking, int64, error)
	// Transition moves a booking from change.From to change.To. A booking no
	// longer in change.From fails Conflict.
	Transition(ctx context.Context, id uuid.UUID, change StatusChange) error
	SubmitSlip(ctx context.Context, bookingID uuid.UUID, slipReference string) (*PaymentIntent, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

const uniqueViolation = "23505"

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(op, "booking not found")
	case isDuplicate(err):
		return apperr.AlreadyBooked(op, "stall already has an active booking for that date")
	}
	return apperr.Unavailable(op, err)
}

func activeStatuses() []string {
	out := make([]string, len(ActiveStatuses))
	for i, s := range ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

func (r *repository) Create(ctx context.Context, booking *Booking, intent *PaymentIntent) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(booking).Error; err != nil {
			return err
		}
		if intent == nil {
			return nil
		}
		intent.BookingID = booking.ID
		return tx.Create(intent).Error
	})
	if err != nil {
		return classify("bookings.create", err)
	}
	return nil
}

func (r *repository) FindActive(ctx context.Context, stallCode string, date time.Time) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Where("stall_code = ? AND start_date = ?", strings.ToUpper(stallCode), date.Format(stallkey.DateLayout)).
		Where("status IN ?", activeStatuses()).
		First(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Unavailable("bookings.find_active", err)
	}
	return &booking, nil
}

func (r *repository) ActiveStallCodes(ctx context.Context, date time.Time) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&Booking{}).
		Where("start_date = ?", date.Format(stallkey.DateLayout)).
		Where("status IN ?", activeStatuses()).
		Pluck("stall_code", &codes).Error
	if err != nil {
		return nil, apperr.Unavailable("bookings.active_codes", err)
	}
	return codes, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("PaymentIntents", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		return nil, classify("bookings.get", err)
	}
	return &booking, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]Booking, int64, error) {
	query.normalize()

	var bookings []Booking
	var totalCount int64

	baseQuery := r.applyFilters(r.db.WithContext(ctx).Model(&Booking{}), query)
	if err := baseQuery.Count(&totalCount).Error; err != nil {
		return nil, 0, apperr.Unavailable("bookings.list", err)
	}

	offset := (query.Page - 1) * query.Limit
	err := baseQuery.
		Order("created_at DESC").
		Offset(offset).
		Limit(query.Limit).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, apperr.Unavailable("bookings.list", err)
	}
	return bookings, totalCount, nil
}

// applyFilters applies query filters to the GORM query
func (r *repository) applyFilters(query *gorm.DB, filters ListQuery) *gorm.DB {
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.StallCode != "" {
		query = query.Where("stall_code = ?", strings.ToUpper(filters.StallCode))
	}
	if filters.CustomerID != "" {
		query = query.Where("customer_id = ?", filters.CustomerID)
	}
	if filters.DateFrom != "" {
		if dateFrom, err := time.Parse(stallkey.DateLayout, filters.DateFrom); err == nil {
			query = query.Where("start_date >= ?", dateFrom)
		}
	}
	if filters.DateTo != "" {
		if dateTo, err := time.Parse(stallkey.DateLayout, filters.DateTo); err == nil {
			query = query.Where("start_date <= ?", dateTo)
		}
	}
	return query
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, change StatusChange) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": change.To}
		if change.Payment != "" {
			updates["payment_status"] = change.Payment
		}
		res := tx.Model(&Booking{}).
			Where("id = ? AND status = ?", id, change.From).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("bookings.transition", "booking %s is no longer %s", id, change.From)
		}
		if change.Intent == "" {
			return nil
		}
		return tx.Model(&PaymentIntent{}).
			Where("id = (?)", tx.Model(&PaymentIntent{}).Select("id").Where("booking_id = ?", id).Order("created_at DESC").Limit(1)).
			Update("status", change.Intent).Error
	})
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return classify("bookings.transition", err)
}

func (r *repository) SubmitSlip(ctx context.Context, bookingID uuid.UUID, slipReference string) (*PaymentIntent, error) {
	var intent PaymentIntent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("booking_id = ?", bookingID).Order("created_at DESC").First(&intent).Error; err != nil {
			return err
		}
		if intent.Status == IntentVerified {
			return apperr.InvalidState("bookings.slip", "payment for booking %s is already verified", bookingID)
		}
		intent.Status = IntentSubmitted
		intent.SlipReference = slipReference
		if err := tx.Save(&intent).Error; err != nil {
			return err
		}
		return tx.Model(&Booking{}).Where("id = ?", bookingID).Update("payment_status", PaymentPending).Error
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, classify("bookings.slip", err)
	}
	return &intent, nil
}

// CalculateTotalPages returns how many pages of limit rows totalCount spans
func CalculateTotalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(limit)))
}
