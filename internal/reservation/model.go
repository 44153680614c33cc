package reservation

import (
	"net/http"
	"slices"
	"time"

	"github.com/nekogravitycat/table-booking-backend/internal/account"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/table-booking-backend/internal/resource"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

var (
	ErrNotFound          = apperror.New(http.StatusNotFound, "reservation not found")
	ErrConflict          = apperror.New(http.StatusConflict, "time slot already booked")
	ErrResourceNotFound  = apperror.New(http.StatusNotFound, "table not found")
	ErrResourceInactive  = apperror.New(http.StatusBadRequest, "table is not accepting reservations")
	ErrAccountNotFound   = apperror.New(http.StatusNotFound, "account not found")
	ErrInvalidStatus     = apperror.New(http.StatusBadRequest, "invalid reservation status")
	ErrInvalidTransition = apperror.New(http.StatusConflict, "status transition not allowed")
	ErrInvalidGuests     = apperror.New(http.StatusBadRequest, "guests count must be at least 1")
	ErrInvalidDuration   = apperror.New(http.StatusBadRequest, "duration must be positive")
	ErrInvalidDate       = apperror.New(http.StatusBadRequest, "booking date is required")
	ErrInvalidTime       = apperror.New(http.StatusBadRequest, "invalid booking time")
	ErrPermissionDenied  = apperror.New(http.StatusForbidden, "permission denied")
	ErrEmptyUpdate       = apperror.New(http.StatusBadRequest, "no fields to update")
)

// DefaultDuration is the reservation length in minutes when none is given.
const DefaultDuration = 120

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var statuses = []string{
	string(StatusPending),
	string(StatusConfirmed),
	string(StatusCancelled),
	string(StatusCompleted),
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

func (s Status) Valid() bool {
	return slices.Contains(statuses, string(s))
}

// Blocking reports whether reservations in this status occupy their slot.
func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition reports whether s may move to next. Staying put is allowed.
func (s Status) CanTransition(next Status) bool {
	return s == next || slices.Contains(transitions[s], next)
}

type Reservation struct {
	ID              int64
	AccountID       int64
	ResourceID      int64
	Date            time.Time
	StartTime       clock.Time
	GuestsCount     int
	Status          Status
	ContactPhone    *string
	ContactName     *string
	SpecialRequests *string
	Duration        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the occupied [start, start+duration) window. A missing
// duration counts as DefaultDuration.
func (r *Reservation) Interval() Interval {
	d := r.Duration
	if d <= 0 {
		d = DefaultDuration
	}
	return Interval{Start: r.StartTime, End: r.StartTime.AddMinutes(d)}
}

type Filter struct {
	AccountID  int64
	ResourceID int64
	Status     Status
	Date       *time.Time

	Page     int
	PageSize int
}

// Schema is the reservations collection.
var Schema = &store.Schema{
	Name: "reservations",
	Fields: append([]store.Field{
		store.ID(),
		{Name: "account_id", Type: store.TypeBigInt, NotNull: true, References: &store.Reference{Collection: account.Schema.Name, Cascade: true}},
		{Name: "resource_id", Type: store.TypeBigInt, NotNull: true, References: &store.Reference{Collection: resource.Schema.Name, Cascade: true}},
		{Name: "booking_date", Type: store.TypeDate, NotNull: true},
		{Name: "booking_time", Type: store.TypeTime, NotNull: true},
		{Name: "guests_count", Type: store.TypeInt, NotNull: true, Min: store.MinValue(1)},
		{Name: "status", Type: store.TypeText, Size: 20, NotNull: true, Default: string(StatusPending), Enum: statuses},
		{Name: "contact_phone", Type: store.TypeText, Size: 20},
		{Name: "contact_name", Type: store.TypeText, Size: 100},
		{Name: "special_requests", Type: store.TypeText},
		{Name: "duration", Type: store.TypeInt, NotNull: true, Default: DefaultDuration, Min: store.MinValue(1)},
	}, store.Timestamps()...),
	Indexes: [][]string{{"resource_id", "booking_date"}},
}

func fromRecord(r store.Record) *Reservation {
	return &Reservation{
		ID:              r.Int64(store.IDField),
		AccountID:       r.Int64("account_id"),
		ResourceID:      r.Int64("resource_id"),
		Date:            r.Time("booking_date"),
		StartTime:       r.Clock("booking_time"),
		GuestsCount:     r.Int("guests_count"),
		Status:          Status(r.String("status")),
		ContactPhone:    r.StringPtr("contact_phone"),
		ContactName:     r.StringPtr("contact_name"),
		SpecialRequests: r.StringPtr("special_requests"),
		Duration:        r.Int("duration"),
		CreatedAt:       r.Time(store.CreatedAtField),
		UpdatedAt:       r.Time(store.UpdatedAtField),
	}
}

func (r *Reservation) record() store.Record {
	return store.Record{
		"account_id":       r.AccountID,
		"resource_id":      r.ResourceID,
		"booking_date":     r.Date,
		"booking_time":     r.StartTime,
		"guests_count":     r.GuestsCount,
		"status":           string(r.Status),
		"contact_phone":    r.ContactPhone,
		"contact_name":     r.ContactName,
		"special_requests": r.SpecialRequests,
		"duration":         r.Duration,
	}
}

// dateOnly drops the clock part of t, keeping its calendar date.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
