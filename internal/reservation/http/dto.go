package http

import (
	"time"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/table-booking-backend/internal/reservation"
)

// ListReservationsRequest defines query parameters for listing reservations.
type ListReservationsRequest struct {
	request.ListParams
	AccountID  int64      `form:"account_id" binding:"omitempty,min=1"`
	ResourceID int64      `form:"resource_id" binding:"omitempty,min=1"`
	Status     string     `form:"status" binding:"omitempty,oneof=pending confirmed cancelled completed"`
	Date       *time.Time `form:"date" time_format:"2006-01-02"`
}

// DayRequest selects one calendar day.
type DayRequest struct {
	Date time.Time `form:"date" binding:"required" time_format:"2006-01-02"`
}

// AvailabilityRequest describes a candidate slot on a table.
type AvailabilityRequest struct {
	DayRequest
	StartTime string `form:"start_time" binding:"required"`
	Duration  int    `form:"duration" binding:"omitempty,min=1"`
	ExcludeID int64  `form:"exclude_id" binding:"omitempty,min=1"`
}

type AvailabilityResponse struct {
	ResourceID int64                `json:"resource_id"`
	Date       string               `json:"date"`
	Requested  reservation.Interval `json:"requested"`
	Available  bool                 `json:"available"`
}

type CreateReservationRequest struct {
	// AccountID is honoured for admins only; others always book for themselves.
	AccountID       int64       `json:"account_id" binding:"omitempty,min=1"`
	ResourceID      int64       `json:"resource_id" binding:"required,min=1"`
	Date            string      `json:"booking_date" binding:"required,datetime=2006-01-02"`
	StartTime       *clock.Time `json:"booking_time" binding:"required"`
	GuestsCount     int         `json:"guests_count" binding:"required,min=1"`
	Duration        int         `json:"duration" binding:"omitempty,min=1"`
	Status          string      `json:"status" binding:"omitempty,oneof=pending confirmed cancelled completed"`
	ContactPhone    *string     `json:"contact_phone" binding:"omitempty,max=20"`
	ContactName     *string     `json:"contact_name" binding:"omitempty,max=100"`
	SpecialRequests *string     `json:"special_requests"`
	Force           bool        `json:"force"`
}

// UpdateReservationRequest defines fields allowed to be updated via PATCH /reservations/:id.
type UpdateReservationRequest struct {
	ResourceID      *int64      `json:"resource_id" binding:"omitempty,min=1"`
	Date            *string     `json:"booking_date" binding:"omitempty,datetime=2006-01-02"`
	StartTime       *clock.Time `json:"booking_time"`
	GuestsCount     *int        `json:"guests_count" binding:"omitempty,min=1"`
	Duration        *int        `json:"duration" binding:"omitempty,min=1"`
	Status          *string     `json:"status" binding:"omitempty,oneof=pending confirmed cancelled completed"`
	ContactPhone    *string     `json:"contact_phone" binding:"omitempty,max=20"`
	ContactName     *string     `json:"contact_name" binding:"omitempty,max=100"`
	SpecialRequests *string     `json:"special_requests"`
	Force           bool        `json:"force"`
}

// ownerOnly reports whether the body is a plain cancellation or a contact
// details change, the only edits a non-admin owner may make.
func (r *UpdateReservationRequest) ownerOnly() bool {
	if r.Status != nil && reservation.Status(*r.Status) != reservation.StatusCancelled {
		return false
	}
	return r.ResourceID == nil && r.Date == nil && r.StartTime == nil &&
		r.GuestsCount == nil && r.Duration == nil && !r.Force
}

type ReservationResponse struct {
	ID              int64      `json:"id"`
	AccountID       int64      `json:"account_id"`
	ResourceID      int64      `json:"resource_id"`
	Date            string     `json:"booking_date"`
	StartTime       clock.Time `json:"booking_time"`
	EndTime         clock.Time `json:"end_time"`
	GuestsCount     int        `json:"guests_count"`
	Status          string     `json:"status"`
	ContactPhone    *string    `json:"contact_phone"`
	ContactName     *string    `json:"contact_name"`
	SpecialRequests *string    `json:"special_requests"`
	Duration        int        `json:"duration"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func NewReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:              r.ID,
		AccountID:       r.AccountID,
		ResourceID:      r.ResourceID,
		Date:            r.Date.Format(time.DateOnly),
		StartTime:       r.StartTime,
		EndTime:         r.Interval().End,
		GuestsCount:     r.GuestsCount,
		Status:          string(r.Status),
		ContactPhone:    r.ContactPhone,
		ContactName:     r.ContactName,
		SpecialRequests: r.SpecialRequests,
		Duration:        r.Duration,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func newReservationResponses(items []*reservation.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, len(items))
	for i, r := range items {
		out[i] = NewReservationResponse(r)
	}
	return out
}

type ScheduleResponse struct {
	ResourceID   int64                  `json:"resource_id"`
	Date         string                 `json:"date"`
	OpensAt      clock.Time             `json:"opens_at"`
	ClosesAt     clock.Time             `json:"closes_at"`
	Reservations []ReservationResponse  `json:"reservations"`
	Free         []reservation.Interval `json:"free"`
}

func NewScheduleResponse(s *reservation.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ResourceID:   s.ResourceID,
		Date:         s.Date.Format(time.DateOnly),
		OpensAt:      s.OpensAt,
		ClosesAt:     s.ClosesAt,
		Reservations: newReservationResponses(s.Reservations),
		Free:         s.Free,
	}
}
