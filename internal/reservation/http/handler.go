package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/table-booking-backend/internal/auth"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/table-booking-backend/internal/reservation"
)

type Handler struct {
	service reservation.Service
}

func NewHandler(service reservation.Service) *Handler {
	return &Handler{service: service}
}

func isAdmin(c *gin.Context) bool {
	return auth.GetRole(c) == auth.RoleAdmin
}

// List returns reservations.
// Access Control: admins see everything; other accounts only their own.
func (h *Handler) List(c *gin.Context) {
	var req ListReservationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	req.Normalize()

	filter := reservation.Filter{
		AccountID:  req.AccountID,
		ResourceID: req.ResourceID,
		Status:     reservation.Status(req.Status),
		Date:       req.Date,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	if !isAdmin(c) {
		filter.AccountID = auth.GetAccountID(c)
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, response.NewPageResponse(newReservationResponses(items), req.Page, req.PageSize, total))
}

// Create books a table for the current account. Admins may book on behalf
// of another account via account_id; other accounts always start pending.
func (h *Handler) Create(c *gin.Context) {
	var body CreateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	date, err := time.Parse(time.DateOnly, body.Date)
	if err != nil {
		response.Error(c, reservation.ErrInvalidDate)
		return
	}

	accountID := auth.GetAccountID(c)
	admin := isAdmin(c)
	if admin && body.AccountID != 0 {
		accountID = body.AccountID
	}
	// Only admins may force a conflict or book straight into a later status.
	if !admin && (body.Force || (body.Status != "" && reservation.Status(body.Status) != reservation.StatusPending)) {
		response.Error(c, reservation.ErrPermissionDenied)
		return
	}

	res, err := h.service.Create(c.Request.Context(), reservation.CreateRequest{
		AccountID:       accountID,
		ResourceID:      body.ResourceID,
		Date:            date,
		StartTime:       *body.StartTime,
		GuestsCount:     body.GuestsCount,
		Duration:        body.Duration,
		Status:          reservation.Status(body.Status),
		ContactPhone:    body.ContactPhone,
		ContactName:     body.ContactName,
		SpecialRequests: body.SpecialRequests,
		Force:           body.Force,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewReservationResponse(res))
}

// load fetches the reservation in the URI and checks the caller owns it
// or is an admin.
func (h *Handler) load(c *gin.Context) (*reservation.Reservation, bool) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid id", err)
		return nil, false
	}
	res, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !isAdmin(c) && res.AccountID != auth.GetAccountID(c) {
		response.Error(c, reservation.ErrPermissionDenied)
		return nil, false
	}
	return res, true
}

func (h *Handler) Get(c *gin.Context) {
	res, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, NewReservationResponse(res))
}

// Update changes a reservation.
// Access Control: admins may change anything. Owners may only cancel or
// edit their contact details.
func (h *Handler) Update(c *gin.Context) {
	res, ok := h.load(c)
	if !ok {
		return
	}

	var body UpdateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if !isAdmin(c) && !body.ownerOnly() {
		response.Error(c, reservation.ErrPermissionDenied)
		return
	}

	req := reservation.UpdateRequest{
		ResourceID:      body.ResourceID,
		StartTime:       body.StartTime,
		GuestsCount:     body.GuestsCount,
		Duration:        body.Duration,
		ContactPhone:    body.ContactPhone,
		ContactName:     body.ContactName,
		SpecialRequests: body.SpecialRequests,
		Force:           body.Force,
	}
	if body.Date != nil {
		date, err := time.Parse(time.DateOnly, *body.Date)
		if err != nil {
			response.Error(c, reservation.ErrInvalidDate)
			return
		}
		req.Date = &date
	}
	if body.Status != nil {
		status := reservation.Status(*body.Status)
		req.Status = &status
	}

	updated, err := h.service.Update(c.Request.Context(), res.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewReservationResponse(updated))
}

// Delete removes a reservation outright.
// Access Control: admin only. Owners cancel instead.
func (h *Handler) Delete(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid id", err)
		return
	}

	removed, err := h.service.Delete(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !removed {
		response.Error(c, reservation.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// Availability reports whether a slot on a table is free.
func (h *Handler) Availability(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid id", err)
		return
	}
	var req AvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	start, err := clock.Parse(req.StartTime)
	if err != nil {
		response.Error(c, reservation.ErrInvalidTime)
		return
	}
	if req.Duration == 0 {
		req.Duration = reservation.DefaultDuration
	}

	check := reservation.Check{
		ResourceID: uri.ID,
		Date:       req.Date,
		Start:      start,
		Duration:   req.Duration,
		ExcludeID:  req.ExcludeID,
	}
	ok, err := h.service.IsAvailable(c.Request.Context(), check)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, AvailabilityResponse{
		ResourceID: uri.ID,
		Date:       req.Date.Format(time.DateOnly),
		Requested:  check.Interval(),
		Available:  ok,
	})
}

// Schedule returns a table's reservations and free windows for one day.
func (h *Handler) Schedule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid id", err)
		return
	}
	var req DayRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	s, err := h.service.Schedule(c.Request.Context(), uri.ID, req.Date)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewScheduleResponse(s))
}
