package http

import (
	"time"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/table-booking-backend/internal/resource"
)

type ListResourcesRequest struct {
	request.ListParams
	IsActive *bool  `form:"is_active"`
	Location string `form:"location"`
}

type ResourceResponse struct {
	ID          int64     `json:"id"`
	Number      int       `json:"number"`
	Capacity    int       `json:"capacity"`
	Location    *string   `json:"location"`
	TableType   *string   `json:"table_type"`
	IsActive    bool      `json:"is_active"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:          r.ID,
		Number:      r.Number,
		Capacity:    r.Capacity,
		Location:    r.Location,
		TableType:   r.TableType,
		IsActive:    r.IsActive,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type CreateRequest struct {
	Number      int     `json:"number" binding:"required,min=1"`
	Capacity    int     `json:"capacity" binding:"required,min=1"`
	Location    *string `json:"location" binding:"omitempty,max=100"`
	TableType   *string `json:"table_type" binding:"omitempty,max=50"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

type UpdateRequest struct {
	Number      *int    `json:"number" binding:"omitempty,min=1"`
	Capacity    *int    `json:"capacity" binding:"omitempty,min=1"`
	Location    *string `json:"location" binding:"omitempty,max=100"`
	TableType   *string `json:"table_type" binding:"omitempty,max=50"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}
