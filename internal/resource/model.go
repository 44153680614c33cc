package resource

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

var (
	ErrNotFound        = apperror.New(http.StatusNotFound, "table not found")
	ErrNumberTaken     = apperror.New(http.StatusConflict, "table number already in use")
	ErrInvalidNumber   = apperror.New(http.StatusBadRequest, "table number must be positive")
	ErrInvalidCapacity = apperror.New(http.StatusBadRequest, "capacity must be at least 1")
	ErrInvalidLocation = apperror.New(http.StatusBadRequest, "invalid location")
	ErrEmptyUpdate     = apperror.New(http.StatusBadRequest, "no fields to update")
)

// Resource is a bookable table.
type Resource struct {
	ID          int64
	Number      int
	Capacity    int
	Location    *string
	TableType   *string
	IsActive    bool
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter defines parameters for listing resources.
type Filter struct {
	IsActive *bool
	Location string
	Page     int
	PageSize int
}

// Schema is the resources collection.
var Schema = &store.Schema{
	Name: "resources",
	Fields: append([]store.Field{
		store.ID(),
		{Name: "number", Type: store.TypeInt, NotNull: true, Unique: true, Min: store.MinValue(1)},
		{Name: "capacity", Type: store.TypeInt, NotNull: true, Min: store.MinValue(1)},
		{Name: "location", Type: store.TypeText, Size: 100},
		{Name: "table_type", Type: store.TypeText, Size: 50},
		{Name: "is_active", Type: store.TypeBool, NotNull: true, Default: true},
		{Name: "description", Type: store.TypeText},
	}, store.Timestamps()...),
}

func fromRecord(r store.Record) *Resource {
	return &Resource{
		ID:          r.Int64(store.IDField),
		Number:      r.Int("number"),
		Capacity:    r.Int("capacity"),
		Location:    r.StringPtr("location"),
		TableType:   r.StringPtr("table_type"),
		IsActive:    r.Bool("is_active"),
		Description: r.StringPtr("description"),
		CreatedAt:   r.Time(store.CreatedAtField),
		UpdatedAt:   r.Time(store.UpdatedAtField),
	}
}

func (r *Resource) record() store.Record {
	return store.Record{
		"number":      r.Number,
		"capacity":    r.Capacity,
		"location":    r.Location,
		"table_type":  r.TableType,
		"is_active":   r.IsActive,
		"description": r.Description,
	}
}
