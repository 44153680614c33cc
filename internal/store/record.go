package store

import (
	"maps"
	"time"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
)

// Record is one row as a field name to value mapping.
// Records returned by a store are detached copies owned by the caller.
type Record map[string]any

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return Record{}
	}
	return maps.Clone(r)
}

func (r Record) Int64(field string) int64 {
	switch v := r[field].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}

func (r Record) Int(field string) int {
	return int(r.Int64(field))
}

func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// StringPtr returns nil when the field is NULL or absent.
func (r Record) StringPtr(field string) *string {
	s, ok := r[field].(string)
	if !ok {
		return nil
	}
	return &s
}

func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

func (r Record) Time(field string) time.Time {
	t, _ := r[field].(time.Time)
	return t
}

func (r Record) Clock(field string) clock.Time {
	t, _ := r[field].(clock.Time)
	return t
}

// Filter is a conjunction of field equality tests. A nil value matches NULL.
// An empty filter matches every record.
type Filter map[string]any

// Order sorts by one field.
type Order struct {
	Field string
	Desc  bool
}

func Asc(field string) Order  { return Order{Field: field} }
func Desc(field string) Order { return Order{Field: field, Desc: true} }

// Query selects records from a collection. Zero Limit means no limit.
type Query struct {
	Filter  Filter
	OrderBy []Order
	Limit   int
	Offset  int
}
