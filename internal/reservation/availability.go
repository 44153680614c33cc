package reservation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

// Interval is a half-open [Start, End) window on one day.
type Interval struct {
	Start clock.Time `json:"start"`
	End   clock.Time `json:"end"`
}

// Overlaps reports whether i and o share any instant. Abutting intervals
// do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return !(i.End <= o.Start || i.Start >= o.End)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start, i.End)
}

// Check describes a candidate reservation slot.
type Check struct {
	ResourceID int64
	Date       time.Time
	Start      clock.Time
	Duration   int   // minutes; callers validate it is positive
	ExcludeID  int64 // reservation ignored by the check, 0 for none
}

func (c Check) Interval() Interval {
	return Interval{Start: c.Start, End: c.Start.AddMinutes(c.Duration)}
}

// FindConflict returns the first blocking reservation in existing whose
// interval overlaps candidate, or nil.
func FindConflict(existing []*Reservation, candidate Interval, excludeID int64) *Reservation {
	for _, r := range existing {
		if !r.Status.Blocking() {
			continue
		}
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		if r.Interval().Overlaps(candidate) {
			return r
		}
	}
	return nil
}

// FreeWindows returns the gaps between blocking reservations of one day
// that fall inside [open, close).
func FreeWindows(day []*Reservation, open, close clock.Time) []Interval {
	busy := make([]Interval, 0, len(day))
	for _, r := range day {
		if r.Status.Blocking() {
			busy = append(busy, r.Interval())
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start < busy[j].Start })

	free := make([]Interval, 0, len(busy)+1)
	cursor := open
	for _, b := range busy {
		if b.End <= cursor {
			continue
		}
		if b.Start >= close {
			break
		}
		if b.Start > cursor {
			free = append(free, Interval{Start: cursor, End: b.Start})
		}
		cursor = b.End
	}
	if cursor < close {
		free = append(free, Interval{Start: cursor, End: close})
	}
	return free
}

// Engine answers availability questions against the reservations visible
// through a session or transaction.
type Engine struct {
	log *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	return &Engine{log: log.Named("availability")}
}

// ListForResourceOnDate returns every reservation of the resource on date in
// any status, ordered by start time. Ties keep insertion order.
func (e *Engine) ListForResourceOnDate(ctx context.Context, r store.Records, resourceID int64, date time.Time) ([]*Reservation, error) {
	return NewRepository(r).ListForResourceOnDate(ctx, resourceID, date)
}

// Conflict returns the reservation blocking c, or nil when the slot is free.
func (e *Engine) Conflict(ctx context.Context, r store.Records, c Check) (*Reservation, error) {
	day, err := e.ListForResourceOnDate(ctx, r, c.ResourceID, c.Date)
	if err != nil {
		return nil, err
	}
	hit := FindConflict(day, c.Interval(), c.ExcludeID)
	if hit != nil {
		e.log.Debug("slot taken",
			zap.Int64("resource_id", c.ResourceID),
			zap.Stringer("requested", c.Interval()),
			zap.Int64("blocking_id", hit.ID),
			zap.Stringer("blocking", hit.Interval()),
		)
	}
	return hit, nil
}

// IsAvailable reports whether no blocking reservation overlaps c.
func (e *Engine) IsAvailable(ctx context.Context, r store.Records, c Check) (bool, error) {
	hit, err := e.Conflict(ctx, r, c)
	if err != nil {
		return false, err
	}
	return hit == nil, nil
}

// ConflictError reports that a requested slot overlaps a blocking
// reservation. The caller may resubmit with Force to book anyway.
type ConflictError struct {
	ResourceID int64
	Date       time.Time
	Requested  Interval
	Blocking   Interval
	BlockingID int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("table %d on %s: requested %s overlaps reservation %d at %s",
		e.ResourceID, e.Date.Format(time.DateOnly), e.Requested, e.BlockingID, e.Blocking)
}

// Unwrap exposes ErrConflict carrying the blocking interval as details, so
// the error maps to a 409 response and matches errors.Is(err, ErrConflict).
func (e *ConflictError) Unwrap() error {
	return ErrConflict.WithDetails(ConflictDetails{
		ResourceID:     e.ResourceID,
		Date:           e.Date.Format(time.DateOnly),
		Requested:      e.Requested,
		Blocking:       e.Blocking,
		BlockingID:     e.BlockingID,
		ForceAvailable: true,
	})
}

// ConflictDetails is the client-facing description of a conflict.
type ConflictDetails struct {
	ResourceID     int64    `json:"resource_id"`
	Date           string   `json:"date"`
	Requested      Interval `json:"requested"`
	Blocking       Interval `json:"blocking"`
	BlockingID     int64    `json:"blocking_reservation_id"`
	ForceAvailable bool     `json:"force_available"`
}

func newConflictError(c Check, hit *Reservation) *ConflictError {
	return &ConflictError{
		ResourceID: c.ResourceID,
		Date:       dateOnly(c.Date),
		Requested:  c.Interval(),
		Blocking:   hit.Interval(),
		BlockingID: hit.ID,
	}
}
