package reservation

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/table-booking-backend/internal/resource"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

type CreateRequest struct {
	AccountID       int64
	ResourceID      int64
	Date            time.Time
	StartTime       clock.Time
	GuestsCount     int
	Duration        int    // minutes, 0 means DefaultDuration
	Status          Status // empty means StatusPending
	ContactPhone    *string
	ContactName     *string
	SpecialRequests *string
	// Force books the slot even when it overlaps a blocking reservation.
	Force bool
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	ResourceID      *int64
	Date            *time.Time
	StartTime       *clock.Time
	GuestsCount     *int
	Duration        *int
	Status          *Status
	ContactPhone    *string
	ContactName     *string
	SpecialRequests *string
	Force           bool
}

// Schedule is one table's day: every reservation plus the free windows
// inside opening hours.
type Schedule struct {
	ResourceID   int64
	Date         time.Time
	OpensAt      clock.Time
	ClosesAt     clock.Time
	Reservations []*Reservation
	Free         []Interval
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Reservation, error)
	GetByID(ctx context.Context, id int64) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (*Reservation, error)
	// Delete reports whether a reservation was removed.
	Delete(ctx context.Context, id int64) (bool, error)
	IsAvailable(ctx context.Context, c Check) (bool, error)
	ListForResourceOnDate(ctx context.Context, resourceID int64, date time.Time) ([]*Reservation, error)
	Schedule(ctx context.Context, resourceID int64, date time.Time) (*Schedule, error)
}

// Options tunes the reservation service.
type Options struct {
	// Serializable runs check-then-write under SERIALIZABLE isolation.
	Serializable bool
	// StrictTransitions enforces the status graph on updates.
	StrictTransitions bool
	OpensAt           clock.Time
	ClosesAt          clock.Time
}

type service struct {
	st     store.Store
	engine *Engine
	cache  DayCache
	log    *zap.Logger
	opts   Options
}

func NewService(st store.Store, cache DayCache, log *zap.Logger, opts Options) Service {
	if cache == nil {
		cache = NopDayCache{}
	}
	if opts.ClosesAt <= opts.OpensAt {
		opts.OpensAt, opts.ClosesAt = 0, clock.Day
	}
	return &service{
		st:     st,
		engine: NewEngine(log),
		cache:  cache,
		log:    log.Named("reservation"),
		opts:   opts,
	}
}

func (s *service) txOptions() store.TxOptions {
	return store.TxOptions{Serializable: s.opts.Serializable}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Reservation, error) {
	if req.Duration == 0 {
		req.Duration = DefaultDuration
	}
	if req.Status == "" {
		req.Status = StatusPending
	}
	if err := validate(req.Date, req.StartTime, req.GuestsCount, req.Duration, req.Status); err != nil {
		return nil, err
	}

	res := &Reservation{
		AccountID:       req.AccountID,
		ResourceID:      req.ResourceID,
		Date:            dateOnly(req.Date),
		StartTime:       req.StartTime,
		GuestsCount:     req.GuestsCount,
		Status:          req.Status,
		ContactPhone:    trimmed(req.ContactPhone),
		ContactName:     trimmed(req.ContactName),
		SpecialRequests: trimmed(req.SpecialRequests),
		Duration:        req.Duration,
	}
	check := Check{
		ResourceID: res.ResourceID,
		Date:       res.Date,
		Start:      res.StartTime,
		Duration:   res.Duration,
	}

	forced := false
	err := store.Tx(ctx, s.st, s.txOptions(), func(r store.Records) error {
		if err := requireActiveResource(ctx, r, res.ResourceID); err != nil {
			return err
		}
		if res.Status.Blocking() {
			hit, err := s.engine.Conflict(ctx, r, check)
			if err != nil {
				return err
			}
			if hit != nil {
				if !req.Force {
					return newConflictError(check, hit)
				}
				forced = true
			}
		}
		return NewRepository(r).Create(ctx, res)
	})
	if err != nil {
		return nil, s.mapTxError(err)
	}

	if forced {
		s.log.Info("reservation forced over conflict",
			zap.Int64("reservation_id", res.ID),
			zap.Int64("resource_id", res.ResourceID),
			zap.Stringer("interval", res.Interval()),
		)
	}
	s.invalidate(ctx, res.ResourceID, res.Date)
	return res, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*Reservation, error) {
	var res *Reservation
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		var err error
		res, err = NewRepository(sess).GetByID(ctx, id)
		return err
	})
	return res, err
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	if filter.Date != nil {
		d := dateOnly(*filter.Date)
		filter.Date = &d
	}

	var (
		items []*Reservation
		total int
	)
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		var err error
		items, total, err = NewRepository(sess).List(ctx, filter)
		return err
	})
	return items, total, err
}

func (s *service) Update(ctx context.Context, id int64, req UpdateRequest) (*Reservation, error) {
	patch, err := req.patch()
	if err != nil {
		return nil, err
	}

	var before, after *Reservation
	forced := false
	err = store.Tx(ctx, s.st, s.txOptions(), func(r store.Records) error {
		repo := NewRepository(r)
		cur, err := repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		next := req.apply(*cur)

		if err := validate(next.Date, next.StartTime, next.GuestsCount, next.Duration, next.Status); err != nil {
			return err
		}
		if s.opts.StrictTransitions && !cur.Status.CanTransition(next.Status) {
			return ErrInvalidTransition.WithDetails(map[string]Status{"from": cur.Status, "to": next.Status})
		}
		if next.ResourceID != cur.ResourceID {
			if err := requireActiveResource(ctx, r, next.ResourceID); err != nil {
				return err
			}
		}

		moved := next.ResourceID != cur.ResourceID ||
			!next.Date.Equal(cur.Date) ||
			next.StartTime != cur.StartTime ||
			next.Duration != cur.Duration
		reactivated := !cur.Status.Blocking() && next.Status.Blocking()

		if (moved || reactivated) && next.Status.Blocking() {
			check := Check{
				ResourceID: next.ResourceID,
				Date:       next.Date,
				Start:      next.StartTime,
				Duration:   next.Duration,
				ExcludeID:  id,
			}
			hit, err := s.engine.Conflict(ctx, r, check)
			if err != nil {
				return err
			}
			if hit != nil {
				if !req.Force {
					return newConflictError(check, hit)
				}
				forced = true
			}
		}

		if err := repo.Update(ctx, id, patch); err != nil {
			return err
		}
		before = cur
		after, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.mapTxError(err)
	}

	if forced {
		s.log.Info("reservation update forced over conflict",
			zap.Int64("reservation_id", id),
			zap.Stringer("interval", after.Interval()),
		)
	}
	s.invalidate(ctx, before.ResourceID, before.Date)
	if after.ResourceID != before.ResourceID || !after.Date.Equal(before.Date) {
		s.invalidate(ctx, after.ResourceID, after.Date)
	}
	return after, nil
}

func (s *service) Delete(ctx context.Context, id int64) (bool, error) {
	var (
		cur     *Reservation
		removed bool
	)
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		repo := NewRepository(sess)
		var err error
		cur, err = repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		removed, err = repo.Delete(ctx, id)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if removed {
		s.invalidate(ctx, cur.ResourceID, cur.Date)
	}
	return removed, nil
}

func (s *service) IsAvailable(ctx context.Context, c Check) (bool, error) {
	if c.Duration <= 0 {
		return false, ErrInvalidDuration
	}
	if !c.Start.Valid() {
		return false, ErrInvalidTime
	}
	c.Date = dateOnly(c.Date)

	var ok bool
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		var err error
		ok, err = s.engine.IsAvailable(ctx, sess, c)
		return err
	})
	return ok, err
}

func (s *service) ListForResourceOnDate(ctx context.Context, resourceID int64, date time.Time) ([]*Reservation, error) {
	var day []*Reservation
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		var err error
		day, err = s.dayOf(ctx, sess, resourceID, dateOnly(date))
		return err
	})
	return day, err
}

func (s *service) Schedule(ctx context.Context, resourceID int64, date time.Time) (*Schedule, error) {
	date = dateOnly(date)
	var day []*Reservation
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		if _, err := resource.NewRepository(sess).GetByID(ctx, resourceID); err != nil {
			if errors.Is(err, resource.ErrNotFound) {
				return ErrResourceNotFound
			}
			return err
		}
		var err error
		day, err = s.dayOf(ctx, sess, resourceID, date)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Schedule{
		ResourceID:   resourceID,
		Date:         date,
		OpensAt:      s.opts.OpensAt,
		ClosesAt:     s.opts.ClosesAt,
		Reservations: day,
		Free:         FreeWindows(day, s.opts.OpensAt, s.opts.ClosesAt),
	}, nil
}

// dayOf serves a day from the cache, filling it from the store on a miss.
func (s *service) dayOf(ctx context.Context, sess store.Session, resourceID int64, date time.Time) ([]*Reservation, error) {
	day, gen, hit, err := s.cache.Get(ctx, resourceID, date)
	if err != nil {
		// Without a generation a fill could race an invalidation.
		s.log.Warn("schedule cache read failed", zap.Error(err))
		return s.engine.ListForResourceOnDate(ctx, sess, resourceID, date)
	}
	if hit {
		return day, nil
	}

	day, err = s.engine.ListForResourceOnDate(ctx, sess, resourceID, date)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, resourceID, date, gen, day); err != nil {
		s.log.Warn("schedule cache write failed", zap.Error(err))
	}
	return day, nil
}

func (s *service) invalidate(ctx context.Context, resourceID int64, date time.Time) {
	if err := s.cache.Invalidate(ctx, resourceID, date); err != nil {
		s.log.Warn("schedule cache invalidation failed",
			zap.Int64("resource_id", resourceID),
			zap.Time("date", date),
			zap.Error(err),
		)
	}
}

// mapTxError reports a serialization failure as a booking conflict: a
// concurrent writer took the slot between the check and the insert.
func (s *service) mapTxError(err error) error {
	if store.IsConstraint(err, store.KindSerialization) {
		return apperror.Wrap(err, http.StatusConflict, ErrConflict.Message)
	}
	return err
}

func requireActiveResource(ctx context.Context, r store.Records, id int64) error {
	res, err := resource.NewRepository(r).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return ErrResourceNotFound
		}
		return err
	}
	if !res.IsActive {
		return ErrResourceInactive
	}
	return nil
}

func validate(date time.Time, start clock.Time, guests, duration int, status Status) error {
	switch {
	case date.IsZero():
		return ErrInvalidDate
	case !start.Valid():
		return ErrInvalidTime
	case guests < 1:
		return ErrInvalidGuests
	case duration < 1:
		return ErrInvalidDuration
	case !status.Valid():
		return ErrInvalidStatus
	}
	return nil
}

// patch builds the store patch for the set fields.
func (req UpdateRequest) patch() (store.Record, error) {
	p := store.Record{}
	if req.ResourceID != nil {
		p["resource_id"] = *req.ResourceID
	}
	if req.Date != nil {
		p["booking_date"] = dateOnly(*req.Date)
	}
	if req.StartTime != nil {
		p["booking_time"] = *req.StartTime
	}
	if req.GuestsCount != nil {
		p["guests_count"] = *req.GuestsCount
	}
	if req.Duration != nil {
		p["duration"] = *req.Duration
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, ErrInvalidStatus
		}
		p["status"] = string(*req.Status)
	}
	if req.ContactPhone != nil {
		p["contact_phone"] = trimmed(req.ContactPhone)
	}
	if req.ContactName != nil {
		p["contact_name"] = trimmed(req.ContactName)
	}
	if req.SpecialRequests != nil {
		p["special_requests"] = trimmed(req.SpecialRequests)
	}
	if len(p) == 0 {
		return nil, ErrEmptyUpdate
	}
	return p, nil
}

// apply returns r with the set fields replaced.
func (req UpdateRequest) apply(r Reservation) Reservation {
	if req.ResourceID != nil {
		r.ResourceID = *req.ResourceID
	}
	if req.Date != nil {
		r.Date = dateOnly(*req.Date)
	}
	if req.StartTime != nil {
		r.StartTime = *req.StartTime
	}
	if req.GuestsCount != nil {
		r.GuestsCount = *req.GuestsCount
	}
	if req.Duration != nil {
		r.Duration = *req.Duration
	}
	if req.Status != nil {
		r.Status = *req.Status
	}
	return r
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
