package resource

import (
	"context"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

type CreateRequest struct {
	Number      int
	Capacity    int
	Location    *string
	TableType   *string
	Description *string
	IsActive    *bool // nil means active
}

type UpdateRequest struct {
	Number      *int
	Capacity    *int
	Location    *string
	TableType   *string
	Description *string
	IsActive    *bool
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Resource, error)
	GetByID(ctx context.Context, id int64) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, id int64, req UpdateRequest) (*Resource, error)
	// Delete removes the table together with its reservations.
	Delete(ctx context.Context, id int64) error
}

// Invalidator drops cached data derived from reservations.
type Invalidator interface {
	InvalidateAll(ctx context.Context) error
}

type service struct {
	st        store.Store
	locations []string
	cache     Invalidator
	log       *zap.Logger
}

type Option func(*service)

// WithLocations restricts locations to a closed vocabulary.
func WithLocations(locations []string) Option {
	return func(s *service) { s.locations = locations }
}

// WithInvalidator registers a cache flushed after cascading deletes.
func WithInvalidator(inv Invalidator) Option {
	return func(s *service) { s.cache = inv }
}

func NewService(st store.Store, log *zap.Logger, opts ...Option) Service {
	s := &service{
		st:  st,
		log: log.Named("resource"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Resource, error) {
	if req.Number < 1 {
		return nil, ErrInvalidNumber
	}
	if req.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	loc, err := s.checkLocation(req.Location)
	if err != nil {
		return nil, err
	}

	res := &Resource{
		Number:      req.Number,
		Capacity:    req.Capacity,
		Location:    loc,
		TableType:   trimmed(req.TableType),
		Description: trimmed(req.Description),
		IsActive:    req.IsActive == nil || *req.IsActive,
	}

	err = store.Do(ctx, s.st, func(sess store.Session) error {
		return NewRepository(sess).Create(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*Resource, error) {
	var res *Resource
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		var err error
		res, err = NewRepository(sess).GetByID(ctx, id)
		return err
	})
	return res, err
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	var (
		items []*Resource
		total int
	)
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		var err error
		items, total, err = NewRepository(sess).List(ctx, filter)
		return err
	})
	return items, total, err
}

func (s *service) Update(ctx context.Context, id int64, req UpdateRequest) (*Resource, error) {
	patch := store.Record{}
	if req.Number != nil {
		if *req.Number < 1 {
			return nil, ErrInvalidNumber
		}
		patch["number"] = *req.Number
	}
	if req.Capacity != nil {
		if *req.Capacity < 1 {
			return nil, ErrInvalidCapacity
		}
		patch["capacity"] = *req.Capacity
	}
	if req.Location != nil {
		loc, err := s.checkLocation(req.Location)
		if err != nil {
			return nil, err
		}
		patch["location"] = loc
	}
	if req.TableType != nil {
		patch["table_type"] = trimmed(req.TableType)
	}
	if req.Description != nil {
		patch["description"] = trimmed(req.Description)
	}
	if req.IsActive != nil {
		patch["is_active"] = *req.IsActive
	}
	if len(patch) == 0 {
		return nil, ErrEmptyUpdate
	}

	var res *Resource
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		repo := NewRepository(sess)
		if err := repo.Update(ctx, id, patch); err != nil {
			return err
		}
		var err error
		res, err = repo.GetByID(ctx, id)
		return err
	})
	return res, err
}

func (s *service) Delete(ctx context.Context, id int64) error {
	err := store.Do(ctx, s.st, func(sess store.Session) error {
		return NewRepository(sess).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateAll(ctx); err != nil {
			s.log.Warn("failed to flush schedule cache", zap.Int64("resource_id", id), zap.Error(err))
		}
	}
	return nil
}

// checkLocation trims the location and checks it against the configured
// vocabulary. A blank location clears the field.
func (s *service) checkLocation(loc *string) (*string, error) {
	loc = trimmed(loc)
	if loc == nil || len(s.locations) == 0 {
		return loc, nil
	}
	if !slices.Contains(s.locations, *loc) {
		return nil, ErrInvalidLocation.WithDetails(s.locations)
	}
	return loc, nil
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
