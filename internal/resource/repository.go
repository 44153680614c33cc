package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

type Repository interface {
	Create(ctx context.Context, r *Resource) error
	GetByID(ctx context.Context, id int64) (*Resource, error)
	List(ctx context.Context, filter Filter) ([]*Resource, int, error)
	Update(ctx context.Context, id int64, patch store.Record) error
	Delete(ctx context.Context, id int64) error
}

type storeRepository struct {
	r store.Records
}

// NewRepository binds a Repository to a session or transaction.
func NewRepository(r store.Records) Repository {
	return &storeRepository{r: r}
}

func (r *storeRepository) Create(ctx context.Context, res *Resource) error {
	id, err := r.r.Insert(ctx, Schema, res.record())
	if err != nil {
		if store.IsConstraint(err, store.KindUnique) {
			return ErrNumberTaken
		}
		return err
	}
	created, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*res = *created
	return nil
}

func (r *storeRepository) GetByID(ctx context.Context, id int64) (*Resource, error) {
	rec, err := r.r.FindByID(ctx, Schema, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromRecord(rec), nil
}

func (r *storeRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	f := store.Filter{}
	if filter.IsActive != nil {
		f["is_active"] = *filter.IsActive
	}
	if filter.Location != "" {
		f["location"] = filter.Location
	}

	total, err := r.r.Count(ctx, Schema, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count resources: %w", err)
	}

	q := store.Query{Filter: f, OrderBy: []store.Order{store.Asc("number")}}
	if filter.PageSize > 0 {
		q.Limit = filter.PageSize
		q.Offset = (max(filter.Page, 1) - 1) * filter.PageSize
	}
	recs, err := r.r.Find(ctx, Schema, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list resources: %w", err)
	}

	out := make([]*Resource, len(recs))
	for i, rec := range recs {
		out[i] = fromRecord(rec)
	}
	return out, int(total), nil
}

func (r *storeRepository) Update(ctx context.Context, id int64, patch store.Record) error {
	n, err := r.r.UpdateByID(ctx, Schema, id, patch)
	if err != nil {
		if store.IsConstraint(err, store.KindUnique) {
			return ErrNumberTaken
		}
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *storeRepository) Delete(ctx context.Context, id int64) error {
	n, err := r.r.DeleteByID(ctx, Schema, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
