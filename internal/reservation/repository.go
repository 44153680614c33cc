package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

type Repository interface {
	Create(ctx context.Context, r *Reservation) error
	GetByID(ctx context.Context, id int64) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	ListForResourceOnDate(ctx context.Context, resourceID int64, date time.Time) ([]*Reservation, error)
	Update(ctx context.Context, id int64, patch store.Record) error
	// Delete reports whether a row was removed.
	Delete(ctx context.Context, id int64) (bool, error)
}

type storeRepository struct {
	r store.Records
}

// NewRepository binds a Repository to a session or transaction.
func NewRepository(r store.Records) Repository {
	return &storeRepository{r: r}
}

func (r *storeRepository) Create(ctx context.Context, res *Reservation) error {
	id, err := r.r.Insert(ctx, Schema, res.record())
	if err != nil {
		return mapConstraint(err)
	}
	created, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*res = *created
	return nil
}

func (r *storeRepository) GetByID(ctx context.Context, id int64) (*Reservation, error) {
	rec, err := r.r.FindByID(ctx, Schema, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromRecord(rec), nil
}

func (r *storeRepository) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	f := store.Filter{}
	if filter.AccountID != 0 {
		f["account_id"] = filter.AccountID
	}
	if filter.ResourceID != 0 {
		f["resource_id"] = filter.ResourceID
	}
	if filter.Status != "" {
		f["status"] = string(filter.Status)
	}
	if filter.Date != nil {
		f["booking_date"] = *filter.Date
	}

	total, err := r.r.Count(ctx, Schema, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}

	q := store.Query{
		Filter: f,
		OrderBy: []store.Order{
			store.Desc("booking_date"),
			store.Desc("booking_time"),
			store.Desc(store.IDField),
		},
	}
	if filter.PageSize > 0 {
		q.Limit = filter.PageSize
		q.Offset = (max(filter.Page, 1) - 1) * filter.PageSize
	}
	recs, err := r.r.Find(ctx, Schema, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}
	return fromRecords(recs), int(total), nil
}

func (r *storeRepository) ListForResourceOnDate(ctx context.Context, resourceID int64, date time.Time) ([]*Reservation, error) {
	recs, err := r.r.Find(ctx, Schema, store.Query{
		Filter:  store.Filter{"resource_id": resourceID, "booking_date": date},
		OrderBy: []store.Order{store.Asc("booking_time"), store.Asc(store.IDField)},
	})
	if err != nil {
		return nil, fmt.Errorf("list day reservations: %w", err)
	}
	return fromRecords(recs), nil
}

func (r *storeRepository) Update(ctx context.Context, id int64, patch store.Record) error {
	n, err := r.r.UpdateByID(ctx, Schema, id, patch)
	if err != nil {
		return mapConstraint(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *storeRepository) Delete(ctx context.Context, id int64) (bool, error) {
	n, err := r.r.DeleteByID(ctx, Schema, id)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func fromRecords(recs []store.Record) []*Reservation {
	out := make([]*Reservation, len(recs))
	for i, rec := range recs {
		out[i] = fromRecord(rec)
	}
	return out
}

// mapConstraint turns foreign key violations into not-found errors for the
// referenced entity.
func mapConstraint(err error) error {
	var ce *store.ConstraintError
	if !errors.As(err, &ce) || ce.Kind != store.KindForeignKey {
		return err
	}
	switch ce.Constraint {
	case Schema.Name + "_account_id_fkey":
		return ErrAccountNotFound
	case Schema.Name + "_resource_id_fkey":
		return ErrResourceNotFound
	}
	return err
}
