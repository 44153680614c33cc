package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

// Repository defines methods for accessing account data from storage.
type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context, filter Filter) ([]*Account, int, error)
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

func (r *storeRepository) Create(ctx context.Context, a *Account) error {
	id, err := r.r.Insert(ctx, Schema, a.record())
	if err != nil {
		return mapConstraint(err)
	}
	created, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*a = *created
	return nil
}

func (r *storeRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	rec, err := r.r.FindByID(ctx, Schema, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return fromRecord(rec), nil
}

func (r *storeRepository) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return r.findOne(ctx, store.Filter{"username": username})
}

func (r *storeRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, store.Filter{"email": email})
}

func (r *storeRepository) findOne(ctx context.Context, f store.Filter) (*Account, error) {
	recs, err := r.r.Find(ctx, Schema, store.Query{Filter: f, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return fromRecord(recs[0]), nil
}

func (r *storeRepository) List(ctx context.Context, filter Filter) ([]*Account, int, error) {
	f := store.Filter{}
	if filter.IsActive != nil {
		f["is_active"] = *filter.IsActive
	}
	if filter.Role != "" {
		f["role"] = filter.Role
	}

	total, err := r.r.Count(ctx, Schema, f)
	if err != nil {
		return nil, 0, fmt.Errorf("count accounts: %w", err)
	}

	q := store.Query{Filter: f, OrderBy: []store.Order{store.Asc(store.IDField)}}
	if filter.PageSize > 0 {
		q.Limit = filter.PageSize
		q.Offset = (max(filter.Page, 1) - 1) * filter.PageSize
	}
	recs, err := r.r.Find(ctx, Schema, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list accounts: %w", err)
	}

	out := make([]*Account, len(recs))
	for i, rec := range recs {
		out[i] = fromRecord(rec)
	}
	return out, int(total), nil
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

// mapConstraint turns unique violations on username and email into
// domain errors.
func mapConstraint(err error) error {
	var ce *store.ConstraintError
	if !errors.As(err, &ce) || ce.Kind != store.KindUnique {
		return err
	}
	switch ce.Constraint {
	case Schema.Name + "_username_key":
		return ErrUsernameTaken
	case Schema.Name + "_email_key":
		return ErrEmailAlreadyUsed
	}
	return err
}
