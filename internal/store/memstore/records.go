package memstore

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

// records implements store.Records. When locked is set the caller already
// holds the store lock (inside InTx).
type records struct {
	st     *Store
	log    *zap.Logger
	locked bool
}

func (r *records) with(fn func() error) error {
	if !r.locked {
		r.st.mu.Lock()
		defer r.st.mu.Unlock()
	}
	return fn()
}

func (r *records) fail(op, collection string, err error) error {
	fields := []zap.Field{zap.String("op", op), zap.String("collection", collection), zap.Error(err)}
	if errors.Is(err, store.ErrConstraint) {
		r.log.Warn("constraint violated", fields...)
	} else {
		r.log.Error("operation failed", fields...)
	}
	return fmt.Errorf("%s %s: %w", op, collection, err)
}

func (r *records) Insert(ctx context.Context, s *store.Schema, rec store.Record) (int64, error) {
	clean, err := s.CheckRecord(rec)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.with(func() error {
		t, err := r.st.table(s)
		if err != nil {
			return err
		}
		id, err = r.insert(t, s, clean)
		return err
	})
	if err != nil {
		return 0, r.fail("insert", s.Name, err)
	}
	return id, nil
}

func (r *records) InsertMany(ctx context.Context, s *store.Schema, rows []store.Record) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	clean := make([]store.Record, len(rows))
	for i, row := range rows {
		c, err := s.CheckRecord(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		clean[i] = c
	}

	err := r.with(func() error {
		return r.st.atomically(func() error {
			t, err := r.st.table(s)
			if err != nil {
				return err
			}
			for _, c := range clean {
				if _, err := r.insert(t, s, c); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, r.fail("insert many", s.Name, err)
	}
	return int64(len(clean)), nil
}

// insert adds a checked record to t. The caller holds the lock.
func (r *records) insert(t *table, s *store.Schema, clean store.Record) (int64, error) {
	row := s.ApplyDefaults(clean)
	if err := r.checkUnique(t, s, row, 0); err != nil {
		return 0, err
	}
	if err := r.checkReferences(s, row); err != nil {
		return 0, err
	}

	t.nextID++
	row[store.IDField] = t.nextID
	now := r.st.now().UTC()
	if s.Has(store.CreatedAtField) {
		row[store.CreatedAtField] = now
	}
	if s.Has(store.UpdatedAtField) {
		row[store.UpdatedAtField] = now
	}
	t.rows = append(t.rows, row)
	return t.nextID, nil
}

// checkUnique rejects row when a unique field value is already held by a
// record other than selfID.
func (r *records) checkUnique(t *table, s *store.Schema, row store.Record, selfID int64) error {
	for _, f := range s.Fields {
		if !f.Unique {
			continue
		}
		v, ok := row[f.Name]
		if !ok || v == nil {
			continue
		}
		for _, existing := range t.rows {
			if existing.Int64(store.IDField) == selfID {
				continue
			}
			if equalValue(existing[f.Name], v) {
				return &store.ConstraintError{
					Collection: s.Name,
					Constraint: s.Name + "_" + f.Name + "_key",
					Kind:       store.KindUnique,
				}
			}
		}
	}
	return nil
}

func (r *records) checkReferences(s *store.Schema, row store.Record) error {
	for _, f := range s.Fields {
		if f.References == nil {
			continue
		}
		v, ok := row[f.Name]
		if !ok || v == nil {
			continue
		}
		parent, ok := r.st.tables[f.References.Collection]
		if !ok || parent.index(v.(int64)) < 0 {
			return &store.ConstraintError{
				Collection: s.Name,
				Constraint: s.Name + "_" + f.Name + "_fkey",
				Kind:       store.KindForeignKey,
			}
		}
	}
	return nil
}

func (r *records) FindByID(ctx context.Context, s *store.Schema, id int64) (store.Record, error) {
	var out store.Record
	err := r.with(func() error {
		t, err := r.st.table(s)
		if err != nil {
			return err
		}
		i := t.index(id)
		if i < 0 {
			return fmt.Errorf("%s %d: %w", s.Name, id, store.ErrNotFound)
		}
		out = t.rows[i].Clone()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, r.fail("find by id", s.Name, err)
	}
	return out, nil
}

func (r *records) Find(ctx context.Context, s *store.Schema, q store.Query) ([]store.Record, error) {
	filter, err := s.CheckFilter(q.Filter)
	if err != nil {
		return nil, err
	}
	if err := s.CheckOrder(q.OrderBy); err != nil {
		return nil, err
	}

	var out []store.Record
	err = r.with(func() error {
		t, err := r.st.table(s)
		if err != nil {
			return err
		}
		for _, row := range t.rows {
			if matches(row, filter) {
				out = append(out, row.Clone())
			}
		}
		return nil
	})
	if err != nil {
		return nil, r.fail("find", s.Name, err)
	}

	if len(q.OrderBy) > 0 {
		slices.SortStableFunc(out, func(a, b store.Record) int {
			for _, o := range q.OrderBy {
				c := compareValues(a[o.Field], b[o.Field])
				if o.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return []store.Record{}, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []store.Record{}
	}
	return out, nil
}

func (r *records) UpdateByID(ctx context.Context, s *store.Schema, id int64, patch store.Record) (int64, error) {
	clean, err := s.CheckPatch(patch)
	if err != nil {
		return 0, err
	}

	var n int64
	err = r.with(func() error {
		t, err := r.st.table(s)
		if err != nil {
			return err
		}
		i := t.index(id)
		if i < 0 {
			return nil
		}
		row := t.rows[i].Clone()
		for k, v := range clean {
			row[k] = v
		}
		if err := r.checkUnique(t, s, row, id); err != nil {
			return err
		}
		if err := r.checkReferences(s, row); err != nil {
			return err
		}
		if s.Has(store.UpdatedAtField) {
			row[store.UpdatedAtField] = r.st.now().UTC()
		}
		t.rows[i] = row
		n = 1
		return nil
	})
	if err != nil {
		return 0, r.fail("update", s.Name, err)
	}
	return n, nil
}

func (r *records) DeleteByID(ctx context.Context, s *store.Schema, id int64) (int64, error) {
	var n int64
	err := r.with(func() error {
		if _, err := r.st.table(s); err != nil {
			return err
		}
		return r.st.atomically(func() error {
			var err error
			n, err = r.delete(s.Name, id)
			return err
		})
	})
	if err != nil {
		return 0, r.fail("delete", s.Name, err)
	}
	return n, nil
}

// delete removes one record and follows foreign keys that point at it:
// cascading references are deleted, restricting ones abort the delete.
// The caller holds the lock and restores a snapshot on error.
func (r *records) delete(collection string, id int64) (int64, error) {
	t := r.st.tables[collection]
	i := t.index(id)
	if i < 0 {
		return 0, nil
	}
	t.rows = slices.Delete(t.rows, i, i+1)

	for name, child := range r.st.tables {
		for _, f := range child.schema.Fields {
			if f.References == nil || f.References.Collection != collection {
				continue
			}
			var ids []int64
			for _, row := range child.rows {
				if v, ok := row[f.Name].(int64); ok && v == id {
					ids = append(ids, row.Int64(store.IDField))
				}
			}
			if len(ids) == 0 {
				continue
			}
			if !f.References.Cascade {
				return 0, &store.ConstraintError{
					Collection: name,
					Constraint: name + "_" + f.Name + "_fkey",
					Kind:       store.KindForeignKey,
				}
			}
			for _, cid := range ids {
				if _, err := r.delete(name, cid); err != nil {
					return 0, err
				}
			}
		}
	}
	return 1, nil
}

func (r *records) Count(ctx context.Context, s *store.Schema, f store.Filter) (int64, error) {
	filter, err := s.CheckFilter(f)
	if err != nil {
		return 0, err
	}
	var n int64
	err = r.with(func() error {
		t, err := r.st.table(s)
		if err != nil {
			return err
		}
		for _, row := range t.rows {
			if matches(row, filter) {
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, r.fail("count", s.Name, err)
	}
	return n, nil
}

func (r *records) Exists(ctx context.Context, s *store.Schema, f store.Filter) (bool, error) {
	return store.Exists(ctx, r, s, f)
}

func matches(row store.Record, f store.Filter) bool {
	for k, want := range f {
		if !equalValue(row[k], want) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// compareValues orders normalised values. NULL sorts after every value,
// matching PostgreSQL's default for ascending order.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmp.Compare(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			}
			return 1
		}
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case clock.Time:
		if y, ok := b.(clock.Time); ok {
			return cmp.Compare(x, y)
		}
	}
	return 0
}
