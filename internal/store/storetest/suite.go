// Package storetest holds the behaviour every store backend must share.
// Backend test files call Run with a constructor for a fresh store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

// Parents and Children are the collections the suite works on.
var (
	Parents = &store.Schema{
		Name: "storetest_parents",
		Fields: append([]store.Field{
			store.ID(),
			{Name: "code", Type: store.TypeText, Size: 20, NotNull: true, Unique: true},
			{Name: "rank", Type: store.TypeInt, NotNull: true, Default: 1, Min: store.MinValue(1)},
			{Name: "active", Type: store.TypeBool, NotNull: true, Default: true},
			{Name: "note", Type: store.TypeText},
		}, store.Timestamps()...),
	}
	Children = &store.Schema{
		Name: "storetest_children",
		Fields: append([]store.Field{
			store.ID(),
			{Name: "parent_id", Type: store.TypeBigInt, NotNull: true, References: &store.Reference{Collection: "storetest_parents", Cascade: true}},
			{Name: "day", Type: store.TypeDate, NotNull: true},
			{Name: "at", Type: store.TypeTime, NotNull: true},
			{Name: "kind", Type: store.TypeText, Size: 10, NotNull: true, Default: "a", Enum: []string{"a", "b"}},
		}, store.Timestamps()...),
		Indexes: [][]string{{"parent_id", "day"}},
	}
	Pins = &store.Schema{
		Name: "storetest_pins",
		Fields: []store.Field{
			store.ID(),
			{Name: "parent_id", Type: store.TypeBigInt, NotNull: true, References: &store.Reference{Collection: "storetest_parents"}},
		},
	}
)

// Run executes the suite. newStore must return a fresh store for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, ctx context.Context, st store.Store)
	}{
		{"InsertAndFindRoundTrip", testRoundTrip},
		{"FindByIDMissing", testFindByIDMissing},
		{"EmptyFilterMatchesAll", testEmptyFilter},
		{"FindOrderLimitOffset", testOrderLimitOffset},
		{"UpdateAndDelete", testUpdateAndDelete},
		{"InsertMany", testInsertMany},
		{"UniqueViolation", testUniqueViolation},
		{"ForeignKeyViolation", testForeignKeyViolation},
		{"CascadeDelete", testCascadeDelete},
		{"RestrictDelete", testRestrictDelete},
		{"ValidationRejected", testValidation},
		{"TxCommit", testTxCommit},
		{"TxRollbackOnError", testTxRollbackOnError},
		{"TxRollbackOnPanic", testTxRollbackOnPanic},
		{"ClosedSession", testClosedSession},
		{"ConflictingRedefinition", testConflictingRedefinition},
		{"DropAndListCollections", testCollections},
		{"ColumnsFollowDefinition", testColumns},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			st := newStore(t)
			t.Cleanup(st.Close)
			reset(t, ctx, st)
			tt.fn(t, ctx, st)
		})
	}
}

func reset(t *testing.T, ctx context.Context, st store.Store) {
	t.Helper()
	require.NoError(t, store.Do(ctx, st, func(s store.Session) error {
		for _, sc := range []*store.Schema{Pins, Children, Parents} {
			if err := s.DropCollection(ctx, sc); err != nil {
				return err
			}
		}
		for _, sc := range []*store.Schema{Parents, Children, Pins} {
			if err := s.DefineCollection(ctx, sc); err != nil {
				return err
			}
		}
		return nil
	}))
}

func open(t *testing.T, ctx context.Context, st store.Store) store.Session {
	t.Helper()
	s, err := st.Open(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertParent(t *testing.T, ctx context.Context, r store.Records, code string) int64 {
	t.Helper()
	id, err := r.Insert(ctx, Parents, store.Record{"code": code})
	require.NoError(t, err)
	return id
}

func insertChild(t *testing.T, ctx context.Context, r store.Records, parentID int64, at clock.Time) int64 {
	t.Helper()
	id, err := r.Insert(ctx, Children, store.Record{
		"parent_id": parentID,
		"day":       time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		"at":        at,
	})
	require.NoError(t, err)
	return id
}

func testRoundTrip(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)

	pid, err := s.Insert(ctx, Parents, store.Record{"code": "p1", "rank": 3, "note": "hello"})
	require.NoError(t, err)
	assert.Positive(t, pid)

	got, err := s.FindByID(ctx, Parents, pid)
	require.NoError(t, err)
	assert.Equal(t, pid, got.Int64("id"))
	assert.Equal(t, "p1", got.String("code"))
	assert.Equal(t, 3, got.Int("rank"))
	assert.True(t, got.Bool("active"))
	require.NotNil(t, got.StringPtr("note"))
	assert.Equal(t, "hello", *got.StringPtr("note"))
	assert.False(t, got.Time("created_at").IsZero())

	cid := insertChild(t, ctx, s, pid, clock.New(18, 30))
	child, err := s.FindByID(ctx, Children, cid)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), child.Time("day"))
	assert.Equal(t, clock.New(18, 30), child.Clock("at"))
	assert.Equal(t, "a", child.String("kind"))

	// Mutating a returned record must not leak back into the store.
	got["code"] = "changed"
	again, err := s.FindByID(ctx, Parents, pid)
	require.NoError(t, err)
	assert.Equal(t, "p1", again.String("code"))
}

func testFindByIDMissing(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	_, err := s.FindByID(ctx, Parents, 999999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testEmptyFilter(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	insertParent(t, ctx, s, "a")
	insertParent(t, ctx, s, "b")

	byID := []store.Order{store.Asc("id")}
	all, err := s.Find(ctx, Parents, store.Query{OrderBy: byID})
	require.NoError(t, err)
	empty, err := s.Find(ctx, Parents, store.Query{Filter: store.Filter{}, OrderBy: byID})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, all, empty)

	n, err := s.Count(ctx, Parents, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := s.Exists(ctx, Parents, store.Filter{"code": "b"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, Parents, store.Filter{"code": "zzz"})
	require.NoError(t, err)
	assert.False(t, ok)

	nulls, err := s.Find(ctx, Parents, store.Query{Filter: store.Filter{"note": nil}})
	require.NoError(t, err)
	assert.Len(t, nulls, 2)
}

func testOrderLimitOffset(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	pid := insertParent(t, ctx, s, "p")
	insertChild(t, ctx, s, pid, clock.New(20, 0))
	insertChild(t, ctx, s, pid, clock.New(12, 0))
	insertChild(t, ctx, s, pid, clock.New(16, 0))

	rows, err := s.Find(ctx, Children, store.Query{
		Filter:  store.Filter{"parent_id": pid},
		OrderBy: []store.Order{store.Asc("at")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, clock.New(12, 0), rows[0].Clock("at"))
	assert.Equal(t, clock.New(16, 0), rows[1].Clock("at"))
	assert.Equal(t, clock.New(20, 0), rows[2].Clock("at"))

	page, err := s.Find(ctx, Children, store.Query{
		OrderBy: []store.Order{store.Desc("at")},
		Limit:   1,
		Offset:  1,
	})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, clock.New(16, 0), page[0].Clock("at"))

	_, err = s.Find(ctx, Children, store.Query{OrderBy: []store.Order{store.Asc("bogus")}})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func testUpdateAndDelete(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	pid := insertParent(t, ctx, s, "p")

	before, err := s.FindByID(ctx, Parents, pid)
	require.NoError(t, err)

	n, err := s.UpdateByID(ctx, Parents, pid, store.Record{"rank": 5, "note": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	after, err := s.FindByID(ctx, Parents, pid)
	require.NoError(t, err)
	assert.Equal(t, 5, after.Int("rank"))
	assert.Equal(t, "x", after.String("note"))
	assert.False(t, after.Time("updated_at").Before(before.Time("updated_at")))

	n, err = s.UpdateByID(ctx, Parents, pid+1000, store.Record{"rank": 2})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.UpdateByID(ctx, Parents, pid, store.Record{"id": 7})
	assert.ErrorIs(t, err, store.ErrValidation)

	n, err = s.DeleteByID(ctx, Parents, pid)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteByID(ctx, Parents, pid)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testInsertMany(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	n, err := s.InsertMany(ctx, Parents, []store.Record{
		{"code": "a"}, {"code": "b", "rank": 2}, {"code": "c", "note": "n"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	count, err := s.Count(ctx, Parents, store.Filter{"rank": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	n, err = s.InsertMany(ctx, Parents, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testUniqueViolation(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	insertParent(t, ctx, s, "dup")

	_, err := s.Insert(ctx, Parents, store.Record{"code": "dup"})
	var ce *store.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, store.KindUnique, ce.Kind)
	assert.Equal(t, "storetest_parents_code_key", ce.Constraint)
}

func testForeignKeyViolation(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	_, err := s.Insert(ctx, Children, store.Record{
		"parent_id": int64(424242),
		"day":       time.Now(),
		"at":        clock.New(10, 0),
	})
	assert.True(t, store.IsConstraint(err, store.KindForeignKey), "got %v", err)
}

func testCascadeDelete(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	pid := insertParent(t, ctx, s, "p")
	other := insertParent(t, ctx, s, "q")
	insertChild(t, ctx, s, pid, clock.New(10, 0))
	insertChild(t, ctx, s, pid, clock.New(14, 0))
	keep := insertChild(t, ctx, s, other, clock.New(10, 0))

	_, err := s.DeleteByID(ctx, Parents, pid)
	require.NoError(t, err)

	n, err := s.Count(ctx, Children, store.Filter{"parent_id": pid})
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.FindByID(ctx, Children, keep)
	assert.NoError(t, err)
}

func testRestrictDelete(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	pid := insertParent(t, ctx, s, "p")
	_, err := s.Insert(ctx, Pins, store.Record{"parent_id": pid})
	require.NoError(t, err)

	_, err = s.DeleteByID(ctx, Parents, pid)
	assert.True(t, store.IsConstraint(err, store.KindForeignKey), "got %v", err)

	_, err = s.FindByID(ctx, Parents, pid)
	assert.NoError(t, err)
}

func testValidation(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)

	_, err := s.Insert(ctx, Parents, store.Record{"code": "x", "rank": 0})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = s.Insert(ctx, Parents, store.Record{"code": "x", "nope": 1})
	assert.ErrorIs(t, err, store.ErrValidation)

	_, err = s.Find(ctx, Parents, store.Query{Filter: store.Filter{"1=1 OR code": "x"}})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func testTxCommit(t *testing.T, ctx context.Context, st store.Store) {
	var pid int64
	err := store.Tx(ctx, st, store.TxOptions{Serializable: true}, func(r store.Records) error {
		pid = insertParent(t, ctx, r, "tx")
		insertChild(t, ctx, r, pid, clock.New(11, 0))
		return nil
	})
	require.NoError(t, err)

	s := open(t, ctx, st)
	n, err := s.Count(ctx, Children, store.Filter{"parent_id": pid})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testTxRollbackOnError(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)
	boom := errors.New("boom")

	err := s.InTx(ctx, store.TxOptions{}, func(r store.Records) error {
		insertParent(t, ctx, r, "rolled")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	ok, err := s.Exists(ctx, Parents, store.Filter{"code": "rolled"})
	require.NoError(t, err)
	assert.False(t, ok)

	// A constraint error inside the transaction also rolls back earlier writes.
	insertParent(t, ctx, s, "taken")
	err = s.InTx(ctx, store.TxOptions{}, func(r store.Records) error {
		insertParent(t, ctx, r, "fresh")
		_, err := r.Insert(ctx, Parents, store.Record{"code": "taken"})
		return err
	})
	assert.True(t, store.IsConstraint(err, store.KindUnique))

	ok, err = s.Exists(ctx, Parents, store.Filter{"code": "fresh"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testTxRollbackOnPanic(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = s.InTx(ctx, store.TxOptions{}, func(r store.Records) error {
			insertParent(t, ctx, r, "panicked")
			panic("kaboom")
		})
	})

	ok, err := s.Exists(ctx, Parents, store.Filter{"code": "panicked"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func testClosedSession(t *testing.T, ctx context.Context, st store.Store) {
	s, err := st.Open(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	require.NoError(t, s.Close())

	_, err = s.Insert(ctx, Parents, store.Record{"code": "late"})
	assert.ErrorIs(t, err, store.ErrNoConnection)
	var connErr *store.ConnectionError
	assert.ErrorAs(t, err, &connErr)

	_, err = s.Find(ctx, Parents, store.Query{})
	assert.ErrorIs(t, err, store.ErrNoConnection)

	err = s.InTx(ctx, store.TxOptions{}, func(store.Records) error { return nil })
	assert.ErrorIs(t, err, store.ErrNoConnection)

	assert.NoError(t, s.Close(), "second close is a no-op")
}

func testConflictingRedefinition(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)

	require.NoError(t, s.DefineCollection(ctx, Parents), "redefining with the same schema is a no-op")

	changed := &store.Schema{
		Name: Parents.Name,
		Fields: []store.Field{
			store.ID(),
			{Name: "code", Type: store.TypeInt, NotNull: true},
		},
	}
	err := s.DefineCollection(ctx, changed)
	assert.ErrorIs(t, err, store.ErrSchema)
}

func testCollections(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)

	names, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, Parents.Name)
	assert.Contains(t, names, Children.Name)

	require.NoError(t, s.DropCollection(ctx, Pins))
	ok, err := s.CollectionExists(ctx, Pins)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.CollectionExists(ctx, Children)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Find(ctx, Pins, store.Query{})
	assert.ErrorIs(t, err, store.ErrSchema)
}

func testColumns(t *testing.T, ctx context.Context, st store.Store) {
	s := open(t, ctx, st)

	cols, err := s.Columns(ctx, Children.Name)
	require.NoError(t, err)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		assert.NotEmpty(t, c.Type, "column %s", c.Name)
	}
	assert.Equal(t, []string{"id", "parent_id", "day", "at", "kind", "created_at", "updated_at"}, names)

	require.NoError(t, s.DropCollection(ctx, Pins))
	_, err = s.Columns(ctx, Pins.Name)
	assert.ErrorIs(t, err, store.ErrSchema)

	require.NoError(t, s.Close())
	_, err = s.Columns(ctx, Parents.Name)
	assert.ErrorIs(t, err, store.ErrNoConnection)
}
