package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nekogravitycat/table-booking-backend/internal/store"
	"github.com/nekogravitycat/table-booking-backend/internal/store/storetest"
)

func TestMemStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New(zaptest.NewLogger(t))
	})
}

func TestTimestampsUseInjectedClock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	st := New(nil, WithClock(func() time.Time { return now }))

	sess, err := st.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.DefineCollection(ctx, storetest.Parents))

	id, err := sess.Insert(ctx, storetest.Parents, store.Record{"code": "a"})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	_, err = sess.UpdateByID(ctx, storetest.Parents, id, store.Record{"rank": 2})
	require.NoError(t, err)

	rec, err := sess.FindByID(ctx, storetest.Parents, id)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), rec.Time("created_at"))
	assert.Equal(t, time.Date(2026, 1, 2, 4, 4, 5, 0, time.UTC), rec.Time("updated_at"))
}

func TestDefineRequiresReferencedCollection(t *testing.T) {
	ctx := context.Background()
	err := store.Do(ctx, New(nil), func(s store.Session) error {
		return s.DefineCollection(ctx, storetest.Children)
	})
	assert.ErrorIs(t, err, store.ErrSchema)
}

func TestDropReferencedCollectionFails(t *testing.T) {
	ctx := context.Background()
	err := store.Do(ctx, New(nil), func(s store.Session) error {
		require.NoError(t, s.DefineCollection(ctx, storetest.Parents))
		require.NoError(t, s.DefineCollection(ctx, storetest.Children))
		return s.DropCollection(ctx, storetest.Parents)
	})
	assert.True(t, store.IsConstraint(err, store.KindDependency), "got %v", err)
}

func TestInsertManyIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	st := New(nil)
	sess, err := st.Open(ctx)
	require.NoError(t, err)
	defer sess.Close()
	require.NoError(t, sess.DefineCollection(ctx, storetest.Parents))

	_, err = sess.InsertMany(ctx, storetest.Parents, []store.Record{{"code": "a"}, {"code": "b"}, {"code": "a"}})
	assert.True(t, store.IsConstraint(err, store.KindUnique))

	n, err := sess.Count(ctx, storetest.Parents, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	st := New(nil)
	require.NoError(t, store.Do(ctx, st, func(s store.Session) error {
		return s.DefineCollection(ctx, storetest.Parents)
	}))

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Tx(ctx, st, store.TxOptions{}, func(r store.Records) error {
				_, err := r.Insert(ctx, storetest.Parents, store.Record{"code": fmt.Sprintf("c%d", i)})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.NoError(t, store.Do(ctx, st, func(s store.Session) error {
		n, err := s.Count(ctx, storetest.Parents, nil)
		assert.Equal(t, int64(20), n)
		return err
	}))
}

func TestCompareValuesPutsNullLast(t *testing.T) {
	assert.Equal(t, 1, compareValues(nil, int64(1)))
	assert.Equal(t, -1, compareValues("a", nil))
	assert.Equal(t, -1, compareValues(false, true))
	assert.Zero(t, compareValues(nil, nil))
}
