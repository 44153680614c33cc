package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nekogravitycat/table-booking-backend/internal/pkg/clock"
)

func newTestCache(t *testing.T) (*RedisDayCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisDayCache(rdb, time.Minute), mr
}

func TestRedisDayCacheRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	phone := "+1 555"

	_, gen, hit, err := c.Get(ctx, 1, day)
	require.NoError(t, err)
	assert.False(t, hit)

	in := []*Reservation{{
		ID: 7, AccountID: 3, ResourceID: 1, Date: day, StartTime: clock.New(19, 30),
		GuestsCount: 4, Status: StatusConfirmed, ContactPhone: &phone, Duration: 90,
	}}
	require.NoError(t, c.Set(ctx, 1, day, gen, in))
	assert.True(t, mr.Exists("tablebooking:day:1:2026-03-14"))
	assert.Equal(t, time.Minute, mr.TTL("tablebooking:day:1:2026-03-14"))

	out, _, hit, err := c.Get(ctx, 1, day)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, in, out)

	require.NoError(t, c.Invalidate(ctx, 1, day))
	_, _, hit, err = c.Get(ctx, 1, day)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisDayCacheSkipsStaleFill(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := "tablebooking:day:1:2026-03-14"

	_, gen, _, err := c.Get(ctx, 1, day)
	require.NoError(t, err)

	// A writer commits and invalidates between the read and the fill.
	require.NoError(t, c.Invalidate(ctx, 1, day))
	require.NoError(t, c.Set(ctx, 1, day, gen, []*Reservation{}))
	assert.False(t, mr.Exists(key))

	_, gen, _, err = c.Get(ctx, 1, day)
	require.NoError(t, err)
	require.NoError(t, c.InvalidateAll(ctx))
	require.NoError(t, c.Set(ctx, 1, day, gen, []*Reservation{}))
	assert.False(t, mr.Exists(key))

	_, gen, _, err = c.Get(ctx, 1, day)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, 1, day, gen, []*Reservation{}))
	assert.True(t, mr.Exists(key))
}

func TestRedisDayCacheInvalidateAll(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, c.Set(ctx, id, day, Generation{}, []*Reservation{}))
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	require.NoError(t, c.InvalidateAll(ctx))
	assert.Equal(t, []string{"tablebooking:gen:all", "unrelated"}, mr.Keys())
}

func TestRedisDayCacheCorruptEntryIsMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("tablebooking:day:1:2026-03-14", "{not json"))

	_, _, hit, err := c.Get(context.Background(), 1, day)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestServiceUsesAndInvalidatesCache(t *testing.T) {
	f := newFixture(t, Options{})
	c, mr := newTestCache(t)
	f.svc = NewService(f.st, c, zaptest.NewLogger(t), Options{})
	ctx := context.Background()
	key := "tablebooking:day:" + "1:2026-03-14"
	require.Equal(t, int64(1), f.tableID)

	first, err := f.svc.ListForResourceOnDate(ctx, f.tableID, day)
	require.NoError(t, err)
	assert.Empty(t, first)
	assert.True(t, mr.Exists(key), "miss fills the cache")

	r := f.book(t, "10:00", 60)
	assert.False(t, mr.Exists(key), "create invalidates the day")

	list, err := f.svc.ListForResourceOnDate(ctx, f.tableID, day)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Availability reads the store, never the cache.
	require.NoError(t, mr.Set(key, "[]"))
	assert.False(t, f.available(t, "10:30", 30, 0))

	_, err = f.svc.Delete(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists(key))
}

// racingCache books a slot from inside the first fill, after the day was
// read from the store but before it is written to the cache.
type racingCache struct {
	DayCache
	race func()
	done bool
}

func (c *racingCache) Set(ctx context.Context, resourceID int64, date time.Time, gen Generation, day []*Reservation) error {
	if !c.done {
		c.done = true
		c.race()
	}
	return c.DayCache.Set(ctx, resourceID, date, gen, day)
}

func TestServiceDoesNotCacheDayReadBeforeWrite(t *testing.T) {
	f := newFixture(t, Options{})
	inner, _ := newTestCache(t)
	rc := &racingCache{DayCache: inner}
	f.svc = NewService(f.st, rc, zaptest.NewLogger(t), Options{})
	rc.race = func() { f.book(t, "10:00", 60) }
	ctx := context.Background()

	first, err := f.svc.ListForResourceOnDate(ctx, f.tableID, day)
	require.NoError(t, err)
	assert.Empty(t, first)
	require.True(t, rc.done)

	list, err := f.svc.ListForResourceOnDate(ctx, f.tableID, day)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.False(t, f.available(t, "10:00", 60, 0))

	s, err := f.svc.Schedule(ctx, f.tableID, day)
	require.NoError(t, err)
	assert.Len(t, s.Reservations, 1)
}
