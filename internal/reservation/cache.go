package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DayCache keeps the reservations of one table on one day. Availability
// decisions never read it; it only serves schedule views.
//
// Get returns the generation the day had when it was read. Set only stores
// a day whose generation is still current, so a list read before a
// concurrent Invalidate is never cached.
type DayCache interface {
	Get(ctx context.Context, resourceID int64, date time.Time) (day []*Reservation, gen Generation, hit bool, err error)
	Set(ctx context.Context, resourceID int64, date time.Time, gen Generation, day []*Reservation) error
	Invalidate(ctx context.Context, resourceID int64, date time.Time) error
	InvalidateAll(ctx context.Context) error
}

// Generation counts invalidations of one day (Day) and of the whole cache
// (All).
type Generation struct {
	Day int64
	All int64
}

const (
	defaultCachePrefix = "tablebooking:day:"
	defaultGenPrefix   = "tablebooking:gen:"
	// genTTL is far longer than any read-then-fill window.
	genTTL = 24 * time.Hour
)

var errStaleDay = errors.New("cached day changed since read")

// RedisDayCache stores days as JSON under prefix + "<resource>:<date>" and
// their generation counters under genPrefix.
type RedisDayCache struct {
	rdb       redis.UniversalClient
	ttl       time.Duration
	prefix    string
	genPrefix string
}

func NewRedisDayCache(rdb redis.UniversalClient, ttl time.Duration) *RedisDayCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisDayCache{rdb: rdb, ttl: ttl, prefix: defaultCachePrefix, genPrefix: defaultGenPrefix}
}

func (c *RedisDayCache) key(resourceID int64, date time.Time) string {
	return fmt.Sprintf("%s%d:%s", c.prefix, resourceID, date.Format(time.DateOnly))
}

func (c *RedisDayCache) genKey(resourceID int64, date time.Time) string {
	return fmt.Sprintf("%s%d:%s", c.genPrefix, resourceID, date.Format(time.DateOnly))
}

func (c *RedisDayCache) epochKey() string {
	return c.genPrefix + "all"
}

func (c *RedisDayCache) Get(ctx context.Context, resourceID int64, date time.Time) ([]*Reservation, Generation, bool, error) {
	vals, err := c.rdb.MGet(ctx, c.key(resourceID, date), c.genKey(resourceID, date), c.epochKey()).Result()
	if err != nil {
		return nil, Generation{}, false, fmt.Errorf("read cached day: %w", err)
	}
	gen, err := parseGeneration(vals[1], vals[2])
	if err != nil {
		return nil, Generation{}, false, err
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false, nil
	}
	var day []*Reservation
	if err := json.Unmarshal([]byte(raw), &day); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next Set.
		return nil, gen, false, nil
	}
	return day, gen, true, nil
}

func (c *RedisDayCache) Set(ctx context.Context, resourceID int64, date time.Time, gen Generation, day []*Reservation) error {
	bs, err := json.Marshal(day)
	if err != nil {
		return fmt.Errorf("encode day: %w", err)
	}

	genKey, epochKey := c.genKey(resourceID, date), c.epochKey()
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx, genKey, epochKey).Result()
		if err != nil {
			return err
		}
		cur, err := parseGeneration(vals[0], vals[1])
		if err != nil {
			return err
		}
		if cur != gen {
			return errStaleDay
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.SetEx(ctx, c.key(resourceID, date), bs, c.ttl)
			return nil
		})
		return err
	}, genKey, epochKey)

	// Someone invalidated the day after it was read; drop the stale list.
	if errors.Is(err, errStaleDay) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *RedisDayCache) Invalidate(ctx context.Context, resourceID int64, date time.Time) error {
	genKey := c.genKey(resourceID, date)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, genTTL)
		p.Del(ctx, c.key(resourceID, date))
		return nil
	})
	return err
}

// InvalidateAll drops every cached day. Used after cascading deletes.
func (c *RedisDayCache) InvalidateAll(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, c.epochKey()).Err(); err != nil {
		return err
	}

	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cached days: %w", err)
	}
	if len(batch) > 0 {
		return c.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

// parseGeneration reads the day and epoch counters from an MGET reply;
// missing counters are 0.
func parseGeneration(day, all any) (Generation, error) {
	var gen Generation
	var err error
	if gen.Day, err = counter(day); err != nil {
		return Generation{}, err
	}
	if gen.All, err = counter(all); err != nil {
		return Generation{}, err
	}
	return gen, nil
}

func counter(v any) (int64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("read cache generation %q: %w", s, err)
	}
	return n, nil
}

// NopDayCache never stores anything.
type NopDayCache struct{}

func (NopDayCache) Get(context.Context, int64, time.Time) ([]*Reservation, Generation, bool, error) {
	return nil, Generation{}, false, nil
}
func (NopDayCache) Set(context.Context, int64, time.Time, Generation, []*Reservation) error {
	return nil
}
func (NopDayCache) Invalidate(context.Context, int64, time.Time) error { return nil }
func (NopDayCache) InvalidateAll(context.Context) error                { return nil }
