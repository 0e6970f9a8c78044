// Package cache keeps seat listings in Redis so repeated reads of a busy
// show do not hit the database.  Every seat change of a show bumps the
// show's generation, which retires all of its cached listings at once.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-seat-booking/internal/config"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// SeatCache is a read-through cache of per-show seat listings.  Errors
// talking to Redis are logged and treated as a miss.
type SeatCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.Logger
}

// NewSeatCache returns a cache backed by rdb, or nil when caching is
// disabled or no client is available.  A nil *SeatCache must not be stored
// in an interface; callers check the result first.
func NewSeatCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *SeatCache {
	if !cfg.Enabled || rdb == nil {
		return nil
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SeatCache{rdb: rdb, prefix: cfg.Prefix, ttl: ttl, log: log}
}

// GenKey returns the key of the show's listing generation.  Invalidate
// increments it; listings are stored under the generation that was current
// before the store was read, so a listing computed before a change can
// never be served after it.
func (c *SeatCache) GenKey(showID uint64) string {
	return fmt.Sprintf("%s:seats:%d:gen", c.prefix, showID)
}

// Key returns the Redis key of a show listing at generation gen.
func (c *SeatCache) Key(showID uint64, gen int64, onlyAvailable bool) string {
	kind := "all"
	if onlyAvailable {
		kind = "available"
	}
	return fmt.Sprintf("%s:seats:%d:g%d:%s", c.prefix, showID, gen, kind)
}

// Get returns the cached listing and whether it was found.  On a miss it
// returns the generation a following Set must carry, or -1 when Redis could
// not be read and nothing should be stored.
func (c *SeatCache) Get(ctx context.Context, showID uint64, onlyAvailable bool) ([]model.SeatSummary, int64, bool) {
	gen, err := c.rdb.Get(ctx, c.GenKey(showID)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		gen = 0
	case err != nil:
		c.log.Warn("seat cache generation read failed", zap.Uint64("show_id", showID), zap.Error(err))
		return nil, -1, false
	}
	key := c.Key(showID, gen, onlyAvailable)
	bs, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false
	}
	if err != nil {
		c.log.Warn("seat cache get failed", zap.String("key", key), zap.Error(err))
		return nil, -1, false
	}
	var seats []model.SeatSummary
	if err := json.Unmarshal(bs, &seats); err != nil {
		c.log.Warn("seat cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, gen, false
	}
	return seats, gen, true
}

// Set stores a listing read at generation gen.  A negative gen is ignored.
func (c *SeatCache) Set(ctx context.Context, showID uint64, onlyAvailable bool, gen int64, seats []model.SeatSummary) {
	if gen < 0 {
		return
	}
	key := c.Key(showID, gen, onlyAvailable)
	bs, err := json.Marshal(seats)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, bs, c.ttl).Err(); err != nil {
		c.log.Warn("seat cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate moves the show to a new generation.  Entries of older
// generations are never read again and expire with their TTL.
func (c *SeatCache) Invalidate(ctx context.Context, showID uint64) {
	if err := c.rdb.Incr(ctx, c.GenKey(showID)).Err(); err != nil {
		c.log.Warn("seat cache invalidate failed", zap.Uint64("show_id", showID), zap.Error(err))
	}
}
