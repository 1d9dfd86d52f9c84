package realtime

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dwarvesf/paylink-backend/internal/utils/config"
)

// RateLimiter is a sliding window counter per connection, kept in a Redis
// sorted set scored by arrival time.
type RateLimiter struct {
	rdb    redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
	seq    atomic.Uint64
}

func NewRateLimiter(rdb redis.UniversalClient, cfg config.RealtimeConfig) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		prefix: cfg.KeyPrefix,
		limit:  cfg.RateLimit,
		window: cfg.RateWindow,
		now:    time.Now,
	}
}

// Allow counts one message from connID. It reports true with a non-nil
// error when Redis is unreachable: limiting is best effort.
func (l *RateLimiter) Allow(ctx context.Context, connID string) (bool, error) {
	key := l.prefix + "ratelimit:" + connID
	now := l.now()
	windowStart := now.Add(-l.window).UnixMilli()

	var count *redis.IntCmd
	_, err := l.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(windowStart, 10))
		count = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("rate limit %s: %w", connID, err)
	}
	if count.Val() >= int64(l.limit) {
		return false, nil
	}

	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(l.seq.Add(1), 10)
	_, err = l.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: member})
		pipe.Expire(ctx, key, l.window)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("rate limit %s: %w", connID, err)
	}
	return true, nil
}
