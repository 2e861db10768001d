package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// pruneScript drops members scored at or below ARGV[1] and deletes the key
// when nothing is left. It runs atomically so a concurrent limiter ZADD is
// never deleted with the key. Returns 1 when the key was removed.
var pruneScript = goredis.NewScript(`
local key = KEYS[1]
if redis.call('EXISTS', key) == 0 then
  return 0
end
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[1])
if redis.call('ZCARD', key) > 0 then
  return 0
end
redis.call('DEL', key)
return 1
`)

// Cleaner removes idle throttle state from Redis and from the in-memory
// limiter. Either side may be nil.
type Cleaner struct {
	client goredis.UniversalClient
	memory *MemoryLimiter
	log    *slog.Logger
	now    func() time.Time
}

// NewCleaner constructs a Cleaner instance.
func NewCleaner(client goredis.UniversalClient, memory *MemoryLimiter, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client: client,
		memory: memory,
		log:    log,
		now:    time.Now,
	}
}

// Cleanup drops entries older than maxAge and deletes keys left empty.
// It returns the number of keys or buckets removed.
func (c *Cleaner) Cleanup(ctx context.Context, maxAge time.Duration) int {
	if maxAge <= 0 {
		return 0
	}

	removed := 0
	if c.memory != nil {
		removed += c.memory.Cleanup(maxAge)
	}
	if c.client != nil {
		removed += c.cleanupRedis(ctx, maxAge)
	}

	if removed > 0 {
		c.log.Info("throttle state cleaned", slog.Int("keys_removed", removed))
	}

	return removed
}

func (c *Cleaner) cleanupRedis(ctx context.Context, maxAge time.Duration) int {
	const scanCount = 100

	cutoff := c.now().Add(-maxAge).UnixMilli()
	var cursor uint64
	cleaned := 0

	for {
		if ctx.Err() != nil {
			return cleaned
		}

		keys, nextCursor, err := c.client.Scan(ctx, cursor, redisKeyPrefix+"*", scanCount).Result()
		if err != nil {
			c.log.Error("throttle scan failed", slog.Any("error", err))
			return cleaned
		}

		for _, key := range keys {
			deleted, err := pruneScript.Run(ctx, c.client, []string{key}, strconv.FormatInt(cutoff, 10)).Int()
			if err != nil {
				c.log.Warn("throttle key prune failed", slog.String("key", key), slog.Any("error", err))
				continue
			}
			cleaned += deleted
		}

		if nextCursor == 0 {
			return cleaned
		}
		cursor = nextCursor
	}
}
