package idempotency

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Cleaner deletes idempotency keys that lost their expiry.
type Cleaner struct {
	client redis.UniversalClient
	log    *slog.Logger
}

func NewCleaner(client redis.UniversalClient, log *slog.Logger) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{client: client, log: log}
}

// Cleanup scans the keyspace once and returns the number of keys removed.
func (c *Cleaner) Cleanup(ctx context.Context) int {
	if c == nil || c.client == nil {
		return 0
	}

	var (
		cursor  uint64
		removed int
	)

	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			c.log.Error("idempotency cleaner scan failed", slog.Any("error", err))
			return removed
		}

		for _, key := range keys {
			ttl, err := c.client.TTL(ctx, key).Result()
			if err != nil {
				c.log.Warn("failed to get key ttl", slog.String("key", key), slog.Any("error", err))
				continue
			}

			// -1 means no expiry, -2 means the key vanished meanwhile
			if ttl != -1 {
				continue
			}

			if err := c.client.Del(ctx, key).Err(); err != nil {
				c.log.Warn("failed to delete stale idempotency key", slog.String("key", key), slog.Any("error", err))
				continue
			}
			removed++
		}

		if next == 0 {
			return removed
		}
		cursor = next
	}
}
