package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "idempotency:"

// Store keeps completion markers and short-lived processing locks.
type Store interface {
	Completed(ctx context.Context, key string) (bool, error)
	Acquire(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	MarkCompleted(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RedisStore implements Store with plain string keys.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a Store backed by client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Completed(ctx context.Context, key string) (bool, error) {
	err := s.client.Get(ctx, recordKey(key)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}

func (s *RedisStore) Acquire(ctx context.Context, key string, lockTTL time.Duration) (bool, error) {
	return s.client.SetNX(ctx, lockKey(key), 1, lockTTL).Result()
}

func (s *RedisStore) MarkCompleted(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Set(ctx, recordKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, lockKey(key)).Err()
}

func recordKey(key string) string {
	return keyPrefix + key
}

func lockKey(key string) string {
	return keyPrefix + key + ":lock"
}
