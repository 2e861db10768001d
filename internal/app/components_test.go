package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/internal/health"
	"github.com/Proton-105/pydt-bot/internal/lifecycle"
	"github.com/Proton-105/pydt-bot/internal/ratelimit"
	"github.com/Proton-105/pydt-bot/pkg/config"
	pydtredis "github.com/Proton-105/pydt-bot/pkg/redis"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Driver:  "memory",
			Timeout: time.Second,
			Breaker: config.BreakerConfig{Enabled: true, ErrorThreshold: 0.5, MinRequests: 5, OpenTimeout: time.Second},
		},
		RateLimit: config.RateLimitConfig{
			Backend: "memory",
			PerUser: config.RateLimitRule{Limit: 1, Window: "1m"},
		},
	}
}

func newRedis(t *testing.T, cfg *config.Config) *pydtredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.Redis.Addr = mr.Addr()

	client, err := pydtredis.New(context.Background(), cfg.Redis)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func roundTrip(t *testing.T, ctx context.Context, store interface {
	Put(context.Context, *domain.Registration) error
	FindByToken(context.Context, string) (int64, error)
}) {
	t.Helper()
	require.NoError(t, store.Put(ctx, &domain.Registration{UserID: 1, ChatID: 11, Token: "tokenAAAAAAAAAAA"}))
	chatID, err := store.FindByToken(ctx, "tokenAAAAAAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, int64(11), chatID)

	_, err = store.FindByToken(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestBuildStore_Backends(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		cfg := baseConfig()
		store, err := buildStore(ctx, cfg, nil, health.NewChecker(testLogger(), 0), lifecycle.NewShutdown(testLogger()), testLogger())
		require.NoError(t, err)
		roundTrip(t, ctx, store)
	})

	t.Run("redis", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Storage.Driver = "redis"
		rdb := newRedis(t, cfg)

		store, err := buildStore(ctx, cfg, rdb, health.NewChecker(testLogger(), 0), lifecycle.NewShutdown(testLogger()), testLogger())
		require.NoError(t, err)
		roundTrip(t, ctx, store)
	})

	t.Run("redis without client", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Storage.Driver = "redis"
		_, err := buildStore(ctx, cfg, nil, health.NewChecker(testLogger(), 0), lifecycle.NewShutdown(testLogger()), testLogger())
		require.Error(t, err)
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Storage.Driver = "sqlite"
		cfg.SQLite.Path = filepath.Join(t.TempDir(), "pydt.db")

		checker := health.NewChecker(testLogger(), time.Second)
		shutdown := lifecycle.NewShutdown(testLogger())
		t.Cleanup(func() { _ = shutdown.Execute(context.Background()) })

		store, err := buildStore(ctx, cfg, nil, checker, shutdown, testLogger())
		require.NoError(t, err)
		roundTrip(t, ctx, store)

		assert.Equal(t, []string{"database"}, checker.Names())
		assert.True(t, health.Healthy(checker.Check(ctx)))
	})

	t.Run("unknown", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Storage.Driver = "dynamo"
		_, err := buildStore(ctx, cfg, nil, health.NewChecker(testLogger(), 0), lifecycle.NewShutdown(testLogger()), testLogger())
		require.Error(t, err)
	})
}

func TestBuildLimiter_Backends(t *testing.T) {
	ctx := context.Background()

	for _, backend := range []string{"memory", "redis", "adaptive"} {
		t.Run(backend, func(t *testing.T) {
			cfg := baseConfig()
			cfg.RateLimit.Backend = backend

			var rdb *pydtredis.Client
			if backend != "memory" {
				rdb = newRedis(t, cfg)
			}

			limiter, cleaner, err := buildLimiter(cfg, rdb, testLogger())
			require.NoError(t, err)
			require.NotNil(t, cleaner)

			rules, err := ratelimit.NewRules(cfg.RateLimit)
			require.NoError(t, err)
			guard := ratelimit.NewGuard(limiter, rules, testLogger())

			require.NoError(t, guard.Allow(ctx, 42, domain.ChatPrivate))
			assert.ErrorIs(t, guard.Allow(ctx, 42, domain.ChatPrivate), apperrors.ErrRateLimited)
		})
	}

	cfg := baseConfig()
	cfg.RateLimit.Backend = "redis"
	_, _, err := buildLimiter(cfg, nil, testLogger())
	assert.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	ctx := context.Background()

	cfg := baseConfig()
	client, err := connectRedis(ctx, cfg, health.NewChecker(testLogger(), 0), lifecycle.NewShutdown(testLogger()))
	require.NoError(t, err)
	assert.Nil(t, client)

	cfg.RateLimit.Backend = "adaptive"
	_, err = connectRedis(ctx, cfg, health.NewChecker(testLogger(), 0), lifecycle.NewShutdown(testLogger()))
	require.Error(t, err)

	mr := miniredis.RunT(t)
	cfg.Redis.Addr = mr.Addr()
	checker := health.NewChecker(testLogger(), time.Second)
	shutdown := lifecycle.NewShutdown(testLogger())

	client, err = connectRedis(ctx, cfg, checker, shutdown)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, []string{"redis"}, checker.Names())

	require.NoError(t, shutdown.Execute(ctx))
	assert.Error(t, client.Ping(ctx).Err())
}

func TestGinMode(t *testing.T) {
	assert.Equal(t, "release", ginMode("production"))
	assert.Equal(t, "test", ginMode("test"))
	assert.Equal(t, "debug", ginMode("development"))
}
