package app

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/internal/health"
	"github.com/Proton-105/pydt-bot/internal/lifecycle"
	"github.com/Proton-105/pydt-bot/internal/ratelimit"
	"github.com/Proton-105/pydt-bot/internal/storage"
	"github.com/Proton-105/pydt-bot/pkg/config"
	pydtredis "github.com/Proton-105/pydt-bot/pkg/redis"
)

// needsRedis reports whether any configured component requires Redis.
func needsRedis(cfg *config.Config) bool {
	return cfg.Storage.Driver == "redis" ||
		cfg.RateLimit.Backend == "redis" ||
		cfg.RateLimit.Backend == "adaptive"
}

func connectRedis(ctx context.Context, cfg *config.Config, checker *health.Checker, shutdown *lifecycle.Shutdown) (*pydtredis.Client, error) {
	if !cfg.Redis.Enabled() {
		if needsRedis(cfg) {
			return nil, fmt.Errorf("redis.addr is required for storage driver %q and throttle backend %q",
				cfg.Storage.Driver, cfg.RateLimit.Backend)
		}
		return nil, nil
	}

	client, err := pydtredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	checker.AddCheck("redis", client)
	shutdown.Register(lifecycle.PhaseResources, "redis", func(context.Context) error {
		return client.Close()
	})

	return client, nil
}

// buildStore selects the registration backend and wraps it with the call
// timeout and, when enabled, the circuit breaker.
func buildStore(ctx context.Context, cfg *config.Config, rdb *pydtredis.Client, checker *health.Checker, shutdown *lifecycle.Shutdown, log *slog.Logger) (storage.TokenStore, error) {
	var store storage.TokenStore

	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("registrations are kept in memory and are lost on restart")
		store = storage.NewMemoryStore()
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis storage requires redis.addr")
		}
		store = storage.NewRedisStore(rdb.Client)
	case "postgres", "sqlite":
		dsn := cfg.Database.DSN()
		if cfg.Storage.Driver == "sqlite" {
			dsn = cfg.SQLite.Path
		}

		db, dialect, err := storage.OpenDB(ctx, cfg.Storage.Driver, dsn)
		if err != nil {
			return nil, err
		}
		shutdown.Register(lifecycle.PhaseResources, "database", func(context.Context) error {
			return db.Close()
		})

		if err := storage.NewMigrator(db, dialect, log).Apply(ctx); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}

		sqlStore := storage.NewSQLStore(db, dialect)
		checker.AddCheck("database", sqlStore)
		store = sqlStore
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	store = storage.WithTimeout(store, cfg.Storage.Timeout)

	if b := cfg.Storage.Breaker; b.Enabled {
		store = storage.WithBreaker(store, apperrors.BreakerSettings{
			ErrorThreshold: b.ErrorThreshold,
			MinRequests:    b.MinRequests,
			OpenTimeout:    b.OpenTimeout,
		})
	}

	log.Info("registration store ready", slog.String("driver", cfg.Storage.Driver), slog.Bool("breaker", cfg.Storage.Breaker.Enabled))
	return store, nil
}

// buildLimiter returns the throttle backend and the cleaner pruning it.
func buildLimiter(cfg *config.Config, rdb *pydtredis.Client, log *slog.Logger) (ratelimit.Limiter, *ratelimit.Cleaner, error) {
	switch cfg.RateLimit.Backend {
	case "memory":
		memory := ratelimit.NewMemoryLimiter()
		return memory, ratelimit.NewCleaner(nil, memory, log), nil
	case "redis":
		if rdb == nil {
			return nil, nil, fmt.Errorf("redis throttle backend requires redis.addr")
		}
		return ratelimit.NewRedisLimiter(rdb.Client, log), ratelimit.NewCleaner(rdb.Client, nil, log), nil
	case "adaptive":
		if rdb == nil {
			return nil, nil, fmt.Errorf("adaptive throttle backend requires redis.addr")
		}
		memory := ratelimit.NewMemoryLimiter()
		limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb.Client, log), memory, log)
		return limiter, ratelimit.NewCleaner(rdb.Client, memory, log), nil
	default:
		return nil, nil, fmt.Errorf("unsupported throttle backend %q", cfg.RateLimit.Backend)
	}
}
