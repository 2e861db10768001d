// Package idempotency makes update handling run at most once per key.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrRequestInProgress is returned while another worker holds the key.
var ErrRequestInProgress = errors.New("request with this key is already in progress")

const defaultLockTTL = time.Minute

// Manager runs operations at most once per key.
type Manager struct {
	store   Store
	lockTTL time.Duration
	log     *slog.Logger
}

// NewManager constructs a Manager over store.
func NewManager(store Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}

	return &Manager{
		store:   store,
		lockTTL: defaultLockTTL,
		log:     log,
	}
}

// Once runs fn unless key already completed within ttl. It reports whether
// fn ran. A failed fn leaves the key open so a redelivery can run again.
func (m *Manager) Once(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) (bool, error) {
	if fn == nil {
		return false, errors.New("operation fn cannot be nil")
	}

	done, err := m.store.Completed(ctx, key)
	if err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	locked, err := m.store.Acquire(ctx, key, m.lockTTL)
	if err != nil {
		return false, err
	}
	if !locked {
		return false, ErrRequestInProgress
	}
	defer func() {
		if err := m.store.Release(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	if err := fn(ctx); err != nil {
		return true, err
	}

	if err := m.store.MarkCompleted(ctx, key, ttl); err != nil {
		m.log.Warn("failed to mark key completed", slog.String("key", key), slog.Any("error", err))
	}

	return true, nil
}
