package jobs

import (
	"context"
	"log/slog"
	"time"
)

const (
	TaskThrottleCleanup    = "throttle:cleanup"
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ThrottleCleaner drops throttle state older than maxAge.
type ThrottleCleaner interface {
	Cleanup(ctx context.Context, maxAge time.Duration) int
}

// KeyCleaner removes leaked keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context) int
}

// NewThrottleCleanupTask prunes sliding-window state older than the current
// window. window is read on every run so rule reloads apply.
func NewThrottleCleanupTask(schedule string, cleaner ThrottleCleaner, window func() time.Duration, log *slog.Logger) Task {
	return Task{
		Name:     TaskThrottleCleanup,
		Schedule: schedule,
		Timeout:  time.Minute,
		Run: func(ctx context.Context) error {
			removed := cleaner.Cleanup(ctx, window())
			if removed > 0 {
				log.InfoContext(ctx, "throttle state pruned", slog.Int("removed", removed))
			}
			return ctx.Err()
		},
	}
}

// NewIdempotencyCleanupTask removes idempotency keys that lost their TTL.
func NewIdempotencyCleanupTask(schedule string, cleaner KeyCleaner, log *slog.Logger) Task {
	return Task{
		Name:     TaskIdempotencyCleanup,
		Schedule: schedule,
		Timeout:  time.Minute,
		Run: func(ctx context.Context) error {
			removed := cleaner.Cleanup(ctx)
			if removed > 0 {
				log.InfoContext(ctx, "idempotency keys removed", slog.Int("removed", removed))
			}
			return ctx.Err()
		},
	}
}
