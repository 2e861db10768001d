// Package ratelimit gates inbound commands with an eligibility predicate and
// a per-caller sliding-window limiter.
package ratelimit

import (
	"context"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest recorded call leaves the window.
	ResetAt time.Time
}

// RetryAfter returns the whole seconds until ResetAt, at least one.
func (r *Result) RetryAfter(now time.Time) int {
	if r == nil {
		return 1
	}

	secs := int(r.ResetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter is a sliding-window strategy. Only granted calls are recorded.
// A denial is reported through Result.Allowed; a non-nil error means the
// backend itself failed.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
