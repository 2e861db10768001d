package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/pkg/metrics"
)

// Throttle outcomes reported to metrics.
const (
	OutcomeGranted     = "granted"
	OutcomeWhitelisted = "whitelisted"
	OutcomeIneligible  = "ineligible"
	OutcomeLimited     = "limited"
	OutcomeFailOpen    = "fail_open"
)

// Guard decides whether a caller may proceed with a throttled command.
type Guard struct {
	limiter Limiter
	rules   *Rules
	log     *slog.Logger
	now     func() time.Time
}

// NewGuard builds a Guard over limiter using rules.
func NewGuard(limiter Limiter, rules *Rules, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}

	return &Guard{
		limiter: limiter,
		rules:   rules,
		log:     log.With(slog.String("component", "throttle")),
		now:     time.Now,
	}
}

// Allow returns nil when the call is granted. Non-private contexts get an
// ErrEligibilityDenied error without touching the window; callers over the
// limit get ErrRateLimited and nothing is recorded for them.
func (g *Guard) Allow(ctx context.Context, callerID int64, kind domain.ChatKind) error {
	if kind != domain.ChatPrivate {
		metrics.RecordThrottle(OutcomeIneligible)
		return apperrors.NewEligibilityError(string(kind))
	}

	if g.rules.IsWhitelisted(callerID) {
		metrics.RecordThrottle(OutcomeWhitelisted)
		return nil
	}

	limit, window := g.rules.PerUser()
	result, err := g.limiter.Check(ctx, "user:"+strconv.FormatInt(callerID, 10), limit, window)
	if err != nil {
		// the limiter protects the send API, an outage must not lock users out
		g.log.Warn("throttle backend failed, allowing call",
			slog.Int64("user_id", callerID),
			slog.Any("error", err),
		)
		metrics.RecordThrottle(OutcomeFailOpen)
		return nil
	}

	if !result.Allowed {
		metrics.RecordThrottle(OutcomeLimited)
		return apperrors.NewRateLimitError(result.RetryAfter(g.now()))
	}

	metrics.RecordThrottle(OutcomeGranted)
	return nil
}

// Window returns the current throttle window, used to age out idle state.
func (g *Guard) Window() time.Duration {
	_, window := g.rules.PerUser()
	return window
}
