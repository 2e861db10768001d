package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/Proton-105/pydt-bot/internal/bot/handlers"
	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/pkg/logger"
)

// RecoveryMiddleware turns handler panics into errors so one bad update
// cannot take the bot down.
func RecoveryMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, u domain.Update) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler",
						slog.Any("panic", r),
						slog.Int("update_id", u.ID),
						slog.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("panic recovered: %v", r)
				}
			}()

			return next(ctx, u)
		}
	}
}

// ErrorHandlingMiddleware reports handler failures through errHandler.
// Throttle denials are dropped silently. Nothing is ever sent back to the
// user from here.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler, log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, u domain.Update) error {
			err := next(ctx, u)
			if err == nil {
				return nil
			}

			if apperrors.IsAbsorbed(err) {
				log.DebugContext(ctx, "update absorbed",
					slog.Int64("user_id", u.SenderID),
					slog.String("reason", err.Error()),
				)
				return nil
			}

			if errHandler != nil {
				errHandler.Handle(ctx, err)
			}

			return nil
		}
	}
}

// LoggingMiddleware attaches a correlation id and logs basic telemetry about
// incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, u domain.Update) error {
			ctx = logger.WithCorrelationID(ctx, logger.CorrelationIDFromContext(ctx))
			start := time.Now()

			attrs := []any{
				slog.String("correlation_id", logger.CorrelationIDFromContext(ctx)),
				slog.Int("update_id", u.ID),
				slog.String("kind", u.Kind.String()),
				slog.Int64("user_id", u.SenderID),
				slog.String("command", u.Command()),
			}

			log.InfoContext(ctx, "handling update", attrs...)
			err := next(ctx, u)
			log.InfoContext(ctx, "handled update",
				append(attrs,
					slog.Duration("duration", time.Since(start)),
					slog.Any("error", err),
				)...,
			)

			return err
		}
	}
}
