// Package middleware holds cross-cutting update handler middlewares.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Proton-105/pydt-bot/internal/bot/handlers"
	"github.com/Proton-105/pydt-bot/internal/domain"
	"github.com/Proton-105/pydt-bot/internal/idempotency"
)

// Idempotency ensures handlers execute at most once per Telegram update,
// so redelivered webhook updates do not send duplicate replies. A nil
// manager disables the check. Store failures fall back to running the
// handler.
func Idempotency(manager *idempotency.Manager, ttl time.Duration, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		return func(ctx context.Context, u domain.Update) error {
			key := updateKey(u)
			if key == "" {
				return next(ctx, u)
			}

			var handlerErr error
			ran, err := manager.Once(ctx, key, ttl, func(ctx context.Context) error {
				handlerErr = next(ctx, u)
				return handlerErr
			})

			switch {
			case errors.Is(err, idempotency.ErrRequestInProgress):
				return nil
			case ran:
				return handlerErr
			case err != nil:
				log.WarnContext(ctx, "idempotency check failed, handling anyway",
					slog.String("key", key),
					slog.Any("error", err),
				)
				return next(ctx, u)
			default:
				log.DebugContext(ctx, "duplicate update skipped", slog.String("key", key))
				return nil
			}
		}
	}
}

func updateKey(u domain.Update) string {
	switch {
	case u.ID != 0:
		return fmt.Sprintf("update:%d", u.ID)
	case u.CallbackID != "":
		return "callback:" + u.CallbackID
	default:
		return ""
	}
}
