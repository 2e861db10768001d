package middleware

import (
	"context"
	"time"

	"github.com/Proton-105/pydt-bot/internal/bot/handlers"
	"github.com/Proton-105/pydt-bot/internal/domain"
	"github.com/Proton-105/pydt-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	return func(ctx context.Context, u domain.Update) error {
		start := time.Now()
		err := next(ctx, u)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(u.Command(), status, time.Since(start))

		return err
	}
}
