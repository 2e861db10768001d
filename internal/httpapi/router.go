// Package httpapi is the HTTP front door: the PYDT webhook, the Telegram
// webhook endpoint, health checks and metrics.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WebhookRelay processes one PYDT callback.
type WebhookRelay interface {
	Handle(ctx context.Context, token string, body []byte) error
}

// ReadinessChecker reports per-component status, "OK" meaning healthy.
type ReadinessChecker interface {
	Check(ctx context.Context) map[string]string
}

// Deps are the collaborators mounted by NewRouter.
type Deps struct {
	Relay        WebhookRelay
	Health       ReadinessChecker
	Telegram     http.Handler
	MaxBodyBytes int64
	Log          *slog.Logger
}

// NewRouter builds the gin engine.
//
// Middleware order: request id, access log, recovery, body limit, metrics.
func NewRouter(deps Deps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(RequestID())
	r.Use(AccessLog(log))
	r.Use(Recovery(log))
	if deps.MaxBodyBytes > 0 {
		r.Use(limitBody(deps.MaxBodyBytes))
	}
	r.Use(Metrics())

	r.NoRoute(func(c *gin.Context) { c.String(http.StatusNotFound, "not found") })
	r.NoMethod(func(c *gin.Context) { c.String(http.StatusMethodNotAllowed, "method not allowed") })

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/readyz", readyHandler(deps.Health))

	if deps.Relay != nil {
		h := &webhookHandler{relay: deps.Relay, log: log}
		r.POST("/webhook", h.handle)
		r.POST("/webhook/:token", h.handle)
	}

	if deps.Telegram != nil {
		r.POST("/telegram", gin.WrapH(deps.Telegram))
	}

	return r
}

func readyHandler(checker ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if checker == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		results := checker.Check(c.Request.Context())
		status := http.StatusOK
		for _, v := range results {
			if v != "OK" {
				status = http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
	}
}

// limitBody caps the request body size using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
