// Package app assembles the relay's components once at startup and runs
// them until the process is asked to stop.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"

	"github.com/Proton-105/pydt-bot/internal/bot"
	"github.com/Proton-105/pydt-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
	"github.com/Proton-105/pydt-bot/internal/health"
	"github.com/Proton-105/pydt-bot/internal/httpapi"
	"github.com/Proton-105/pydt-bot/internal/idempotency"
	"github.com/Proton-105/pydt-bot/internal/jobs"
	"github.com/Proton-105/pydt-bot/internal/lifecycle"
	"github.com/Proton-105/pydt-bot/internal/middleware"
	"github.com/Proton-105/pydt-bot/internal/ratelimit"
	"github.com/Proton-105/pydt-bot/internal/registration"
	"github.com/Proton-105/pydt-bot/internal/relay"
	"github.com/Proton-105/pydt-bot/pkg/config"
	"github.com/Proton-105/pydt-bot/pkg/graceful"
)

const (
	// Telegram redelivers an unacknowledged update within minutes.
	updateDedupTTL = 10 * time.Minute
	healthTimeout  = 3 * time.Second
	sentryFlush    = 2 * time.Second
)

// App holds every long-lived collaborator.
type App struct {
	cfg       *config.Config
	viper     *viper.Viper
	log       *slog.Logger
	bot       *bot.Bot
	server    *graceful.Server
	scheduler jobs.Scheduler
	rules     *ratelimit.Rules
	shutdown  *lifecycle.Shutdown
}

// New connects to the configured backends and builds the bot, the webhook
// relay and the HTTP front door. On error every resource opened so far is
// released.
func New(ctx context.Context, cfg *config.Config, v *viper.Viper, log *slog.Logger) (a *App, err error) {
	if log == nil {
		log = slog.Default()
	}

	shutdown := lifecycle.NewShutdown(log)
	defer func() {
		if err != nil {
			_ = shutdown.Execute(context.WithoutCancel(ctx))
		}
	}()

	if cfg.Sentry.Enabled {
		shutdown.Register(lifecycle.PhaseTelemetry, "sentry", func(context.Context) error {
			sentry.Flush(sentryFlush)
			return nil
		})
	}

	checker := health.NewChecker(log, healthTimeout)
	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	rdb, err := connectRedis(ctx, cfg, checker, shutdown)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg, rdb, checker, shutdown, log)
	if err != nil {
		return nil, err
	}

	limiter, throttleCleaner, err := buildLimiter(cfg, rdb, log)
	if err != nil {
		return nil, err
	}

	rules, err := ratelimit.NewRules(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	guard := ratelimit.NewGuard(limiter, rules, log)

	registrar := registration.NewService(store, registration.Options{
		URLTemplate:   cfg.Webhook.URLTemplate,
		StrictPersist: cfg.Registration.StrictPersist,
	}, log)

	scheduler := jobs.NewScheduler(log)
	if err := scheduler.Register(jobs.NewThrottleCleanupTask(cfg.RateLimit.CleanupSchedule, throttleCleaner, guard.Window, log)); err != nil {
		return nil, err
	}

	middlewares := []handlers.Middleware{
		bot.RecoveryMiddleware(log),
		bot.LoggingMiddleware(log),
	}
	if rdb != nil {
		manager := idempotency.NewManager(idempotency.NewRedisStore(rdb.Client), log)
		middlewares = append(middlewares, middleware.Idempotency(manager, updateDedupTTL, log))

		if err := scheduler.Register(jobs.NewIdempotencyCleanupTask(cfg.RateLimit.CleanupSchedule, idempotency.NewCleaner(rdb.Client, log), log)); err != nil {
			return nil, err
		}
	} else {
		log.Info("redis not configured, duplicate update suppression disabled")
	}
	middlewares = append(middlewares,
		bot.ErrorHandlingMiddleware(errHandler, log),
		middleware.Metrics,
	)

	tgBot, err := bot.New(cfg.Bot, log, bot.Deps{
		Registrar:   registrar,
		Throttle:    guard,
		Middlewares: middlewares,
	})
	if err != nil {
		return nil, err
	}
	checker.AddCheck("telegram", health.NewTelegramChecker(tgBot))

	webhookRelay := relay.New(registrar, tgBot.Sender(), errHandler, log)

	gin.SetMode(ginMode(cfg.AppEnv))
	router := httpapi.NewRouter(httpapi.Deps{
		Relay:        webhookRelay,
		Health:       checker,
		Telegram:     tgBot.WebhookHandler(),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Log:          log,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:       cfg,
		viper:     v,
		log:       log,
		bot:       tgBot,
		server:    graceful.NewServer(log, srv, cfg.Server.ShutdownTimeout),
		scheduler: scheduler,
		rules:     rules,
		shutdown:  shutdown,
	}, nil
}

// Run serves until ctx is cancelled, then runs the shutdown hooks.
func (a *App) Run(ctx context.Context) error {
	config.Watch(a.viper, a.log, a.reload)

	a.scheduler.Run()
	a.shutdown.Register(lifecycle.PhaseWorkers, "scheduler", a.scheduler.Shutdown)

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		a.bot.Start()
	}()
	a.shutdown.Register(lifecycle.PhaseIngress, "telegram", func(ctx context.Context) error {
		select {
		case <-botDone:
			return nil
		default:
		}

		// Stop blocks until the poller acknowledges, which never happens if
		// polling already gave up.
		go a.bot.Stop()
		select {
		case <-botDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	a.log.Info("pydt relay started",
		slog.String("env", a.cfg.AppEnv),
		slog.String("addr", a.cfg.Server.Port),
		slog.String("bot_mode", a.cfg.Bot.Mode),
		slog.String("storage", a.cfg.Storage.Driver),
	)

	serveErr := a.server.ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	return errors.Join(serveErr, a.shutdown.Execute(shutdownCtx))
}

func (a *App) reload(cfg *config.Config) {
	if err := a.rules.Update(cfg.RateLimit); err != nil {
		a.log.Warn("rate limit rules not reloaded", slog.Any("error", err))
		return
	}
	limit, window := a.rules.PerUser()
	a.log.Info("rate limit rules reloaded", slog.Int("limit", limit), slog.String("window", window.String()))
}

func ginMode(env string) string {
	switch env {
	case "production":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
