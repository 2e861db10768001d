package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/pydt-bot/internal/app"
	"github.com/Proton-105/pydt-bot/pkg/config"
	"github.com/Proton-105/pydt-bot/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pydt-bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		env := cfg.Sentry.Environment
		if env == "" {
			env = cfg.AppEnv
		}
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: env,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	log.Info("starting pydt relay",
		slog.String("env", cfg.AppEnv),
		slog.String("log_level", cfg.Logger.Level),
	)

	a, err := app.New(ctx, cfg, v, log)
	if err != nil {
		log.Error("failed to build application", slog.Any("error", err))
		return err
	}

	if err := a.Run(ctx); err != nil {
		log.Error("relay stopped with error", slog.Any("error", err))
		return err
	}

	log.Info("pydt relay shut down")
	return nil
}
