// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Task is one maintenance job.
type Task struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler interface {
	Register(task Task) error
	Run()
	Shutdown(ctx context.Context) error
}

type scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// NewScheduler builds a Scheduler accepting standard five-field specs and
// descriptors such as "@every 5m". Overlapping runs of one task are skipped.
func NewScheduler(log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "scheduler"))

	cl := cronLogger{log: log}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	return &scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log: log,
	}
}

func (s *scheduler) Register(task Task) error {
	if task.Run == nil {
		return fmt.Errorf("jobs: task %q has no run function", task.Name)
	}

	_, err := s.cron.AddFunc(task.Schedule, func() {
		ctx := context.Background()
		if task.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, task.Timeout)
			defer cancel()
		}

		start := time.Now()
		if err := task.Run(ctx); err != nil {
			s.log.ErrorContext(ctx, "task failed", slog.String("task", task.Name), slog.Any("error", err))
			return
		}
		s.log.DebugContext(ctx, "task completed", slog.String("task", task.Name), slog.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("jobs: schedule %q for task %q: %w", task.Schedule, task.Name, err)
	}

	s.log.Info("registered task", slog.String("task", task.Name), slog.String("schedule", task.Schedule))
	return nil
}

func (s *scheduler) Run() {
	s.log.Info("starting", slog.Int("tasks", len(s.cron.Entries())))
	s.cron.Start()
}

// Shutdown stops scheduling and waits for running tasks until ctx is done.
func (s *scheduler) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
