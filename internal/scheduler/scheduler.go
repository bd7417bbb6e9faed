// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mmynk/gatherly/internal/metrics"
	"github.com/mmynk/gatherly/internal/models"
	"github.com/mmynk/gatherly/internal/recurrence"
)

// DefaultCompletionSweep runs the completion sweep every 15 minutes.
const DefaultCompletionSweep = "*/15 * * * *"

// EventStore is the part of the event store the sweep needs.
type EventStore interface {
	ListEventsByStatus(ctx context.Context, status models.EventStatus) ([]*models.Event, error)
	UpdateEvent(ctx context.Context, event *models.Event) error
}

// Sweeper marks scheduled events completed once they can have no further
// occurrence.
type Sweeper struct {
	Events   EventStore
	Expander recurrence.Expander
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

func (s *Sweeper) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// Sweep completes every finished scheduled event and returns how many were
// completed. Failures on single events are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	events, err := s.Events.ListEventsByStatus(ctx, models.EventStatusScheduled)
	if err != nil {
		return 0, fmt.Errorf("failed to list scheduled events: %w", err)
	}

	completed := 0
	for _, e := range events {
		if !s.Expander.Ended(e, now) {
			continue
		}
		e.Status = models.EventStatusCompleted
		e.UpdatedAt = now
		if err := s.Events.UpdateEvent(ctx, e); err != nil {
			s.logger().Error("Failed to complete event", "event_id", e.ID, "error", err)
			continue
		}
		completed++
		s.Metrics.EventCompleted()
		s.logger().Info("Event completed", "event_id", e.ID, "title", e.Title)
	}
	return completed, nil
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// New creates a stopped scheduler whose cron runner logs through logger.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{logger}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger}))),
		logger: logger,
	}
}

// AddSweep runs sweeper on spec. Each run gets ctx.
func (s *Scheduler) AddSweep(ctx context.Context, spec string, sweeper *Sweeper) error {
	if spec == "" {
		spec = DefaultCompletionSweep
	}
	_, err := s.cron.AddFunc(spec, func() {
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			s.logger.Error("Completion sweep failed", "error", err)
			return
		}
		s.logger.Debug("Completion sweep finished", "completed", n)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule completion sweep %q: %w", spec, err)
	}
	return nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
