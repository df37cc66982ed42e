// Package scheduler fires the synchronization pipeline at fixed local times.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse/internal/sync"
	"github.com/edupulse/edupulse/pkg/models"
	"github.com/robfig/cron/v3"
)

// Scheduler runs the morning and afternoon cron entries in a fixed
// timezone. Slight firing jitter is harmless: the orchestrator's de-dup
// window drops a duplicate trigger.
type Scheduler struct {
	cron   *cron.Cron
	runner sync.Syncer
	logger *slog.Logger
}

// New builds a scheduler from the configured cron specs. The specs use the
// standard five-field format.
func New(timezone, morningSpec, afternoonSpec string, runner sync.Syncer, logger *slog.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading scheduler timezone %q: %w", timezone, err)
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		runner: runner,
		logger: logger,
	}

	for _, spec := range []string{morningSpec, afternoonSpec} {
		if _, err := s.cron.AddFunc(spec, s.fire); err != nil {
			return nil, fmt.Errorf("adding cron entry %q: %w", spec, err)
		}
	}
	return s, nil
}

// Start begins firing entries in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", slog.Int("entries", len(s.cron.Entries())))
}

// Stop halts scheduling and returns a context that completes when any
// in-flight run finishes.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("scheduler stopping")
	return s.cron.Stop()
}

func (s *Scheduler) fire() {
	result, err := s.runner.StartRun(context.Background(), models.TriggerCron)
	if err != nil {
		s.logger.Error("scheduled run failed to start", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scheduled run finished",
		slog.String("status", result.Status),
		slog.String("job_id", result.JobID.String()),
		slog.Int("errors", result.Counters.ErrorCount))
}
