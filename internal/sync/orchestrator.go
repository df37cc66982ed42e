package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse/internal/analysis"
	"github.com/edupulse/edupulse/internal/cache"
	"github.com/edupulse/edupulse/internal/config"
	"github.com/edupulse/edupulse/internal/credentials"
	"github.com/edupulse/edupulse/internal/store"
	"github.com/edupulse/edupulse/pkg/models"
	"github.com/google/uuid"
)

// Run outcome statuses.
const (
	RunCompleted = "completed"
	RunPartial   = "partial"
	RunFailed    = "failed"
	RunSkipped   = "skipped"
)

const (
	jobKindFullSync = "full_sync"
	totalSteps      = 3
	jobStatusTTL    = time.Hour
)

// Syncer triggers one pipeline run. Implemented by Service; the HTTP handler
// and the scheduler both depend on this interface.
type Syncer interface {
	StartRun(ctx context.Context, trigger string) (*RunResult, error)
}

// RunResult is the outcome of one StartRun call, also persisted as the job's
// summary blob.
type RunResult struct {
	JobID      uuid.UUID          `json:"job_id,omitempty"`
	Status     string             `json:"status"`
	SkipReason string             `json:"skip_reason,omitempty"`
	Trigger    string             `json:"trigger"`
	Counters   models.JobCounters `json:"counters"`
	Errors     []string           `json:"errors,omitempty"`
	DurationMS int64              `json:"duration_ms"`
}

// Service orchestrates a full pipeline run: one batch job, three sequential
// steps (inventory sync, analysis generation, cache cleanup), with
// persisted-state run serialization and stuck-job reclamation.
type Service struct {
	store      store.Store
	cache      cache.Cache
	enumerator *Enumerator
	resolver   *credentials.Resolver
	fetcher    *Fetcher
	evaluator  *analysis.Evaluator
	generator  *analysis.Generator
	cfg        config.SyncConfig
	logger     *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewService(
	st store.Store,
	c cache.Cache,
	resolver *credentials.Resolver,
	fetcher *Fetcher,
	evaluator *analysis.Evaluator,
	generator *analysis.Generator,
	cfg config.SyncConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:      st,
		cache:      c,
		enumerator: NewEnumerator(st),
		resolver:   resolver,
		fetcher:    fetcher,
		evaluator:  evaluator,
		generator:  generator,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

// StartRun executes one full pipeline run synchronously. Cron and manual
// triggers go through this same entry point and behave identically. The
// returned RunResult carries status skipped when another run is in progress
// or one started within the de-dup window; failed runs return a RunResult,
// not an error, so callers can inspect the partial progress.
func (s *Service) StartRun(ctx context.Context, trigger string) (*RunResult, error) {
	started := s.now().UTC()

	skipReason, err := s.admitRun(ctx, started)
	if err != nil {
		return nil, err
	}
	if skipReason != "" {
		s.logger.Info("run skipped", slog.String("trigger", trigger), slog.String("reason", skipReason))
		return &RunResult{Status: RunSkipped, SkipReason: skipReason, Trigger: trigger}, nil
	}

	job := &models.BatchJob{
		ID:         uuid.New(),
		Kind:       jobKindFullSync,
		Scope:      "all",
		Status:     models.JobStatusPending,
		Trigger:    trigger,
		StartedAt:  &started,
		TotalSteps: totalSteps,
		CreatedAt:  started,
		UpdatedAt:  started,
	}
	if err := s.store.CreateBatchJob(ctx, job); err != nil {
		return nil, fmt.Errorf("creating batch job: %w", err)
	}
	s.setStatus(ctx, job.ID, models.JobStatusRunning)

	s.logger.Info("run started",
		slog.String("job_id", job.ID.String()),
		slog.String("trigger", trigger))

	var counters models.JobCounters
	var errs []ScopedError

	// Step 1: inventory sync across all tenants.
	s.stepStarted(ctx, job.ID, 1, counters)
	tenants, err := s.enumerator.Tenants(ctx)
	if err != nil {
		return s.fail(ctx, job.ID, trigger, started, counters, errs, err)
	}

	inventories := make([]*Inventory, 0, len(tenants))
	for i, tenant := range tenants {
		if i > 0 && s.cfg.TenantPacing > 0 {
			if err := s.sleep(ctx, s.cfg.TenantPacing); err != nil {
				return s.fail(ctx, job.ID, trigger, started, counters, errs, err)
			}
		}

		cred, err := s.resolver.Resolve(ctx, tenant)
		if err != nil {
			errs = append(errs, ScopedError{Scope: "tenant " + tenant.Code, Err: err})
			if !errors.Is(err, credentials.ErrNoCredential) && ctx.Err() != nil {
				return s.fail(ctx, job.ID, trigger, started, counters, errs, ctx.Err())
			}
			continue
		}

		inv, fetchErrs := s.fetcher.FetchTenant(ctx, tenant, cred)
		errs = append(errs, fetchErrs...)
		inventories = append(inventories, inv)
		counters.TenantsProcessed++
		counters.CoursesProcessed += len(inv.Courses)
		s.progress(ctx, job.ID, counters)
	}

	// Step 2: analysis generation over the collected inventories.
	s.stepStarted(ctx, job.ID, 2, counters)
	for _, inv := range inventories {
		generated := s.generateForTenant(ctx, inv, &counters, &errs)
		if generated > 0 {
			if err := s.cache.Delete(ctx, cache.TenantAnalysesKey(inv.Tenant.ID)); err != nil {
				s.logger.Warn("invalidating tenant analyses cache",
					slog.String("tenant", inv.Tenant.Code),
					slog.String("error", err.Error()))
			}
		}
		s.progress(ctx, job.ID, counters)
	}

	// Step 3: sweep expired non-latest analysis rows.
	s.stepStarted(ctx, job.ID, 3, counters)
	swept, err := s.store.DeleteExpiredAnalyses(ctx, s.now().UTC())
	if err != nil {
		errs = append(errs, ScopedError{Scope: "cache cleanup", Err: err})
	} else {
		s.logger.Info("expired analyses swept", slog.Int64("rows", swept))
	}

	counters.ErrorCount = len(errs)
	status := RunCompleted
	if len(errs) > 0 {
		status = RunPartial
	}

	result := &RunResult{
		JobID:      job.ID,
		Status:     status,
		Trigger:    trigger,
		Counters:   counters,
		Errors:     errorStrings(errs),
		DurationMS: s.now().UTC().Sub(started).Milliseconds(),
	}
	s.finish(ctx, job.ID, models.JobStatusCompleted, result, nil)

	s.logger.Info("run finished",
		slog.String("job_id", job.ID.String()),
		slog.String("status", status),
		slog.Int("tenants", counters.TenantsProcessed),
		slog.Int("analyses", counters.AnalysesGenerated),
		slog.Int("errors", counters.ErrorCount),
		slog.Int64("duration_ms", result.DurationMS))

	return result, nil
}

// admitRun enforces at-most-one-active-run and the trigger de-dup window.
// Returns a non-empty skip reason when the run must not start. Jobs stuck in
// pending or running past the threshold are reclaimed as failed first.
func (s *Service) admitRun(ctx context.Context, now time.Time) (string, error) {
	active, err := s.store.GetActiveJob(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("checking for active job: %w", err)
	}
	if active != nil {
		startedAt := active.CreatedAt
		if active.StartedAt != nil {
			startedAt = *active.StartedAt
		}
		if now.Sub(startedAt) < s.cfg.StuckJobTimeout {
			return "a synchronization run is already in progress", nil
		}
		// The previous run exceeded the stuck threshold; reclaim it and
		// let this run proceed.
		s.logger.Warn("reclaiming stuck job",
			slog.String("job_id", active.ID.String()),
			slog.String("status", active.Status),
			slog.Time("started_at", startedAt))
		reason := fmt.Sprintf("reclaimed: %s since %s, exceeded stuck threshold %s",
			active.Status, startedAt.Format(time.RFC3339), s.cfg.StuckJobTimeout)
		if err := s.store.UpdateBatchJob(ctx, active.ID,
			store.WithStatus(models.JobStatusFailed),
			store.WithLastError(reason),
		); err != nil {
			return "", fmt.Errorf("reclaiming stuck job %s: %w", active.ID, err)
		}
		s.cacheJobStatus(ctx, active.ID, models.JobStatusFailed)
	}

	last, err := s.store.GetLastJobStartedSince(ctx, now.Add(-s.cfg.DedupWindow))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("checking de-dup window: %w", err)
	}
	if last != nil && !last.Terminal() {
		return "a synchronization run is already in progress", nil
	}
	if last != nil {
		return fmt.Sprintf("a run started less than %s ago", s.cfg.DedupWindow), nil
	}
	return "", nil
}

// generateForTenant walks one tenant's inventory and generates analyses for
// every stale activity. Returns how many analyses were written.
func (s *Service) generateForTenant(ctx context.Context, inv *Inventory, counters *models.JobCounters, errs *[]ScopedError) int {
	generated := 0
	for _, ci := range inv.Courses {
		for _, fi := range ci.Forums {
			input := analysis.ActivityInput{
				TenantCode:   inv.Tenant.Code,
				TenantName:   inv.Tenant.Name,
				CourseID:     ci.Course.ID,
				CourseName:   ci.Course.Name,
				ActivityID:   fi.Forum.ID,
				ActivityType: models.ActivityTypeForum,
				ActivityName: fi.Forum.Name,
				Forum: &analysis.ForumContent{
					Forum:       fi.Forum,
					Discussions: fi.Discussions,
					Posts:       fi.Posts,
					Stats:       fi.Stats,
				},
				Participants: ci.Participants,
			}
			if s.processActivity(ctx, inv.Tenant, input, counters, errs) {
				generated++
			}
		}
		for _, ai := range ci.Assignments {
			input := analysis.ActivityInput{
				TenantCode:   inv.Tenant.Code,
				TenantName:   inv.Tenant.Name,
				CourseID:     ci.Course.ID,
				CourseName:   ci.Course.Name,
				ActivityID:   ai.Assignment.ID,
				ActivityType: models.ActivityTypeAssignment,
				ActivityName: ai.Assignment.Name,
				Assignment: &analysis.AssignmentContent{
					Assignment:  ai.Assignment,
					Submissions: ai.Submissions,
				},
				Participants: ci.Participants,
			}
			if s.processActivity(ctx, inv.Tenant, input, counters, errs) {
				generated++
			}
		}
	}
	return generated
}

// processActivity runs staleness check, generation, and persistence for one
// activity. Returns true when a new analysis row was written.
func (s *Service) processActivity(ctx context.Context, tenant *models.Tenant, input analysis.ActivityInput, counters *models.JobCounters, errs *[]ScopedError) bool {
	counters.ActivitiesProcessed++
	scope := fmt.Sprintf("tenant %s course %s %s %s", tenant.Code, input.CourseID, input.ActivityType, input.ActivityID)

	key := models.ActivityKey{
		TenantID:     tenant.ID,
		CourseID:     input.CourseID,
		ActivityID:   input.ActivityID,
		ActivityType: input.ActivityType,
	}

	needs, err := s.evaluator.NeedsAnalysis(ctx, key)
	if err != nil {
		*errs = append(*errs, ScopedError{Scope: scope + ": staleness check", Err: err})
		return false
	}
	if !needs {
		counters.SuccessCount++
		return false
	}

	gen, err := s.generator.Generate(ctx, input)
	if err != nil {
		*errs = append(*errs, ScopedError{Scope: scope, Err: err})
		return false
	}

	now := s.now().UTC()
	row := &models.ActivityAnalysis{
		ID:                uuid.New(),
		TenantID:          tenant.ID,
		CourseID:          input.CourseID,
		ActivityID:        input.ActivityID,
		ActivityType:      input.ActivityType,
		ActivityName:      input.ActivityName,
		Summary:           gen.Analysis.Summary,
		Positives:         gen.Analysis.Positives,
		Alerts:            gen.Analysis.Alerts,
		Insights:          gen.Analysis.Insights,
		RecommendedAction: gen.Analysis.RecommendedAction,
		RawResponse:       gen.Raw,
		Provider:          gen.Provider,
		Model:             gen.Model,
		InputTokens:       gen.InputTokens,
		OutputTokens:      gen.OutputTokens,
		LastUpdated:       now,
		ExpiresAt:         now.Add(s.cfg.AnalysisTTL),
		IsValid:           true,
		IsLatest:          true,
	}
	if err := s.store.SaveLatestAnalysis(ctx, row); err != nil {
		*errs = append(*errs, ScopedError{Scope: scope + ": save", Err: err})
		return false
	}

	counters.AnalysesGenerated++
	counters.SuccessCount++
	return true
}

// fail marks the job failed, preserving the counters accumulated so far.
func (s *Service) fail(ctx context.Context, jobID uuid.UUID, trigger string, started time.Time, counters models.JobCounters, errs []ScopedError, fatal error) (*RunResult, error) {
	counters.ErrorCount = len(errs) + 1
	result := &RunResult{
		JobID:      jobID,
		Status:     RunFailed,
		Trigger:    trigger,
		Counters:   counters,
		Errors:     append(errorStrings(errs), fatal.Error()),
		DurationMS: s.now().UTC().Sub(started).Milliseconds(),
	}
	s.finish(ctx, jobID, models.JobStatusFailed, result, fatal)

	s.logger.Error("run failed",
		slog.String("job_id", jobID.String()),
		slog.String("error", fatal.Error()))
	return result, nil
}

// finish writes the terminal job state: status, counters, summary, duration.
func (s *Service) finish(ctx context.Context, jobID uuid.UUID, status string, result *RunResult, fatal error) {
	summary, err := json.Marshal(result)
	if err != nil {
		summary = nil
	}

	opts := []store.JobUpdateOption{
		store.WithStatus(status),
		store.WithCurrentStep(totalSteps),
		store.WithCounters(result.Counters),
		store.WithSummary(summary),
		store.WithDuration(time.Duration(result.DurationMS) * time.Millisecond),
	}
	if fatal != nil {
		opts = append(opts, store.WithLastError(fatal.Error()))
	}
	if err := s.store.UpdateBatchJob(ctx, jobID, opts...); err != nil {
		s.logger.Error("persisting terminal job state",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
	}
	s.cacheJobStatus(ctx, jobID, status)
}

func (s *Service) setStatus(ctx context.Context, jobID uuid.UUID, status string) {
	if err := s.store.UpdateBatchJob(ctx, jobID, store.WithStatus(status)); err != nil {
		s.logger.Error("updating job status",
			slog.String("job_id", jobID.String()),
			slog.String("status", status),
			slog.String("error", err.Error()))
	}
	s.cacheJobStatus(ctx, jobID, status)
}

func (s *Service) stepStarted(ctx context.Context, jobID uuid.UUID, step int, counters models.JobCounters) {
	if err := s.store.UpdateBatchJob(ctx, jobID,
		store.WithCurrentStep(step),
		store.WithCounters(counters),
	); err != nil {
		s.logger.Warn("updating job step",
			slog.String("job_id", jobID.String()),
			slog.Int("step", step),
			slog.String("error", err.Error()))
	}
}

func (s *Service) progress(ctx context.Context, jobID uuid.UUID, counters models.JobCounters) {
	if err := s.store.UpdateBatchJob(ctx, jobID, store.WithCounters(counters)); err != nil {
		s.logger.Warn("updating job progress",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
	}
}

func (s *Service) cacheJobStatus(ctx context.Context, jobID uuid.UUID, status string) {
	if err := s.cache.SetJobStatus(ctx, jobID, status, jobStatusTTL); err != nil {
		s.logger.Warn("caching job status",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
	}
}

func errorStrings(errs []ScopedError) []string {
	if len(errs) == 0 {
		return nil
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
