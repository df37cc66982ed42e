package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

// JobCounters aggregates per-run progress numbers. Updated incrementally by
// the orchestrator as tenants and steps complete.
type JobCounters struct {
	TenantsProcessed    int `db:"tenants_processed"    json:"tenants_processed"`
	CoursesProcessed    int `db:"courses_processed"    json:"courses_processed"`
	ActivitiesProcessed int `db:"activities_processed" json:"activities_processed"`
	AnalysesGenerated   int `db:"analyses_generated"   json:"analyses_generated"`
	SuccessCount        int `db:"success_count"        json:"success_count"`
	ErrorCount          int `db:"error_count"          json:"error_count"`
}

// BatchJob tracks one execution of the full synchronization pipeline.
// At most one job may be in running status at any time; a running job older
// than the stuck-job threshold is reclassified as failed before a new run
// may start.
type BatchJob struct {
	ID           uuid.UUID   `db:"id"            json:"id"`
	Kind         string      `db:"kind"          json:"kind"`
	Scope        string      `db:"scope"         json:"scope"`
	Status       string      `db:"status"        json:"status"`
	Priority     int         `db:"priority"      json:"priority"`
	Trigger      string      `db:"trigger"       json:"trigger"`
	ScheduledFor *time.Time  `db:"scheduled_for" json:"scheduled_for,omitempty"`
	StartedAt    *time.Time  `db:"started_at"    json:"started_at,omitempty"`
	CompletedAt  *time.Time  `db:"completed_at"  json:"completed_at,omitempty"`
	DurationMS   *int64      `db:"duration_ms"   json:"duration_ms,omitempty"`
	CurrentStep  int         `db:"current_step"  json:"current_step"`
	TotalSteps   int         `db:"total_steps"   json:"total_steps"`
	Counters     JobCounters `json:"counters"`
	LastError    *string     `db:"last_error"    json:"last_error,omitempty"`
	Summary      []byte      `db:"summary"       json:"summary,omitempty"`
	CreatedAt    time.Time   `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"    json:"updated_at"`
}

// Terminal reports whether the job reached an immutable final state.
func (j *BatchJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
