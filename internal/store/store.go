package store

import (
	"context"
	"errors"
	"time"

	"github.com/edupulse/edupulse/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	ListActiveTenants(ctx context.Context) ([]*models.Tenant, error)
	GetTenantByCode(ctx context.Context, code string) (*models.Tenant, error)

	GetPersonalAccessToken(ctx context.Context, tenantID uuid.UUID, principal string) (*models.PersonalAccessToken, error)
	GetServiceToken(ctx context.Context, tenantID uuid.UUID) (*models.ServiceToken, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error

	CreateBatchJob(ctx context.Context, job *models.BatchJob) error
	GetBatchJob(ctx context.Context, id uuid.UUID) (*models.BatchJob, error)
	GetActiveJob(ctx context.Context) (*models.BatchJob, error)
	GetLastJobStartedSince(ctx context.Context, since time.Time) (*models.BatchJob, error)
	UpdateBatchJob(ctx context.Context, id uuid.UUID, opts ...JobUpdateOption) error

	GetLatestAnalysis(ctx context.Context, key models.ActivityKey) (*models.ActivityAnalysis, error)
	SaveLatestAnalysis(ctx context.Context, analysis *models.ActivityAnalysis) error
	ListLatestAnalysesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.ActivityAnalysis, error)
	DeleteExpiredAnalyses(ctx context.Context, now time.Time) (int64, error)
}

// JobUpdate is the resolved set of fields one UpdateBatchJob call touches.
// Store implementations build it with BuildJobUpdate.
type JobUpdate struct {
	Status      *string
	CurrentStep *int
	Counters    *models.JobCounters
	LastError   *string
	Summary     []byte
	DurationMS  *int64
}

type JobUpdateOption func(*JobUpdate)

// BuildJobUpdate applies the options into a JobUpdate.
func BuildJobUpdate(opts ...JobUpdateOption) *JobUpdate {
	u := &JobUpdate{}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func WithStatus(status string) JobUpdateOption {
	return func(u *JobUpdate) {
		u.Status = &status
	}
}

func WithCurrentStep(step int) JobUpdateOption {
	return func(u *JobUpdate) {
		u.CurrentStep = &step
	}
}

func WithCounters(c models.JobCounters) JobUpdateOption {
	return func(u *JobUpdate) {
		u.Counters = &c
	}
}

func WithLastError(msg string) JobUpdateOption {
	return func(u *JobUpdate) {
		u.LastError = &msg
	}
}

func WithSummary(summary []byte) JobUpdateOption {
	return func(u *JobUpdate) {
		u.Summary = summary
	}
}

func WithDuration(d time.Duration) JobUpdateOption {
	return func(u *JobUpdate) {
		ms := d.Milliseconds()
		u.DurationMS = &ms
	}
}
