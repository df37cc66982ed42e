package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edupulse/edupulse/pkg/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Tenants ---

func (s *PostgresStore) ListActiveTenants(ctx context.Context) ([]*models.Tenant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, code, name, base_url, active, created_at, updated_at
		 FROM tenants WHERE active = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.BaseURL, &t.Active,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, &t)
	}
	return tenants, rows.Err()
}

func (s *PostgresStore) GetTenantByCode(ctx context.Context, code string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, name, base_url, active, created_at, updated_at
		 FROM tenants WHERE code = $1`, code,
	).Scan(&t.ID, &t.Code, &t.Name, &t.BaseURL, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant by code: %w", err)
	}
	return &t, nil
}

// --- Credentials ---

func (s *PostgresStore) GetPersonalAccessToken(ctx context.Context, tenantID uuid.UUID, principal string) (*models.PersonalAccessToken, error) {
	var t models.PersonalAccessToken
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, principal, token, expires_at, created_at
		 FROM personal_access_tokens WHERE tenant_id = $1 AND principal = $2
		 ORDER BY created_at DESC LIMIT 1`, tenantID, principal,
	).Scan(&t.ID, &t.TenantID, &t.Principal, &t.Token, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get personal access token: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) GetServiceToken(ctx context.Context, tenantID uuid.UUID) (*models.ServiceToken, error) {
	var t models.ServiceToken
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, token, principal, scope, expires_at, created_at
		 FROM service_tokens WHERE tenant_id = $1
		 ORDER BY created_at DESC LIMIT 1`, tenantID,
	).Scan(&t.ID, &t.TenantID, &t.Token, &t.Principal, &t.Scope, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service token: %w", err)
	}
	return &t, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.TenantID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, tenantID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE tenant_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL`, id, tenantID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// --- Batch Jobs ---

const batchJobColumns = `id, kind, scope, status, priority, trigger_source, scheduled_for,
	started_at, completed_at, duration_ms, current_step, total_steps,
	tenants_processed, courses_processed, activities_processed, analyses_generated,
	success_count, error_count, last_error, summary, created_at, updated_at`

func (s *PostgresStore) CreateBatchJob(ctx context.Context, job *models.BatchJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO batch_jobs (id, kind, scope, status, priority, trigger_source, scheduled_for,
		   started_at, current_step, total_steps, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, job.Kind, job.Scope, job.Status, job.Priority, job.Trigger, job.ScheduledFor,
		job.StartedAt, job.CurrentStep, job.TotalSteps, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create batch job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBatchJob(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+batchJobColumns+` FROM batch_jobs WHERE id = $1`, id)
	job, err := scanBatchJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get batch job: %w", err)
	}
	return job, nil
}

// GetActiveJob returns the most recent job still in a non-terminal status.
// A job parked in pending counts as active: it either just started or its
// process died before the running transition, and both block admission the
// same way.
func (s *PostgresStore) GetActiveJob(ctx context.Context) (*models.BatchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+batchJobColumns+` FROM batch_jobs
		 WHERE status IN ($1, $2) ORDER BY started_at DESC LIMIT 1`,
		models.JobStatusPending, models.JobStatusRunning)
	job, err := scanBatchJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) GetLastJobStartedSince(ctx context.Context, since time.Time) (*models.BatchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+batchJobColumns+` FROM batch_jobs
		 WHERE started_at >= $1 ORDER BY started_at DESC LIMIT 1`, since)
	job, err := scanBatchJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get last job since: %w", err)
	}
	return job, nil
}

var validTransitions = map[string][]string{
	models.JobStatusPending: {models.JobStatusRunning, models.JobStatusFailed},
	models.JobStatusRunning: {models.JobStatusCompleted, models.JobStatusFailed},
}

func (s *PostgresStore) UpdateBatchJob(ctx context.Context, id uuid.UUID, opts ...JobUpdateOption) error {
	params := BuildJobUpdate(opts...)

	if params.Status != nil {
		var currentStatus string
		err := s.pool.QueryRow(ctx, `SELECT status FROM batch_jobs WHERE id = $1`, id).Scan(&currentStatus)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get batch job status: %w", err)
		}

		valid := false
		for _, allowed := range validTransitions[currentStatus] {
			if allowed == *params.Status {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, *params.Status)
		}
	}

	now := time.Now().UTC()
	query := `UPDATE batch_jobs SET updated_at = $2`
	args := []any{id, now}
	argIdx := 3

	addArg := func(col string, val any) {
		query += fmt.Sprintf(", %s = $%d", col, argIdx)
		args = append(args, val)
		argIdx++
	}

	if params.Status != nil {
		addArg("status", *params.Status)
		if *params.Status == models.JobStatusCompleted || *params.Status == models.JobStatusFailed {
			addArg("completed_at", now)
		}
	}
	if params.CurrentStep != nil {
		addArg("current_step", *params.CurrentStep)
	}
	if params.Counters != nil {
		addArg("tenants_processed", params.Counters.TenantsProcessed)
		addArg("courses_processed", params.Counters.CoursesProcessed)
		addArg("activities_processed", params.Counters.ActivitiesProcessed)
		addArg("analyses_generated", params.Counters.AnalysesGenerated)
		addArg("success_count", params.Counters.SuccessCount)
		addArg("error_count", params.Counters.ErrorCount)
	}
	if params.LastError != nil {
		addArg("last_error", *params.LastError)
	}
	if params.Summary != nil {
		addArg("summary", params.Summary)
	}
	if params.DurationMS != nil {
		addArg("duration_ms", *params.DurationMS)
	}

	query += " WHERE id = $1"

	_, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update batch job: %w", err)
	}
	return nil
}

func scanBatchJob(row pgx.Row) (*models.BatchJob, error) {
	var j models.BatchJob
	err := row.Scan(&j.ID, &j.Kind, &j.Scope, &j.Status, &j.Priority, &j.Trigger, &j.ScheduledFor,
		&j.StartedAt, &j.CompletedAt, &j.DurationMS, &j.CurrentStep, &j.TotalSteps,
		&j.Counters.TenantsProcessed, &j.Counters.CoursesProcessed, &j.Counters.ActivitiesProcessed,
		&j.Counters.AnalysesGenerated, &j.Counters.SuccessCount, &j.Counters.ErrorCount,
		&j.LastError, &j.Summary, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// --- Activity Analyses ---

const analysisColumns = `id, tenant_id, course_id, activity_id, activity_type, activity_name,
	summary, positives, alerts, insights, recommended_action, raw_response,
	provider, model, input_tokens, output_tokens, last_updated, expires_at, is_valid, is_latest`

func (s *PostgresStore) GetLatestAnalysis(ctx context.Context, key models.ActivityKey) (*models.ActivityAnalysis, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+analysisColumns+` FROM activity_analyses
		 WHERE tenant_id = $1 AND course_id = $2 AND activity_id = $3 AND activity_type = $4
		   AND is_latest = TRUE`,
		key.TenantID, key.CourseID, key.ActivityID, key.ActivityType)
	a, err := scanAnalysis(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest analysis: %w", err)
	}
	return a, nil
}

// SaveLatestAnalysis demotes the current latest row for the analysis key and
// inserts the new row as latest, all within one transaction.
func (s *PostgresStore) SaveLatestAnalysis(ctx context.Context, analysis *models.ActivityAnalysis) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save latest analysis: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE activity_analyses SET is_latest = FALSE
		 WHERE tenant_id = $1 AND course_id = $2 AND activity_id = $3 AND activity_type = $4
		   AND is_latest = TRUE`,
		analysis.TenantID, analysis.CourseID, analysis.ActivityID, analysis.ActivityType)
	if err != nil {
		return fmt.Errorf("demote previous analysis: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO activity_analyses (id, tenant_id, course_id, activity_id, activity_type, activity_name,
		   summary, positives, alerts, insights, recommended_action, raw_response,
		   provider, model, input_tokens, output_tokens, last_updated, expires_at, is_valid, is_latest)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, TRUE, TRUE)`,
		analysis.ID, analysis.TenantID, analysis.CourseID, analysis.ActivityID, analysis.ActivityType,
		analysis.ActivityName, analysis.Summary, analysis.Positives, analysis.Alerts, analysis.Insights,
		analysis.RecommendedAction, analysis.RawResponse, analysis.Provider, analysis.Model,
		analysis.InputTokens, analysis.OutputTokens, analysis.LastUpdated, analysis.ExpiresAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert latest analysis: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save latest analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListLatestAnalysesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.ActivityAnalysis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+analysisColumns+` FROM activity_analyses
		 WHERE tenant_id = $1 AND is_latest = TRUE
		 ORDER BY course_id, activity_type, activity_id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list latest analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*models.ActivityAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

// DeleteExpiredAnalyses removes expired rows that are no longer latest.
// Rows still marked latest are never deleted by TTL alone.
func (s *PostgresStore) DeleteExpiredAnalyses(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM activity_analyses WHERE expires_at < $1 AND is_latest = FALSE`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired analyses: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanAnalysis(row pgx.Row) (*models.ActivityAnalysis, error) {
	var a models.ActivityAnalysis
	err := row.Scan(&a.ID, &a.TenantID, &a.CourseID, &a.ActivityID, &a.ActivityType, &a.ActivityName,
		&a.Summary, &a.Positives, &a.Alerts, &a.Insights, &a.RecommendedAction, &a.RawResponse,
		&a.Provider, &a.Model, &a.InputTokens, &a.OutputTokens, &a.LastUpdated, &a.ExpiresAt,
		&a.IsValid, &a.IsLatest)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
