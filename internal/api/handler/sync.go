package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/edupulse/edupulse/internal/api/response"
	"github.com/edupulse/edupulse/internal/cache"
	"github.com/edupulse/edupulse/internal/store"
	"github.com/edupulse/edupulse/internal/sync"
	"github.com/edupulse/edupulse/pkg/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const analysesCacheTTL = 5 * time.Minute

// NewTriggerSyncHandler returns an http.HandlerFunc for POST /api/v1/sync.
// The run executes synchronously; the response status reflects the outcome.
func NewTriggerSyncHandler(svc sync.Syncer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.StartRun(r.Context(), models.TriggerManual)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to start synchronization run", nil)
			return
		}

		switch result.Status {
		case sync.RunCompleted:
			response.JSON(w, result)
		case sync.RunPartial:
			response.Status(w, http.StatusMultiStatus, result)
		case sync.RunSkipped:
			response.Error(w, http.StatusConflict, "RUN_SKIPPED", result.SkipReason, result)
		default:
			response.Error(w, http.StatusInternalServerError, "RUN_FAILED",
				"The synchronization run failed", result)
		}
	}
}

// JobReader loads batch job records for the poll endpoint.
type JobReader interface {
	GetBatchJob(ctx context.Context, id uuid.UUID) (*models.BatchJob, error)
}

// NewPollJobHandler returns an http.HandlerFunc for GET /api/v1/sync/{jobID}.
// The Redis job-status entry is the fast path when the store is unavailable.
func NewPollJobHandler(jobs JobReader, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"jobID must be a valid UUID", nil)
			return
		}

		job, err := jobs.GetBatchJob(r.Context(), jobID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
				"No job with the given ID", nil)
			return
		}
		if err != nil {
			if status, ok, cacheErr := c.GetJobStatus(r.Context(), jobID); cacheErr == nil && ok {
				response.JSON(w, map[string]any{"id": jobID, "status": status})
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load job", nil)
			return
		}

		response.JSON(w, job)
	}
}

// AnalysisReader loads tenants and their cached analyses.
type AnalysisReader interface {
	GetTenantByCode(ctx context.Context, code string) (*models.Tenant, error)
	ListLatestAnalysesByTenant(ctx context.Context, tenantID uuid.UUID) ([]*models.ActivityAnalysis, error)
}

// NewTenantAnalysesHandler returns an http.HandlerFunc for
// GET /api/v1/tenants/{code}/analyses. Results are cached in Redis with a
// short TTL; a pipeline run invalidates the entry after writing new rows.
func NewTenantAnalysesHandler(reader AnalysisReader, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if code == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"tenant code is required", nil)
			return
		}

		tenant, err := reader.GetTenantByCode(r.Context(), code)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "TENANT_NOT_FOUND",
				"No tenant with the given code", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load tenant", nil)
			return
		}

		cacheKey := cache.TenantAnalysesKey(tenant.ID)
		if cached, ok, err := c.Get(r.Context(), cacheKey); err == nil && ok {
			response.JSON(w, json.RawMessage(cached))
			return
		}

		analyses, err := reader.ListLatestAnalysesByTenant(r.Context(), tenant.ID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to load analyses", nil)
			return
		}
		if analyses == nil {
			analyses = []*models.ActivityAnalysis{}
		}

		payload, err := json.Marshal(analyses)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to encode analyses", nil)
			return
		}
		// Best effort; a cache failure just means the store is re-read next time.
		_ = c.Set(r.Context(), cacheKey, payload, analysesCacheTTL)

		response.JSON(w, json.RawMessage(payload))
	}
}
