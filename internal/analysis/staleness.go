package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/edupulse/edupulse/internal/store"
	"github.com/edupulse/edupulse/pkg/models"
)

// AnalysisGetter is the subset of the store the evaluator reads.
type AnalysisGetter interface {
	GetLatestAnalysis(ctx context.Context, key models.ActivityKey) (*models.ActivityAnalysis, error)
}

// Evaluator decides whether an activity's cached analysis must be
// regenerated. Caching rules are uniform across tenants: the show-all
// allow-list elsewhere never bypasses this check.
type Evaluator struct {
	store AnalysisGetter
	force bool
	now   func() time.Time
}

// NewEvaluator creates an Evaluator. force marks every activity stale for
// this run regardless of cache state.
func NewEvaluator(s AnalysisGetter, force bool) *Evaluator {
	return &Evaluator{store: s, force: force, now: time.Now}
}

// NeedsAnalysis reports whether the activity key has no usable cached
// analysis: missing, invalidated, expired, or force-refresh.
func (e *Evaluator) NeedsAnalysis(ctx context.Context, key models.ActivityKey) (bool, error) {
	if e.force {
		return true, nil
	}

	latest, err := e.store.GetLatestAnalysis(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if !latest.IsValid {
		return true, nil
	}
	if e.now().UTC().After(latest.ExpiresAt) {
		return true, nil
	}
	return false, nil
}
