// Package credentials resolves the access token used for a tenant's LMS
// API calls. Personal access tokens for the configured principal win over
// the tenant's shared service token; the service token remains available
// as a fallback when the personal token turns out to lack permissions.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edupulse/edupulse/internal/store"
	"github.com/edupulse/edupulse/pkg/models"
	"github.com/google/uuid"
)

// ErrNoCredential means the tenant has neither a usable personal token nor
// a service token. The tenant is skipped, not the whole run.
var ErrNoCredential = errors.New("no usable credential for tenant")

type Kind string

const (
	KindPersonal Kind = "personal"
	KindService  Kind = "service"
)

// Credential is a resolved token ready to authenticate LMS calls.
type Credential struct {
	Token     string
	Kind      Kind
	ExpiresAt time.Time
}

// TokenStore is the subset of the store the resolver reads.
type TokenStore interface {
	GetPersonalAccessToken(ctx context.Context, tenantID uuid.UUID, principal string) (*models.PersonalAccessToken, error)
	GetServiceToken(ctx context.Context, tenantID uuid.UUID) (*models.ServiceToken, error)
}

type Resolver struct {
	store     TokenStore
	principal string
	logger    *slog.Logger
	now       func() time.Time
}

func NewResolver(s TokenStore, principal string, logger *slog.Logger) *Resolver {
	return &Resolver{store: s, principal: principal, logger: logger, now: time.Now}
}

// Resolve picks the credential for one tenant. An expired personal token is
// treated the same as a missing one.
func (r *Resolver) Resolve(ctx context.Context, tenant *models.Tenant) (*Credential, error) {
	pat, err := r.store.GetPersonalAccessToken(ctx, tenant.ID, r.principal)
	switch {
	case err == nil:
		if pat.ExpiresAt.After(r.now().UTC()) {
			return &Credential{Token: pat.Token, Kind: KindPersonal, ExpiresAt: pat.ExpiresAt}, nil
		}
		r.logger.Warn("personal access token expired, falling back to service token",
			slog.String("tenant", tenant.Code),
			slog.String("principal", r.principal),
			slog.Time("expired_at", pat.ExpiresAt))
	case errors.Is(err, store.ErrNotFound):
		// Fall through to the service token.
	default:
		return nil, fmt.Errorf("looking up personal access token for tenant %s: %w", tenant.Code, err)
	}

	return r.ServiceCredential(ctx, tenant)
}

// ServiceCredential resolves only the tenant's service token. Used directly
// when a personal token is rejected mid-run with a permission error.
func (r *Resolver) ServiceCredential(ctx context.Context, tenant *models.Tenant) (*Credential, error) {
	st, err := r.store.GetServiceToken(ctx, tenant.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("tenant %s: %w", tenant.Code, ErrNoCredential)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up service token for tenant %s: %w", tenant.Code, err)
	}
	return &Credential{Token: st.Token, Kind: KindService, ExpiresAt: st.ExpiresAt}, nil
}
