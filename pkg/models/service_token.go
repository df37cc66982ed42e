package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceToken is a pre-provisioned fallback credential for a tenant, used
// when a principal's personal token cannot be resolved or fails with a
// permission error. Immutable once issued.
type ServiceToken struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"tenant_id"`
	Token     string    `db:"token"      json:"-"`
	Principal string    `db:"principal"  json:"principal"`
	Scope     string    `db:"scope"      json:"scope"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PersonalAccessToken is a principal-specific credential for one tenant.
// Preferred over the tenant's service token when present and not expired.
type PersonalAccessToken struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	TenantID  uuid.UUID `db:"tenant_id"  json:"tenant_id"`
	Principal string    `db:"principal"  json:"principal"`
	Token     string    `db:"token"      json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
