package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents one independently-hosted LMS instance ("aula") the
// pipeline synchronizes. Tenants are created by provisioning and are
// read-only to the pipeline.
type Tenant struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	Code      string    `db:"code"       json:"code"`
	Name      string    `db:"name"       json:"name"`
	BaseURL   string    `db:"base_url"   json:"base_url"`
	Active    bool      `db:"active"     json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
