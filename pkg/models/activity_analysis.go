package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActivityTypeForum      = "forum"
	ActivityTypeAssignment = "assignment"
)

// ActivityKey uniquely identifies an activity within a tenant's course.
type ActivityKey struct {
	TenantID     uuid.UUID `json:"tenant_id"`
	CourseID     string    `json:"course_id"`
	ActivityID   string    `json:"activity_id"`
	ActivityType string    `json:"activity_type"`
}

// ActivityAnalysis is one cached analysis for an activity key. For a given
// key exactly one row has IsLatest set; writing a new analysis atomically
// demotes the previous latest row.
type ActivityAnalysis struct {
	ID                uuid.UUID `db:"id"                 json:"id"`
	TenantID          uuid.UUID `db:"tenant_id"          json:"tenant_id"`
	CourseID          string    `db:"course_id"          json:"course_id"`
	ActivityID        string    `db:"activity_id"        json:"activity_id"`
	ActivityType      string    `db:"activity_type"      json:"activity_type"`
	ActivityName      string    `db:"activity_name"      json:"activity_name"`
	Summary           string    `db:"summary"            json:"summary"`
	Positives         []string  `db:"positives"          json:"positives"`
	Alerts            []string  `db:"alerts"             json:"alerts"`
	Insights          []string  `db:"insights"           json:"insights"`
	RecommendedAction string    `db:"recommended_action" json:"recommended_action"`
	RawResponse       string    `db:"raw_response"       json:"-"`
	Provider          string    `db:"provider"           json:"provider"`
	Model             string    `db:"model"              json:"model"`
	InputTokens       int       `db:"input_tokens"       json:"input_tokens"`
	OutputTokens      int       `db:"output_tokens"      json:"output_tokens"`
	LastUpdated       time.Time `db:"last_updated"       json:"last_updated"`
	ExpiresAt         time.Time `db:"expires_at"         json:"expires_at"`
	IsValid           bool      `db:"is_valid"           json:"is_valid"`
	IsLatest          bool      `db:"is_latest"          json:"is_latest"`
}

// Key returns the activity key for this analysis row.
func (a *ActivityAnalysis) Key() ActivityKey {
	return ActivityKey{
		TenantID:     a.TenantID,
		CourseID:     a.CourseID,
		ActivityID:   a.ActivityID,
		ActivityType: a.ActivityType,
	}
}
