package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RecommendationReview   = "review"
	RecommendationPractice = "practice"
	RecommendationAdvance  = "advance"
	RecommendationSeekHelp = "seek_help"
)

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const (
	RecommendationActive    = "active"
	RecommendationCompleted = "completed"
	RecommendationDismissed = "dismissed"
)

// LearningRecommendation is a profile-owned suggestion produced by the
// rule engine. Status transitions to completed/dismissed come from the
// surrounding API; staleness is checked lazily against ExpiresAt.
type LearningRecommendation struct {
	ID                   uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProfileID            uuid.UUID      `gorm:"type:uuid;not null;index" json:"profile_id"`
	TenantID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	RecommendationType   string         `gorm:"column:recommendation_type;not null;index" json:"recommendation_type"`
	Priority             string         `gorm:"column:priority;not null" json:"priority"`
	Concepts             datatypes.JSON `gorm:"column:concepts;type:jsonb" json:"concepts"`
	SuggestedActions     datatypes.JSON `gorm:"column:suggested_actions;type:jsonb" json:"suggested_actions"`
	EstimatedTimeMinutes int            `gorm:"column:estimated_time_minutes;not null;default:0" json:"estimated_time_minutes"`
	Reasoning            string         `gorm:"column:reasoning" json:"reasoning"`
	Status               string         `gorm:"column:status;not null;default:'active';index" json:"status"`
	ExpiresAt            *time.Time     `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	CreatedAt            time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (LearningRecommendation) TableName() string { return "learning_recommendation" }
