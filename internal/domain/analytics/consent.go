package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PrivacyConsent is one version of a student's consent preferences,
// optionally scoped to a single course. Rows are append-only: a
// preference change writes a new version, withdrawal sets a timestamp.
// Hard deletes happen only on an explicit erasure request.
type PrivacyConsent struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_consent_scope" json:"tenant_id"`
	StudentID uuid.UUID  `gorm:"type:uuid;not null;index:idx_consent_scope" json:"student_id"`
	CourseID  *uuid.UUID `gorm:"type:uuid;index:idx_consent_scope" json:"course_id,omitempty"`

	PerformanceAnalyticsConsent bool `gorm:"column:performance_analytics_consent;not null;default:false" json:"performance_analytics_consent"`
	PredictiveAnalyticsConsent  bool `gorm:"column:predictive_analytics_consent;not null;default:false" json:"predictive_analytics_consent"`
	BenchmarkComparisonConsent  bool `gorm:"column:benchmark_comparison_consent;not null;default:false" json:"benchmark_comparison_consent"`
	InstructorVisibilityConsent bool `gorm:"column:instructor_visibility_consent;not null;default:false" json:"instructor_visibility_consent"`

	AnonymizationRequired bool       `gorm:"column:anonymization_required;not null;default:true" json:"anonymization_required"`
	RetentionDays         int        `gorm:"column:retention_days;not null;default:365" json:"retention_days"`
	ConsentVersion        string     `gorm:"column:consent_version;not null" json:"consent_version"`
	WithdrawalRequestedAt *time.Time `gorm:"column:withdrawal_requested_at" json:"withdrawal_requested_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PrivacyConsent) TableName() string { return "privacy_consent" }

// Withdrawn reports whether the student has requested withdrawal.
// A set timestamp overrides every stored flag.
func (c *PrivacyConsent) Withdrawn() bool {
	return c != nil && c.WithdrawalRequestedAt != nil
}
