package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TrendImproving = "improving"
	TrendStable    = "stable"
	TrendDeclining = "declining"
)

// StudentPerformanceProfile is the per-student per-course rollup the
// recommendation and risk logic reads. Upserted by performance_update
// tasks; (tenant, student, course) is the natural key so concurrent
// recomputation converges instead of racing.
type StudentPerformanceProfile struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_profile_key" json:"tenant_id"`
	StudentID        uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_profile_key" json:"student_id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_profile_key" json:"course_id"`
	OverallMastery   float64        `gorm:"column:overall_mastery;not null;default:0" json:"overall_mastery"`
	LearningVelocity float64        `gorm:"column:learning_velocity;not null;default:0" json:"learning_velocity"`
	ConfidenceLevel  float64        `gorm:"column:confidence_level;not null;default:0" json:"confidence_level"`
	PerformanceData  datatypes.JSON `gorm:"column:performance_data;type:jsonb" json:"performance_data"`
	LastCalculated   time.Time      `gorm:"column:last_calculated;not null;default:now()" json:"last_calculated"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (StudentPerformanceProfile) TableName() string { return "student_performance_profile" }

// ConceptMastery is a profile-owned per-concept estimate.
type ConceptMastery struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ProfileID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_concept_mastery_key" json:"profile_id"`
	Concept          string    `gorm:"column:concept;not null;uniqueIndex:idx_concept_mastery_key" json:"concept"`
	MasteryLevel     float64   `gorm:"column:mastery_level;not null;default:0" json:"mastery_level"`
	ConfidenceScore  float64   `gorm:"column:confidence_score;not null;default:0" json:"confidence_score"`
	AssessmentCount  int       `gorm:"column:assessment_count;not null;default:0" json:"assessment_count"`
	ImprovementTrend string    `gorm:"column:improvement_trend;not null;default:'stable'" json:"improvement_trend"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ConceptMastery) TableName() string { return "concept_mastery" }
