package analytics

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentResponse is one scored attempt, the raw input to profile
// recomputation, pattern detection, and course_average benchmarks.
// Producer-side writes happen outside this service; the pipeline only
// reads them.
type AssessmentResponse struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;index:idx_response_student" json:"tenant_id"`
	StudentID    uuid.UUID `gorm:"type:uuid;not null;index:idx_response_student" json:"student_id"`
	CourseID     uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	AssessmentID uuid.UUID `gorm:"type:uuid;not null;index" json:"assessment_id"`
	Concept      string    `gorm:"column:concept;not null;index" json:"concept"`
	Score        float64   `gorm:"column:score;not null" json:"score"`
	Difficulty   float64   `gorm:"column:difficulty;not null;default:0.5" json:"difficulty"`
	TimeSpentSec int       `gorm:"column:time_spent_sec;not null;default:0" json:"time_spent_sec"`
	AnsweredAt   time.Time `gorm:"column:answered_at;not null;index" json:"answered_at"`
	CreatedAt    time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (AssessmentResponse) TableName() string { return "assessment_response" }
