package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	PatternKnowledgeGap    = "knowledge_gap"
	PatternSkillDeficit    = "skill_deficit"
	PatternConfidenceIssue = "confidence_issue"
	PatternMisconception   = "misconception"
)

// StrugglePattern is an evidence-backed indicator that a student is
// having difficulty with specific material. Created by the detector;
// resolution is set by the surrounding API. A pattern resolved within
// the last 7 days still counts as recent history but is excluded from
// active risk calculation.
type StrugglePattern struct {
	ID                     uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID               uuid.UUID      `gorm:"type:uuid;not null;index:idx_pattern_student" json:"tenant_id"`
	StudentID              uuid.UUID      `gorm:"type:uuid;not null;index:idx_pattern_student" json:"student_id"`
	CourseID               *uuid.UUID     `gorm:"type:uuid;index" json:"course_id,omitempty"`
	PatternType            string         `gorm:"column:pattern_type;not null;index" json:"pattern_type"`
	ConceptsInvolved       datatypes.JSON `gorm:"column:concepts_involved;type:jsonb" json:"concepts_involved"`
	Severity               float64        `gorm:"column:severity;not null" json:"severity"`
	ConfidenceScore        float64        `gorm:"column:confidence_score;not null" json:"confidence_score"`
	SuggestedInterventions datatypes.JSON `gorm:"column:suggested_interventions;type:jsonb" json:"suggested_interventions"`
	DetectedAt             time.Time      `gorm:"column:detected_at;not null;default:now();index" json:"detected_at"`
	ResolvedAt             *time.Time     `gorm:"column:resolved_at;index" json:"resolved_at,omitempty"`
	CreatedAt              time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt              time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (StrugglePattern) TableName() string { return "struggle_pattern" }
