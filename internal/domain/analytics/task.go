package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	TaskPerformanceUpdate        = "performance_update"
	TaskRecommendationGeneration = "recommendation_generation"
	TaskPatternDetection         = "pattern_detection"
	TaskAlertCheck               = "alert_check"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// AnalyticsTask is the durable record of one queued unit of work.
// Created by producers, mutated only by the consumer. Failed rows are
// kept for audit, never deleted.
type AnalyticsTask struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TaskType     string         `gorm:"column:task_type;not null;index" json:"task_type"`
	TenantID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	StudentID    *uuid.UUID     `gorm:"type:uuid;index" json:"student_id,omitempty"`
	CourseID     *uuid.UUID     `gorm:"type:uuid;index" json:"course_id,omitempty"`
	AssessmentID *uuid.UUID     `gorm:"type:uuid" json:"assessment_id,omitempty"`
	Priority     int            `gorm:"column:priority;not null;default:5" json:"priority"`
	Payload      datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload"`
	Status       string         `gorm:"column:status;not null;default:'pending';index" json:"status"`
	RetryCount   int            `gorm:"column:retry_count;not null;default:0" json:"retry_count"`
	Error        string         `gorm:"column:error" json:"error,omitempty"`
	StartedAt    *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	DurationMs   int64          `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (AnalyticsTask) TableName() string { return "analytics_task" }
