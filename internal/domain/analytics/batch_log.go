package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BatchLog is one observability row per consumed queue batch.
type BatchLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TotalTasks int            `gorm:"column:total_tasks;not null" json:"total_tasks"`
	Processed  int            `gorm:"column:processed;not null" json:"processed"`
	Failed     int            `gorm:"column:failed;not null" json:"failed"`
	TypeCounts datatypes.JSON `gorm:"column:type_counts;type:jsonb" json:"type_counts"`
	Errors     datatypes.JSON `gorm:"column:errors;type:jsonb" json:"errors"`
	DurationMs int64          `gorm:"column:duration_ms;not null" json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (BatchLog) TableName() string { return "batch_log" }
