package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// InstructorAlert collects every at-risk student found by one
// alert_check run for a course, with human-readable reasons per
// student inside AlertData.
type InstructorAlert struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	TenantID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_alert_course" json:"tenant_id"`
	CourseID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_alert_course" json:"course_id"`
	Priority     string         `gorm:"column:priority;not null" json:"priority"`
	StudentIDs   datatypes.JSON `gorm:"column:student_ids;type:jsonb" json:"student_ids"`
	AlertData    datatypes.JSON `gorm:"column:alert_data;type:jsonb" json:"alert_data"`
	Acknowledged bool           `gorm:"column:acknowledged;not null;default:false" json:"acknowledged"`
	Dismissed    bool           `gorm:"column:dismissed;not null;default:false" json:"dismissed"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (InstructorAlert) TableName() string { return "instructor_alert" }
