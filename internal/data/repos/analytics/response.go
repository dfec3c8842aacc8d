package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

// StudentScore is one student's normalized [0,1] aggregate used as a
// benchmark contribution candidate.
type StudentScore struct {
	StudentID uuid.UUID `json:"student_id"`
	Score     float64   `json:"score"`
}

type AssessmentResponseRepo interface {
	Create(dbc dbctx.Context, rows []*types.AssessmentResponse) ([]*types.AssessmentResponse, error)
	ListByStudentCourse(dbc dbctx.Context, tenantID, studentID, courseID uuid.UUID, since time.Time) ([]*types.AssessmentResponse, error)
	// ListStudentAverages returns each student's mean raw score in the
	// course, optionally narrowed to one assessment.
	ListStudentAverages(dbc dbctx.Context, tenantID, courseID uuid.UUID, assessmentID *uuid.UUID) ([]StudentScore, error)
	// ListStudentConceptAverages returns each student's mean score on
	// one concept in the course.
	ListStudentConceptAverages(dbc dbctx.Context, tenantID, courseID uuid.UUID, concept string) ([]StudentScore, error)
}

type assessmentResponseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssessmentResponseRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentResponseRepo {
	return &assessmentResponseRepo{
		db:  db,
		log: baseLog.With("repo", "AssessmentResponseRepo"),
	}
}

func (r *assessmentResponseRepo) Create(dbc dbctx.Context, rows []*types.AssessmentResponse) ([]*types.AssessmentResponse, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.AssessmentResponse{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *assessmentResponseRepo) ListByStudentCourse(dbc dbctx.Context, tenantID, studentID, courseID uuid.UUID, since time.Time) ([]*types.AssessmentResponse, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AssessmentResponse
	if tenantID == uuid.Nil || studentID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND student_id = ? AND course_id = ? AND answered_at >= ?", tenantID, studentID, courseID, since).
		Order("answered_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assessmentResponseRepo) ListStudentAverages(dbc dbctx.Context, tenantID, courseID uuid.UUID, assessmentID *uuid.UUID) ([]StudentScore, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []StudentScore
	if tenantID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.AssessmentResponse{}).
		Select("student_id, AVG(score) AS score").
		Where("tenant_id = ? AND course_id = ?", tenantID, courseID)
	if assessmentID != nil {
		q = q.Where("assessment_id = ?", *assessmentID)
	}
	if err := q.Group("student_id").Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assessmentResponseRepo) ListStudentConceptAverages(dbc dbctx.Context, tenantID, courseID uuid.UUID, concept string) ([]StudentScore, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []StudentScore
	if tenantID == uuid.Nil || courseID == uuid.Nil || concept == "" {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.AssessmentResponse{}).
		Select("student_id, AVG(score) AS score").
		Where("tenant_id = ? AND course_id = ? AND concept = ?", tenantID, courseID, concept).
		Group("student_id").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
