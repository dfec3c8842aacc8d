package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type ProfileRepo interface {
	// Upsert writes the profile keyed by (tenant, student, course) so
	// concurrent recomputation converges on the latest calculation.
	Upsert(dbc dbctx.Context, profile *types.StudentPerformanceProfile) (*types.StudentPerformanceProfile, error)
	Get(dbc dbctx.Context, tenantID, studentID, courseID uuid.UUID) (*types.StudentPerformanceProfile, error)
	ListByCourse(dbc dbctx.Context, tenantID, courseID uuid.UUID) ([]*types.StudentPerformanceProfile, error)
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{
		db:  db,
		log: baseLog.With("repo", "ProfileRepo"),
	}
}

func (r *profileRepo) Upsert(dbc dbctx.Context, profile *types.StudentPerformanceProfile) (*types.StudentPerformanceProfile, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if profile == nil {
		return nil, nil
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	now := time.Now().UTC()
	profile.LastCalculated = now
	profile.UpdatedAt = now
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "student_id"}, {Name: "course_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"overall_mastery", "learning_velocity", "confidence_level",
				"performance_data", "last_calculated", "updated_at",
			}),
		}).
		Create(profile).Error
	if err != nil {
		return nil, err
	}
	return r.Get(dbc, profile.TenantID, profile.StudentID, profile.CourseID)
}

func (r *profileRepo) Get(dbc dbctx.Context, tenantID, studentID, courseID uuid.UUID) (*types.StudentPerformanceProfile, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if tenantID == uuid.Nil || studentID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	var row types.StudentPerformanceProfile
	err := transaction.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND student_id = ? AND course_id = ?", tenantID, studentID, courseID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *profileRepo) ListByCourse(dbc dbctx.Context, tenantID, courseID uuid.UUID) ([]*types.StudentPerformanceProfile, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StudentPerformanceProfile
	if tenantID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND course_id = ?", tenantID, courseID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
