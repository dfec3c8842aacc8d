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

type ConceptMasteryRepo interface {
	UpsertBatch(dbc dbctx.Context, rows []*types.ConceptMastery) error
	ListByProfile(dbc dbctx.Context, profileID uuid.UUID) ([]*types.ConceptMastery, error)
	ListByProfiles(dbc dbctx.Context, profileIDs []uuid.UUID) ([]*types.ConceptMastery, error)
	// ListStudentConceptMastery returns each student's mastery of one
	// concept across the course, for difficulty calibration benchmarks.
	ListStudentConceptMastery(dbc dbctx.Context, tenantID, courseID uuid.UUID, concept string) ([]StudentScore, error)
}

type conceptMasteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConceptMasteryRepo(db *gorm.DB, baseLog *logger.Logger) ConceptMasteryRepo {
	return &conceptMasteryRepo{
		db:  db,
		log: baseLog.With("repo", "ConceptMasteryRepo"),
	}
}

func (r *conceptMasteryRepo) UpsertBatch(dbc dbctx.Context, rows []*types.ConceptMastery) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.UpdatedAt = now
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "profile_id"}, {Name: "concept"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mastery_level", "confidence_score", "assessment_count",
				"improvement_trend", "updated_at",
			}),
		}).
		Create(&rows).Error
}

func (r *conceptMasteryRepo) ListByProfile(dbc dbctx.Context, profileID uuid.UUID) ([]*types.ConceptMastery, error) {
	if profileID == uuid.Nil {
		return nil, nil
	}
	return r.ListByProfiles(dbc, []uuid.UUID{profileID})
}

func (r *conceptMasteryRepo) ListByProfiles(dbc dbctx.Context, profileIDs []uuid.UUID) ([]*types.ConceptMastery, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ConceptMastery
	if len(profileIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("profile_id IN ?", profileIDs).
		Order("mastery_level ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *conceptMasteryRepo) ListStudentConceptMastery(dbc dbctx.Context, tenantID, courseID uuid.UUID, concept string) ([]StudentScore, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []StudentScore
	if tenantID == uuid.Nil || courseID == uuid.Nil || concept == "" {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.ConceptMastery{}).
		Select("student_performance_profile.student_id AS student_id, concept_mastery.mastery_level AS score").
		Joins("JOIN student_performance_profile ON student_performance_profile.id = concept_mastery.profile_id").
		Where("student_performance_profile.tenant_id = ? AND student_performance_profile.course_id = ?", tenantID, courseID).
		Where("concept_mastery.concept = ?", concept).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
