package analytics

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type AlertRepo interface {
	Create(dbc dbctx.Context, row *types.InstructorAlert) (*types.InstructorAlert, error)
	ListOpenByCourse(dbc dbctx.Context, tenantID, courseID uuid.UUID) ([]*types.InstructorAlert, error)
}

type alertRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAlertRepo(db *gorm.DB, baseLog *logger.Logger) AlertRepo {
	return &alertRepo{
		db:  db,
		log: baseLog.With("repo", "AlertRepo"),
	}
}

func (r *alertRepo) Create(dbc dbctx.Context, row *types.InstructorAlert) (*types.InstructorAlert, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := transaction.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *alertRepo) ListOpenByCourse(dbc dbctx.Context, tenantID, courseID uuid.UUID) ([]*types.InstructorAlert, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.InstructorAlert
	if tenantID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND course_id = ? AND dismissed = false", tenantID, courseID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
