package analytics

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type ConsentRepo interface {
	Create(dbc dbctx.Context, rows []*types.PrivacyConsent) ([]*types.PrivacyConsent, error)
	// GetEffective returns the most recently updated consent record for
	// the student, preferring a course-scoped record and falling back to
	// a course-agnostic one. Returns nil when no record exists.
	GetEffective(dbc dbctx.Context, tenantID, studentID uuid.UUID, courseID *uuid.UUID) (*types.PrivacyConsent, error)
}

type consentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConsentRepo(db *gorm.DB, baseLog *logger.Logger) ConsentRepo {
	return &consentRepo{
		db:  db,
		log: baseLog.With("repo", "ConsentRepo"),
	}
}

func (r *consentRepo) Create(dbc dbctx.Context, rows []*types.PrivacyConsent) ([]*types.PrivacyConsent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.PrivacyConsent{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *consentRepo) GetEffective(dbc dbctx.Context, tenantID, studentID uuid.UUID, courseID *uuid.UUID) (*types.PrivacyConsent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if tenantID == uuid.Nil || studentID == uuid.Nil {
		return nil, nil
	}

	if courseID != nil && *courseID != uuid.Nil {
		row, err := r.latest(dbc, transaction, tenantID, studentID, courseID)
		if err != nil {
			return nil, err
		}
		if row != nil {
			return row, nil
		}
	}
	return r.latest(dbc, transaction, tenantID, studentID, nil)
}

func (r *consentRepo) latest(dbc dbctx.Context, tx *gorm.DB, tenantID, studentID uuid.UUID, courseID *uuid.UUID) (*types.PrivacyConsent, error) {
	q := tx.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND student_id = ?", tenantID, studentID)
	if courseID != nil {
		q = q.Where("course_id = ?", *courseID)
	} else {
		q = q.Where("course_id IS NULL")
	}
	var row types.PrivacyConsent
	err := q.Order("updated_at DESC").Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
