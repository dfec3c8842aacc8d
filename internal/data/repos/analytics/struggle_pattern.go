package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type StrugglePatternRepo interface {
	Create(dbc dbctx.Context, rows []*types.StrugglePattern) ([]*types.StrugglePattern, error)
	// ListRecentUnresolved returns patterns detected since the cutoff
	// that have no resolution yet.
	ListRecentUnresolved(dbc dbctx.Context, tenantID, studentID uuid.UUID, since time.Time) ([]*types.StrugglePattern, error)
	// ListUnresolvedByCourse returns every unresolved pattern in the
	// course. Resolved patterns stop contributing to risk immediately;
	// recently resolved ones stay visible only as history.
	ListUnresolvedByCourse(dbc dbctx.Context, tenantID, courseID uuid.UUID) ([]*types.StrugglePattern, error)
}

type strugglePatternRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStrugglePatternRepo(db *gorm.DB, baseLog *logger.Logger) StrugglePatternRepo {
	return &strugglePatternRepo{
		db:  db,
		log: baseLog.With("repo", "StrugglePatternRepo"),
	}
}

func (r *strugglePatternRepo) Create(dbc dbctx.Context, rows []*types.StrugglePattern) ([]*types.StrugglePattern, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.StrugglePattern{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *strugglePatternRepo) ListRecentUnresolved(dbc dbctx.Context, tenantID, studentID uuid.UUID, since time.Time) ([]*types.StrugglePattern, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StrugglePattern
	if tenantID == uuid.Nil || studentID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND student_id = ? AND resolved_at IS NULL AND detected_at >= ?", tenantID, studentID, since).
		Order("detected_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *strugglePatternRepo) ListUnresolvedByCourse(dbc dbctx.Context, tenantID, courseID uuid.UUID) ([]*types.StrugglePattern, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.StrugglePattern
	if tenantID == uuid.Nil || courseID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND course_id = ? AND resolved_at IS NULL", tenantID, courseID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
