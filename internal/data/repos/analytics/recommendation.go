package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type RecommendationRepo interface {
	Create(dbc dbctx.Context, rows []*types.LearningRecommendation) ([]*types.LearningRecommendation, error)
	// ExpireActive dismisses still-active recommendations for a profile
	// so a fresh generation replaces rather than accumulates.
	ExpireActive(dbc dbctx.Context, profileID uuid.UUID) error
	// ListActive returns active, unexpired recommendations; expiry is
	// checked lazily here rather than by a background sweeper.
	ListActive(dbc dbctx.Context, profileID uuid.UUID, now time.Time) ([]*types.LearningRecommendation, error)
}

type recommendationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return &recommendationRepo{
		db:  db,
		log: baseLog.With("repo", "RecommendationRepo"),
	}
}

func (r *recommendationRepo) Create(dbc dbctx.Context, rows []*types.LearningRecommendation) ([]*types.LearningRecommendation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.LearningRecommendation{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *recommendationRepo) ExpireActive(dbc dbctx.Context, profileID uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if profileID == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.LearningRecommendation{}).
		Where("profile_id = ? AND status = ?", profileID, types.RecommendationActive).
		Updates(map[string]interface{}{
			"status":     types.RecommendationDismissed,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *recommendationRepo) ListActive(dbc dbctx.Context, profileID uuid.UUID, now time.Time) ([]*types.LearningRecommendation, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LearningRecommendation
	if profileID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("profile_id = ? AND status = ?", profileID, types.RecommendationActive).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
