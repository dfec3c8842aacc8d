package analytics

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type BatchLogRepo interface {
	Create(dbc dbctx.Context, row *types.BatchLog) (*types.BatchLog, error)
}

type batchLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchLogRepo(db *gorm.DB, baseLog *logger.Logger) BatchLogRepo {
	return &batchLogRepo{
		db:  db,
		log: baseLog.With("repo", "BatchLogRepo"),
	}
}

func (r *batchLogRepo) Create(dbc dbctx.Context, row *types.BatchLog) (*types.BatchLog, error) {
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
