package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type BenchmarkRepo interface {
	Create(dbc dbctx.Context, row *types.AnonymizedBenchmark) (*types.AnonymizedBenchmark, error)
	// GetValid returns the newest benchmark matching the full key whose
	// validity window is still open, or nil.
	GetValid(dbc dbctx.Context, tenantID, courseID uuid.UUID, benchmarkType, aggregationLevel, concept string, assessmentID *uuid.UUID, now time.Time) (*types.AnonymizedBenchmark, error)
}

type benchmarkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBenchmarkRepo(db *gorm.DB, baseLog *logger.Logger) BenchmarkRepo {
	return &benchmarkRepo{
		db:  db,
		log: baseLog.With("repo", "BenchmarkRepo"),
	}
}

func (r *benchmarkRepo) Create(dbc dbctx.Context, row *types.AnonymizedBenchmark) (*types.AnonymizedBenchmark, error) {
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

func (r *benchmarkRepo) GetValid(dbc dbctx.Context, tenantID, courseID uuid.UUID, benchmarkType, aggregationLevel, concept string, assessmentID *uuid.UUID, now time.Time) (*types.AnonymizedBenchmark, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if tenantID == uuid.Nil || courseID == uuid.Nil {
		return nil, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("tenant_id = ? AND course_id = ? AND benchmark_type = ? AND aggregation_level = ? AND concept = ?",
			tenantID, courseID, benchmarkType, aggregationLevel, concept).
		Where("valid_until > ?", now)
	if assessmentID != nil {
		q = q.Where("assessment_id = ?", *assessmentID)
	} else {
		q = q.Where("assessment_id IS NULL")
	}
	var row types.AnonymizedBenchmark
	err := q.Order("calculated_at DESC").Limit(1).Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}
