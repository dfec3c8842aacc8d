package analytics

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type TaskRepo interface {
	Create(dbc dbctx.Context, tasks []*types.AnalyticsTask) ([]*types.AnalyticsTask, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.AnalyticsTask, error)
	MarkProcessing(dbc dbctx.Context, id uuid.UUID) error
	MarkCompleted(dbc dbctx.Context, id uuid.UUID, duration time.Duration) error
	// MarkFailed records the error text and bumps retry_count. Failed
	// rows are retained for audit, never deleted.
	MarkFailed(dbc dbctx.Context, id uuid.UUID, errText string) error
}

type taskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
	return &taskRepo{
		db:  db,
		log: baseLog.With("repo", "TaskRepo"),
	}
}

func (r *taskRepo) Create(dbc dbctx.Context, tasks []*types.AnalyticsTask) ([]*types.AnalyticsTask, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(tasks) == 0 {
		return []*types.AnalyticsTask{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.AnalyticsTask, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AnalyticsTask
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *taskRepo) MarkProcessing(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	return r.update(dbc, id, map[string]interface{}{
		"status":     types.TaskStatusProcessing,
		"started_at": now,
		"updated_at": now,
	})
}

func (r *taskRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, duration time.Duration) error {
	now := time.Now().UTC()
	return r.update(dbc, id, map[string]interface{}{
		"status":       types.TaskStatusCompleted,
		"completed_at": now,
		"duration_ms":  duration.Milliseconds(),
		"error":        "",
		"updated_at":   now,
	})
}

func (r *taskRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, errText string) error {
	now := time.Now().UTC()
	return r.update(dbc, id, map[string]interface{}{
		"status":      types.TaskStatusFailed,
		"error":       errText,
		"retry_count": gorm.Expr("retry_count + 1"),
		"updated_at":  now,
	})
}

func (r *taskRepo) update(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.AnalyticsTask{}).
		Where("id = ?", id).
		Updates(updates).Error
}
