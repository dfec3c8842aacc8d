package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumenlabs/lumen-analytics/internal/data/repos/testutil"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
)

func TestTaskLifecycle(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewTaskRepo(db, testutil.Logger(t))

	ctx := context.Background()
	dbc := dbctx.WithTx(ctx, tx)
	studentID, courseID := uuid.New(), uuid.New()
	task := testutil.SeedTask(t, ctx, tx, uuid.New(), types.TaskPerformanceUpdate, &studentID, &courseID)

	if err := repo.MarkProcessing(dbc, task.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	rows, err := repo.GetByIDs(dbc, []uuid.UUID{task.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("get by ids: rows=%d err=%v", len(rows), err)
	}
	if rows[0].Status != types.TaskStatusProcessing || rows[0].StartedAt == nil {
		t.Fatalf("after processing: status=%s startedAt=%v", rows[0].Status, rows[0].StartedAt)
	}

	if err := repo.MarkCompleted(dbc, task.ID, 1500*time.Millisecond); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	rows, _ = repo.GetByIDs(dbc, []uuid.UUID{task.ID})
	if rows[0].Status != types.TaskStatusCompleted {
		t.Fatalf("status = %s, want completed", rows[0].Status)
	}
	if rows[0].CompletedAt == nil || rows[0].DurationMs != 1500 {
		t.Fatalf("completion metadata missing: completedAt=%v durationMs=%d", rows[0].CompletedAt, rows[0].DurationMs)
	}
}

func TestTaskMarkFailedBumpsRetryCount(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewTaskRepo(db, testutil.Logger(t))

	ctx := context.Background()
	dbc := dbctx.WithTx(ctx, tx)
	task := testutil.SeedTask(t, ctx, tx, uuid.New(), types.TaskPatternDetection, nil, nil)

	if err := repo.MarkFailed(dbc, task.ID, "downstream timeout"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkFailed(dbc, task.ID, "downstream timeout again"); err != nil {
		t.Fatalf("mark failed twice: %v", err)
	}

	rows, err := repo.GetByIDs(dbc, []uuid.UUID{task.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("get by ids: rows=%d err=%v", len(rows), err)
	}
	row := rows[0]
	if row.Status != types.TaskStatusFailed {
		t.Fatalf("status = %s, want failed", row.Status)
	}
	if row.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", row.RetryCount)
	}
	if row.Error != "downstream timeout again" {
		t.Fatalf("error = %q, want the latest failure text", row.Error)
	}
}

func TestTaskGetByIDsIgnoresUnknown(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewTaskRepo(db, testutil.Logger(t))

	ctx := context.Background()
	dbc := dbctx.WithTx(ctx, tx)
	task := testutil.SeedTask(t, ctx, tx, uuid.New(), types.TaskAlertCheck, nil, nil)

	rows, err := repo.GetByIDs(dbc, []uuid.UUID{task.ID, uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != task.ID {
		t.Fatalf("got %d rows, want just the seeded one", len(rows))
	}
}
