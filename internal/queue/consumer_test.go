package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/lumenlabs/lumen-analytics/internal/clients/redis"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/ctxutil"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	apperr "github.com/lumenlabs/lumen-analytics/internal/pkg/errors"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return l
}

type fakeQueue struct {
	mu    sync.Mutex
	acked []string
}

func (f *fakeQueue) ReadBatch(ctx context.Context, count int, block time.Duration) ([]redisclient.TaskMessage, error) {
	return nil, nil
}

func (f *fakeQueue) Ack(ctx context.Context, messageIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, messageIDs...)
	return nil
}

func (f *fakeQueue) ackedSet() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]bool{}
	for _, id := range f.acked {
		out[id] = true
	}
	return out
}

type fakeTaskRepo struct {
	mu     sync.Mutex
	rows   map[uuid.UUID]*types.AnalyticsTask
	status map[uuid.UUID]string
	getErr error
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{
		rows:   map[uuid.UUID]*types.AnalyticsTask{},
		status: map[uuid.UUID]string{},
	}
}

func (f *fakeTaskRepo) Create(dbc dbctx.Context, tasks []*types.AnalyticsTask) ([]*types.AnalyticsTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, task := range tasks {
		f.rows[task.ID] = task
	}
	return tasks, nil
}

func (f *fakeTaskRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.AnalyticsTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []*types.AnalyticsTask
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeTaskRepo) MarkProcessing(dbc dbctx.Context, id uuid.UUID) error {
	f.setStatus(id, types.TaskStatusProcessing)
	return nil
}

func (f *fakeTaskRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, duration time.Duration) error {
	f.setStatus(id, types.TaskStatusCompleted)
	return nil
}

func (f *fakeTaskRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, errText string) error {
	f.setStatus(id, types.TaskStatusFailed)
	return nil
}

func (f *fakeTaskRepo) setStatus(id uuid.UUID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id] = status
}

func (f *fakeTaskRepo) statusOf(id uuid.UUID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[id]
}

type fakeBatchLogRepo struct {
	mu   sync.Mutex
	rows []*types.BatchLog
}

func (f *fakeBatchLogRepo) Create(dbc dbctx.Context, row *types.BatchLog) (*types.BatchLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, row)
	return row, nil
}

type stubHandler struct {
	taskType string
	errs     map[uuid.UUID]error

	mu  sync.Mutex
	ran []uuid.UUID
}

func (h *stubHandler) Type() string { return h.taskType }

func (h *stubHandler) Run(ctx context.Context, task *types.AnalyticsTask) error {
	if _, ok := ctxutil.TenantID(ctx); !ok {
		return apperr.NewValidation("tenant missing from context")
	}
	h.mu.Lock()
	h.ran = append(h.ran, task.ID)
	h.mu.Unlock()
	return h.errs[task.ID]
}

func seedTask(repo *fakeTaskRepo, taskType string) *types.AnalyticsTask {
	studentID, courseID := uuid.New(), uuid.New()
	task := &types.AnalyticsTask{
		ID:        uuid.New(),
		TaskType:  taskType,
		TenantID:  uuid.New(),
		StudentID: &studentID,
		CourseID:  &courseID,
		Status:    types.TaskStatusPending,
	}
	repo.rows[task.ID] = task
	return task
}

func message(task *types.AnalyticsTask, messageID string) redisclient.TaskMessage {
	return redisclient.TaskMessage{
		MessageID: messageID,
		Envelope: redisclient.TaskEnvelope{
			TaskID:   task.ID.String(),
			TaskType: task.TaskType,
			TenantID: task.TenantID.String(),
		},
	}
}

func TestProcessBatchAcksSuccessesAndTerminalFailures(t *testing.T) {
	q := &fakeQueue{}
	tasks := newFakeTaskRepo()
	batchLogs := &fakeBatchLogRepo{}

	ok := seedTask(tasks, "stub")
	terminal := seedTask(tasks, "stub")
	transient := seedTask(tasks, "stub")

	handler := &stubHandler{
		taskType: "stub",
		errs: map[uuid.UUID]error{
			terminal.ID:  apperr.NewValidation("payload missing required field"),
			transient.ID: apperr.NewTransient("downstream timeout", errors.New("deadline exceeded")),
		},
	}
	registry := NewRegistry()
	if err := registry.Register(handler); err != nil {
		t.Fatalf("register: %v", err)
	}

	consumer := NewConsumer(q, tasks, batchLogs, registry, Config{}, testLogger(t))
	msgs := []redisclient.TaskMessage{
		message(ok, "1-0"),
		message(terminal, "1-1"),
		message(transient, "1-2"),
	}
	if err := consumer.ProcessBatch(context.Background(), msgs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	acked := q.ackedSet()
	if !acked["1-0"] {
		t.Fatal("successful task must be acknowledged")
	}
	if !acked["1-1"] {
		t.Fatal("terminal failure must be acknowledged out of the retry path")
	}
	if acked["1-2"] {
		t.Fatal("retryable failure must stay pending for redelivery")
	}

	if got := tasks.statusOf(ok.ID); got != types.TaskStatusCompleted {
		t.Fatalf("ok task status = %s, want completed", got)
	}
	if got := tasks.statusOf(terminal.ID); got != types.TaskStatusFailed {
		t.Fatalf("terminal task status = %s, want failed", got)
	}
	if got := tasks.statusOf(transient.ID); got != types.TaskStatusFailed {
		t.Fatalf("transient task status = %s, want failed", got)
	}

	if len(batchLogs.rows) != 1 {
		t.Fatalf("got %d batch log rows, want 1", len(batchLogs.rows))
	}
	log := batchLogs.rows[0]
	if log.TotalTasks != 3 || log.Processed != 1 || log.Failed != 2 {
		t.Fatalf("batch log = total %d processed %d failed %d, want 3/1/2", log.TotalTasks, log.Processed, log.Failed)
	}
}

func TestProcessBatchAbortsWhenStoreIsDown(t *testing.T) {
	q := &fakeQueue{}
	tasks := newFakeTaskRepo()
	tasks.getErr = errors.New("connection refused")
	batchLogs := &fakeBatchLogRepo{}

	consumer := NewConsumer(q, tasks, batchLogs, NewRegistry(), Config{}, testLogger(t))
	task := &types.AnalyticsTask{ID: uuid.New(), TaskType: "stub", TenantID: uuid.New()}
	err := consumer.ProcessBatch(context.Background(), []redisclient.TaskMessage{message(task, "1-0")})
	if err == nil {
		t.Fatal("expected an error when the task store is unavailable")
	}
	if !apperr.Retryable(err) {
		t.Fatalf("store outage must be retryable: %v", err)
	}
	if len(q.acked) != 0 {
		t.Fatal("no message may be acknowledged when dispatch never began")
	}
	if len(batchLogs.rows) != 0 {
		t.Fatal("no batch log row for an aborted batch")
	}
}

func TestProcessBatchUnknownTaskTypeIsTerminal(t *testing.T) {
	q := &fakeQueue{}
	tasks := newFakeTaskRepo()
	batchLogs := &fakeBatchLogRepo{}

	unknown := seedTask(tasks, "no_such_type")
	consumer := NewConsumer(q, tasks, batchLogs, NewRegistry(), Config{}, testLogger(t))
	if err := consumer.ProcessBatch(context.Background(), []redisclient.TaskMessage{message(unknown, "1-0")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !q.ackedSet()["1-0"] {
		t.Fatal("a task nobody can handle must be acknowledged, not redelivered forever")
	}
	if got := tasks.statusOf(unknown.ID); got != types.TaskStatusFailed {
		t.Fatalf("status = %s, want failed", got)
	}
}

func TestProcessBatchMissingRowIsTerminal(t *testing.T) {
	q := &fakeQueue{}
	tasks := newFakeTaskRepo()
	batchLogs := &fakeBatchLogRepo{}

	orphan := &types.AnalyticsTask{ID: uuid.New(), TaskType: "stub", TenantID: uuid.New()}
	consumer := NewConsumer(q, tasks, batchLogs, NewRegistry(), Config{}, testLogger(t))
	if err := consumer.ProcessBatch(context.Background(), []redisclient.TaskMessage{message(orphan, "1-0")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.ackedSet()["1-0"] {
		t.Fatal("a message without a durable row can never succeed and must be acknowledged")
	}
}

type panicHandler struct{}

func (panicHandler) Type() string { return "panicky" }
func (panicHandler) Run(ctx context.Context, task *types.AnalyticsTask) error {
	panic("boom")
}

func TestProcessBatchRecoversPanicsAsRetryable(t *testing.T) {
	q := &fakeQueue{}
	tasks := newFakeTaskRepo()
	batchLogs := &fakeBatchLogRepo{}

	task := seedTask(tasks, "panicky")
	registry := NewRegistry()
	if err := registry.Register(panicHandler{}); err != nil {
		t.Fatalf("register: %v", err)
	}

	consumer := NewConsumer(q, tasks, batchLogs, registry, Config{}, testLogger(t))
	if err := consumer.ProcessBatch(context.Background(), []redisclient.TaskMessage{message(task, "1-0")}); err != nil {
		t.Fatalf("a panicking handler must not abort the batch: %v", err)
	}
	if q.ackedSet()["1-0"] {
		t.Fatal("a panicked task must stay pending for redelivery")
	}
	if len(batchLogs.rows) != 1 || batchLogs.rows[0].Failed != 1 {
		t.Fatal("the panic must be counted as a failure in the batch log")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&stubHandler{taskType: "stub"}); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := registry.Register(&stubHandler{taskType: "stub"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := registry.Register(&stubHandler{}); err == nil {
		t.Fatal("expected empty task type to fail")
	}
}
