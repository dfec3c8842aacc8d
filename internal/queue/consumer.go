package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	redisclient "github.com/lumenlabs/lumen-analytics/internal/clients/redis"
	repos "github.com/lumenlabs/lumen-analytics/internal/data/repos/analytics"
	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/ctxutil"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/dbctx"
	apperr "github.com/lumenlabs/lumen-analytics/internal/pkg/errors"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

// Queue is the read/ack side of the transport the consumer drains.
type Queue interface {
	ReadBatch(ctx context.Context, count int, block time.Duration) ([]redisclient.TaskMessage, error)
	Ack(ctx context.Context, messageIDs ...string) error
}

// Enqueuer is the producing side, used by handlers that emit follow-up
// tasks.
type Enqueuer interface {
	Enqueue(ctx context.Context, env redisclient.TaskEnvelope) error
}

type Config struct {
	// ReadCount is the maximum batch size pulled per read.
	ReadCount int
	// Block is how long one read waits for entries before returning.
	Block time.Duration
	// GroupSize splits a batch into sequential groups of this many tasks.
	GroupSize int
	// Concurrency bounds how many tasks of a group run at once.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		ReadCount:   20,
		Block:       5 * time.Second,
		GroupSize:   5,
		Concurrency: 5,
	}
}

// Consumer drains the task stream with at-least-once semantics.
// Successes and terminal failures are acknowledged; retryable failures
// stay pending so the broker redelivers them.
type Consumer struct {
	queue     Queue
	tasks     repos.TaskRepo
	batchLogs repos.BatchLogRepo
	registry  *Registry
	cfg       Config
	log       *logger.Logger
}

func NewConsumer(q Queue, tasks repos.TaskRepo, batchLogs repos.BatchLogRepo, registry *Registry, cfg Config, baseLog *logger.Logger) *Consumer {
	def := DefaultConfig()
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = def.ReadCount
	}
	if cfg.Block <= 0 {
		cfg.Block = def.Block
	}
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = def.GroupSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	return &Consumer{
		queue:     q,
		tasks:     tasks,
		batchLogs: batchLogs,
		registry:  registry,
		cfg:       cfg,
		log:       baseLog.With("component", "TaskConsumer"),
	}
}

// Run reads and processes batches until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Info("task consumer started",
		"read_count", c.cfg.ReadCount,
		"group_size", c.cfg.GroupSize,
		"concurrency", c.cfg.Concurrency,
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := c.queue.ReadBatch(ctx, c.cfg.ReadCount, c.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn("queue read failed", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if len(msgs) == 0 {
			continue
		}
		if err := c.ProcessBatch(ctx, msgs); err != nil {
			// Nothing was acknowledged; the whole batch redelivers.
			c.log.Warn("batch aborted before dispatch", "error", err, "batch_size", len(msgs))
		}
	}
}

type taskResult struct {
	msg      redisclient.TaskMessage
	taskType string
	err      error
}

// ProcessBatch loads the batch's durable rows, runs the tasks in
// bounded groups, and acknowledges everything except retryable
// failures. A returned error means dispatch never began and no message
// was acknowledged.
func (c *Consumer) ProcessBatch(ctx context.Context, msgs []redisclient.TaskMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	start := time.Now()

	var ids []uuid.UUID
	for _, m := range msgs {
		if id, err := uuid.Parse(m.Envelope.TaskID); err == nil {
			ids = append(ids, id)
		}
	}
	taskRows, err := c.tasks.GetByIDs(dbctx.New(ctx), ids)
	if err != nil {
		return apperr.NewTransient("load task batch", err)
	}
	rows := make(map[uuid.UUID]*types.AnalyticsTask, len(taskRows))
	for _, row := range taskRows {
		rows[row.ID] = row
	}

	results := make([]taskResult, len(msgs))
	for offset := 0; offset < len(msgs); offset += c.cfg.GroupSize {
		end := offset + c.cfg.GroupSize
		if end > len(msgs) {
			end = len(msgs)
		}
		var g errgroup.Group
		g.SetLimit(c.cfg.Concurrency)
		for i := offset; i < end; i++ {
			i := i
			g.Go(func() error {
				taskType, runErr := c.runTask(ctx, msgs[i], rows)
				results[i] = taskResult{msg: msgs[i], taskType: taskType, err: runErr}
				return nil
			})
		}
		_ = g.Wait()
	}

	c.finishBatch(ctx, results, time.Since(start))
	return nil
}

// runTask resolves the durable row, dispatches to the handler, and
// records the terminal status. A recovered panic counts as a transient
// failure so the message redelivers.
func (c *Consumer) runTask(ctx context.Context, msg redisclient.TaskMessage, rows map[uuid.UUID]*types.AnalyticsTask) (taskType string, err error) {
	taskType = msg.Envelope.TaskType
	defer func() {
		if r := recover(); r != nil {
			err = apperr.NewTransient("task handler panic", fmt.Errorf("%v", r))
			c.log.Error("task handler panicked", "task_id", msg.Envelope.TaskID, "panic", r)
		}
	}()

	taskID, perr := uuid.Parse(msg.Envelope.TaskID)
	if perr != nil {
		return taskType, apperr.NewValidation("invalid task id %q", msg.Envelope.TaskID)
	}
	row, ok := rows[taskID]
	if !ok {
		return taskType, apperr.NewValidation("no task row for id %s", taskID)
	}
	taskType = row.TaskType
	if row.TenantID == uuid.Nil {
		return taskType, apperr.NewValidation("task %s has no tenant", taskID)
	}
	ctx = ctxutil.WithTenantID(ctx, row.TenantID)

	handler, ok := c.registry.Get(row.TaskType)
	if !ok {
		verr := apperr.NewValidation("no handler registered for task type %q", row.TaskType)
		c.markFailed(ctx, taskID, verr)
		return taskType, verr
	}

	if merr := c.tasks.MarkProcessing(dbctx.New(ctx), taskID); merr != nil {
		return taskType, apperr.NewTransient("mark processing", merr)
	}

	began := time.Now()
	if herr := handler.Run(ctx, row); herr != nil {
		c.markFailed(ctx, taskID, herr)
		return taskType, herr
	}
	if cerr := c.tasks.MarkCompleted(dbctx.New(ctx), taskID, time.Since(began)); cerr != nil {
		// The work itself is idempotent, so redelivery is safe.
		return taskType, apperr.NewTransient("mark completed", cerr)
	}
	return taskType, nil
}

func (c *Consumer) markFailed(ctx context.Context, taskID uuid.UUID, cause error) {
	if err := c.tasks.MarkFailed(dbctx.New(ctx), taskID, cause.Error()); err != nil {
		c.log.Warn("failed to record task failure", "task_id", taskID, "error", err)
	}
}

// finishBatch acknowledges successes and terminal failures, leaves
// retryable failures pending, and writes one batch log row.
func (c *Consumer) finishBatch(ctx context.Context, results []taskResult, elapsed time.Duration) {
	var ackIDs []string
	processed, failed := 0, 0
	typeCounts := map[string]int{}
	type errEntry struct {
		TaskID string `json:"task_id"`
		Error  string `json:"error"`
	}
	var errList []errEntry

	for _, r := range results {
		if r.taskType != "" {
			typeCounts[r.taskType]++
		}
		if r.err == nil {
			processed++
			ackIDs = append(ackIDs, r.msg.MessageID)
			continue
		}
		failed++
		errList = append(errList, errEntry{TaskID: r.msg.Envelope.TaskID, Error: r.err.Error()})
		if !apperr.Retryable(r.err) {
			// Terminal failure: recorded on the row, acked out of the
			// retry path.
			ackIDs = append(ackIDs, r.msg.MessageID)
		}
	}

	if err := c.queue.Ack(ctx, ackIDs...); err != nil {
		c.log.Warn("batch ack failed, redelivery will repeat idempotent work", "error", err)
	}

	counts, _ := json.Marshal(typeCounts)
	errs, _ := json.Marshal(errList)
	if _, err := c.batchLogs.Create(dbctx.New(ctx), &types.BatchLog{
		TotalTasks: len(results),
		Processed:  processed,
		Failed:     failed,
		TypeCounts: datatypes.JSON(counts),
		Errors:     datatypes.JSON(errs),
		DurationMs: elapsed.Milliseconds(),
	}); err != nil {
		c.log.Warn("batch log write failed", "error", err)
	}

	c.log.Info("batch processed",
		"total", len(results),
		"processed", processed,
		"failed", failed,
		"duration_ms", elapsed.Milliseconds(),
	)
}
