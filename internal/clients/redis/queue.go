package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

// TaskEnvelope is the wire shape of one queued analytics task. The
// durable AnalyticsTask row is created by the producer; the envelope
// carries just enough to locate and dispatch it.
type TaskEnvelope struct {
	TaskID       string                 `json:"taskId"`
	TaskType     string                 `json:"taskType"`
	TenantID     string                 `json:"tenantId"`
	StudentID    string                 `json:"studentId,omitempty"`
	CourseID     string                 `json:"courseId,omitempty"`
	AssessmentID string                 `json:"assessmentId,omitempty"`
	Priority     int                    `json:"priority"`
	TaskData     map[string]interface{} `json:"taskData,omitempty"`
	RetryCount   int                    `json:"retryCount"`
}

// TaskMessage is one delivered queue entry: the envelope plus the
// broker's message id used for acknowledgement.
type TaskMessage struct {
	MessageID string
	Envelope  TaskEnvelope
}

// TaskQueue is a Redis Streams consumer-group transport. At-least-once:
// unacknowledged entries stay pending and the broker redelivers them;
// acknowledging removes a message from the retry path.
type TaskQueue interface {
	ReadBatch(ctx context.Context, count int, block time.Duration) ([]TaskMessage, error)
	Ack(ctx context.Context, messageIDs ...string) error
	Enqueue(ctx context.Context, env TaskEnvelope) error
	Close() error
}

type taskQueue struct {
	log      *logger.Logger
	rdb      *goredis.Client
	stream   string
	group    string
	consumer string
}

type QueueConfig struct {
	Addr     string
	Stream   string
	Group    string
	Consumer string
}

func NewTaskQueue(cfg QueueConfig, baseLog *logger.Logger) (TaskQueue, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if cfg.Stream == "" {
		cfg.Stream = "analytics:tasks"
	}
	if cfg.Group == "" {
		cfg.Group = "analytics-workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "worker-1"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	// Idempotent group creation; BUSYGROUP means it already exists.
	if err := rdb.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err(); err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		_ = rdb.Close()
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &taskQueue{
		log:      baseLog.With("client", "RedisTaskQueue"),
		rdb:      rdb,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
	}, nil
}

func (q *taskQueue) ReadBatch(ctx context.Context, count int, block time.Duration) ([]TaskMessage, error) {
	res, err := q.rdb.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var out []TaskMessage
	for _, stream := range res {
		for _, msg := range stream.Messages {
			raw, ok := msg.Values["envelope"].(string)
			if !ok {
				q.log.Warn("queue entry missing envelope field, acking", "message_id", msg.ID)
				_ = q.Ack(ctx, msg.ID)
				continue
			}
			var env TaskEnvelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				// A payload that cannot even decode will never succeed;
				// ack it out of the retry path.
				q.log.Warn("undecodable queue entry, acking", "message_id", msg.ID, "error", err)
				_ = q.Ack(ctx, msg.ID)
				continue
			}
			out = append(out, TaskMessage{MessageID: msg.ID, Envelope: env})
		}
	}
	return out, nil
}

func (q *taskQueue) Ack(ctx context.Context, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return q.rdb.XAck(ctx, q.stream, q.group, messageIDs...).Err()
}

func (q *taskQueue) Enqueue(ctx context.Context, env TaskEnvelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return q.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{"envelope": string(raw)},
	}).Err()
}

func (q *taskQueue) Close() error {
	return q.rdb.Close()
}
