package app

import (
	"fmt"
	"strings"

	"github.com/lumenlabs/lumen-analytics/internal/clients/openai"
	"github.com/lumenlabs/lumen-analytics/internal/clients/redis"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

type Clients struct {
	TaskQueue      redis.TaskQueue
	BenchmarkCache *redis.BenchmarkCache
	Reranker       *openai.Reranker
}

func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	taskQueue, err := redis.NewTaskQueue(redis.QueueConfig{
		Addr:     cfg.RedisAddr,
		Stream:   cfg.TaskStream,
		Group:    cfg.ConsumerGroup,
		Consumer: cfg.ConsumerName,
	}, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init task queue: %w", err)
	}

	cache, err := redis.NewBenchmarkCache(cfg.RedisAddr, log)
	if err != nil {
		_ = taskQueue.Close()
		return Clients{}, fmt.Errorf("init benchmark cache: %w", err)
	}

	// Optional: recommendations keep their rule-based order without it.
	var reranker *openai.Reranker
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		r, err := openai.NewReranker(cfg.OpenAIAPIKey, cfg.OpenAIModel, log)
		if err != nil {
			_ = cache.Close()
			_ = taskQueue.Close()
			return Clients{}, fmt.Errorf("init reranker: %w", err)
		}
		reranker = r
	}

	return Clients{
		TaskQueue:      taskQueue,
		BenchmarkCache: cache,
		Reranker:       reranker,
	}, nil
}

func (c Clients) Close() {
	if c.BenchmarkCache != nil {
		_ = c.BenchmarkCache.Close()
	}
	if c.TaskQueue != nil {
		_ = c.TaskQueue.Close()
	}
}
