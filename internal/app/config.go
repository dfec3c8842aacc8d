package app

import (
	"os"
	"time"

	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
	"github.com/lumenlabs/lumen-analytics/internal/queue"
	"github.com/lumenlabs/lumen-analytics/internal/utils"
)

type Config struct {
	RedisAddr     string
	TaskStream    string
	ConsumerGroup string
	ConsumerName  string

	Consumer queue.Config

	OpenAIAPIKey string
	OpenAIModel  string
}

func LoadConfig(log *logger.Logger) Config {
	consumerName := utils.GetEnv("CONSUMER_NAME", defaultConsumerName(), log)
	return Config{
		RedisAddr:     utils.GetEnv("REDIS_ADDR", "localhost:6379", log),
		TaskStream:    utils.GetEnv("TASK_STREAM", "analytics:tasks", log),
		ConsumerGroup: utils.GetEnv("CONSUMER_GROUP", "analytics-workers", log),
		ConsumerName:  consumerName,
		Consumer: queue.Config{
			ReadCount:   utils.GetEnvAsInt("BATCH_READ_COUNT", 20, log),
			Block:       time.Duration(utils.GetEnvAsInt("BATCH_BLOCK_SECONDS", 5, log)) * time.Second,
			GroupSize:   utils.GetEnvAsInt("BATCH_GROUP_SIZE", 5, log),
			Concurrency: utils.GetEnvAsInt("BATCH_CONCURRENCY", 5, log),
		},
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  utils.GetEnv("OPENAI_MODEL", "", log),
	}
}

func defaultConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker-1"
	}
	return host
}
