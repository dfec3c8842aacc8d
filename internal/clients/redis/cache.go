package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
	"github.com/lumenlabs/lumen-analytics/internal/pkg/logger"
)

// BenchmarkCache is a cache-aside layer in front of the benchmark
// table. Entries carry the same TTL as the row's validity window, so a
// cache hit is always still valid.
type BenchmarkCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewBenchmarkCache(addr string, baseLog *logger.Logger) (*BenchmarkCache, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &BenchmarkCache{
		log: baseLog.With("client", "BenchmarkCache"),
		rdb: rdb,
	}, nil
}

func (c *BenchmarkCache) Get(ctx context.Context, key string) (*types.AnonymizedBenchmark, bool, error) {
	raw, err := c.rdb.Get(ctx, key).Result()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	var row types.AnonymizedBenchmark
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		// Corrupt entries are treated as misses and overwritten.
		return nil, false, nil
	}
	return &row, true, nil
}

func (c *BenchmarkCache) Set(ctx context.Context, key string, row *types.AnonymizedBenchmark, ttl time.Duration) error {
	raw, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

func (c *BenchmarkCache) Close() error {
	return c.rdb.Close()
}
