// Package redis caches advisory stream listings so the control API can answer
// without a signaling round-trip on every poll.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"webcaster/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient creates a Redis client and verifies connectivity.
func NewClient(address, password string, db, poolSize int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// StreamCache stores listings as JSON values with a TTL. Cache errors are
// treated as misses; the listing stays advisory.
type StreamCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

func NewStreamCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StreamCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamCache{client: client, ttl: ttl, logger: logger.Sugar()}
}

func streamKey(application string) string {
	return "webcaster:streams:" + application
}

func (c *StreamCache) Get(ctx context.Context, application string) ([]domain.StreamItem, bool) {
	raw, err := c.client.Get(ctx, streamKey(application)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Debugw("stream cache read failed", "application", application, "error", err)
		return nil, false
	}

	var items []domain.StreamItem
	if err := json.Unmarshal(raw, &items); err != nil {
		c.logger.Debugw("stream cache entry corrupt", "application", application, "error", err)
		return nil, false
	}
	return items, true
}

func (c *StreamCache) Set(ctx context.Context, application string, items []domain.StreamItem) {
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, streamKey(application), raw, c.ttl).Err(); err != nil {
		c.logger.Debugw("stream cache write failed", "application", application, "error", err)
	}
}
