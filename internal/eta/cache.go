package eta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsKeyPrefix = "walkin:stats:"

// StatsCache memoizes service statistics for a short window.
type StatsCache interface {
	Get(ctx context.Context, key string) (ServiceStats, bool, error)
	Set(ctx context.Context, key string, stats ServiceStats, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type RedisStatsCache struct {
	client *redis.Client
}

func NewRedisStatsCache(client *redis.Client) *RedisStatsCache {
	return &RedisStatsCache{client: client}
}

func (c *RedisStatsCache) Get(ctx context.Context, key string) (ServiceStats, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ServiceStats{}, false, nil
		}
		return ServiceStats{}, false, fmt.Errorf("get stats from cache: %w", err)
	}
	var stats ServiceStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return ServiceStats{}, false, fmt.Errorf("decode cached stats: %w", err)
	}
	return stats, true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, key string, stats ServiceStats, ttl time.Duration) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("set stats in cache: %w", err)
	}
	return nil
}

func (c *RedisStatsCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete cached stats: %w", err)
	}
	return nil
}

func statsKey(queueID, date string) string {
	return statsKeyPrefix + queueID + ":" + date
}
