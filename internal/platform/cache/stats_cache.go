package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"taskboard/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

const (
	dashboardStatsKey   = "taskboard:stats:dashboard"
	dashboardVersionKey = "taskboard:stats:dashboard:version"
)

// setIfVersion stores the stats only while the version key still holds the
// version they were computed under.
var setIfVersion = redis.NewScript(`
	local current = redis.call("GET", KEYS[2]) or "0"
	if current ~= ARGV[2] then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
	return 1
`)

// invalidate drops the stats and bumps the version in one step.
var invalidate = redis.NewScript(`
	redis.call("DEL", KEYS[1])
	return redis.call("INCR", KEYS[2])
`)

// RedisStatsCache stores the admin dashboard aggregates as a single JSON value
// with a TTL, next to a version counter bumped on every invalidation.
type RedisStatsCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStatsCache(rdb *redis.Client, ttl time.Duration) *RedisStatsCache {
	return &RedisStatsCache{rdb: rdb, ttl: ttl}
}

func (c *RedisStatsCache) Get(ctx context.Context) (*model.DashboardStats, bool, error) {
	raw, err := c.rdb.Get(ctx, dashboardStatsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("RedisStatsCache.Get: %w", err)
	}
	var stats model.DashboardStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false, fmt.Errorf("RedisStatsCache.Get decode: %w", err)
	}
	return &stats, true, nil
}

func (c *RedisStatsCache) Version(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, dashboardVersionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("RedisStatsCache.Version: %w", err)
	}
	return v, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, stats *model.DashboardStats, version int64) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("RedisStatsCache.Set encode: %w", err)
	}
	keys := []string{dashboardStatsKey, dashboardVersionKey}
	err = setIfVersion.Run(ctx, c.rdb, keys, raw, strconv.FormatInt(version, 10), c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("RedisStatsCache.Set: %w", err)
	}
	return nil
}

func (c *RedisStatsCache) Invalidate(ctx context.Context) error {
	if err := invalidate.Run(ctx, c.rdb, []string{dashboardStatsKey, dashboardVersionKey}).Err(); err != nil {
		return fmt.Errorf("RedisStatsCache.Invalidate: %w", err)
	}
	return nil
}
