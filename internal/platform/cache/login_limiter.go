package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginAttemptsPrefix = "taskboard:login:failures:"

// incrWithTTL increments the counter and starts its window on the first hit,
// so later failures do not extend the block.
var incrWithTTL = redis.NewScript(`
	local n = redis.call("INCR", KEYS[1])
	if n == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return n
`)

// RedisLoginLimiter blocks a key once it has collected maxAttempts failures
// inside window.
type RedisLoginLimiter struct {
	rdb         *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewRedisLoginLimiter(rdb *redis.Client, maxAttempts int, window time.Duration) *RedisLoginLimiter {
	return &RedisLoginLimiter{rdb: rdb, maxAttempts: maxAttempts, window: window}
}

func (l *RedisLoginLimiter) key(k string) string {
	return loginAttemptsPrefix + k
}

func (l *RedisLoginLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Get(ctx, l.key(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("RedisLoginLimiter.Blocked: %w", err)
	}
	return n >= l.maxAttempts, nil
}

func (l *RedisLoginLimiter) RecordFailure(ctx context.Context, key string) error {
	if err := incrWithTTL.Run(ctx, l.rdb, []string{l.key(key)}, l.window.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("RedisLoginLimiter.RecordFailure: %w", err)
	}
	return nil
}

func (l *RedisLoginLimiter) Reset(ctx context.Context, key string) error {
	if err := l.rdb.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("RedisLoginLimiter.Reset: %w", err)
	}
	return nil
}
