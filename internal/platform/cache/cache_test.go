package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"taskboard/internal/domain/model"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to the Redis named by TEST_REDIS_ADDR and flushes the
// selected database. Tests are skipped when it is unset.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestRedisStatsCache(t *testing.T) {
	ctx := context.Background()
	c := NewRedisStatsCache(testClient(t), time.Minute)

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := &model.DashboardStats{
		Users: model.UserCounts{TotalUsers: 3, ActiveUsers: 2, AdminUsers: 1},
		Tasks: model.TaskCounts{TotalTasks: 5, CompletedTasks: 2, PendingTasks: 3},
	}
	v, err := c.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, want, v))

	got, ok, err := c.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, c.Invalidate(ctx))
	_, ok, err = c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStatsCacheRejectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	c := NewRedisStatsCache(testClient(t), time.Minute)

	v, err := c.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx))

	require.NoError(t, c.Set(ctx, &model.DashboardStats{}, v))
	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "stats read before an invalidation are dropped")

	v, err = c.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestRedisLoginLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewRedisLoginLimiter(testClient(t), 3, time.Minute)
	key := "alice@example.com|127.0.0.1"

	for i := 0; i < 2; i++ {
		require.NoError(t, l.RecordFailure(ctx, key))
	}
	blocked, err := l.Blocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, l.RecordFailure(ctx, key))
	blocked, err = l.Blocked(ctx, key)
	require.NoError(t, err)
	assert.True(t, blocked)

	other, err := l.Blocked(ctx, "alice@example.com|10.0.0.1")
	require.NoError(t, err)
	assert.False(t, other)

	require.NoError(t, l.Reset(ctx, key))
	blocked, err = l.Blocked(ctx, key)
	require.NoError(t, err)
	assert.False(t, blocked)
}
