package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskboard/internal/common/security"
	"taskboard/internal/domain/model"
	"taskboard/internal/domain/repository"
	"taskboard/internal/domain/scope"
	"taskboard/internal/platform/config"

	"github.com/stretchr/testify/require"
)

func init() {
	config.AppConfig = &config.Config{JWTKey: []byte("service-test-secret"), JWTExp: time.Hour}
	security.InitJWT()
}

// memoryStatsCache records how often it was invalidated.
type memoryStatsCache struct {
	mu          sync.Mutex
	stats       *model.DashboardStats
	version     int64
	invalidated int
}

func (c *memoryStatsCache) Get(context.Context) (*model.DashboardStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats, c.stats != nil, nil
}

func (c *memoryStatsCache) Version(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, nil
}

func (c *memoryStatsCache) Set(_ context.Context, s *model.DashboardStats, version int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version == c.version {
		c.stats = s
	}
	return nil
}

func (c *memoryStatsCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = nil
	c.version++
	c.invalidated++
	return nil
}

type memoryLimiter struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
}

func newMemoryLimiter(limit int) *memoryLimiter {
	return &memoryLimiter{max: limit, failures: map[string]int{}}
}

func (l *memoryLimiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[key] >= l.max, nil
}

func (l *memoryLimiter) RecordFailure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key]++
	return nil
}

func (l *memoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
	return nil
}

type fixture struct {
	store *repository.MemoryStore
	cache *memoryStatsCache
	auth  *AuthService
	tasks *TaskService
	admin *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	cache := &memoryStatsCache{}
	tasks := NewTaskService(store.Tasks(), cache)
	return &fixture{
		store: store,
		cache: cache,
		auth:  NewAuthService(store.Users(), newMemoryLimiter(3), cache),
		tasks: tasks,
		admin: NewAdminService(store.Users(), store.Tasks(), tasks, cache),
	}
}

func (f *fixture) register(t *testing.T, username string) scope.Caller {
	t.Helper()
	res, err := f.auth.Register(context.Background(), RegisterRequest{
		Username:  username,
		Email:     username + "@example.com",
		Password:  "Secret123",
		FirstName: "First",
		LastName:  "Last",
	})
	require.NoError(t, err)
	return scope.Caller{ID: res.User.ID, Role: res.User.Role}
}

func (f *fixture) registerAdmin(t *testing.T, username string) scope.Caller {
	t.Helper()
	c := f.register(t, username)
	user, err := f.store.Users().FindByID(context.Background(), c.ID)
	require.NoError(t, err)
	user.Role = model.RoleAdmin
	require.NoError(t, f.store.Users().Update(context.Background(), user))
	c.Role = model.RoleAdmin
	return c
}

func (f *fixture) createTask(t *testing.T, c scope.Caller, title string, p model.Priority) *model.Task {
	t.Helper()
	task, err := f.tasks.Create(context.Background(), c, CreateTaskRequest{Title: title, Priority: p})
	require.NoError(t, err)
	return task
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
