package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"taskboard/internal/app/service"
	"taskboard/internal/common/security"
	"taskboard/internal/domain/repository"
	"taskboard/internal/platform/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

// countingLimiter blocks a key after limit recorded failures.
type countingLimiter struct {
	mu       sync.Mutex
	limit    int
	failures map[string]int
}

func (l *countingLimiter) Blocked(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[key] >= l.limit, nil
}

func (l *countingLimiter) RecordFailure(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key]++
	return nil
}

func (l *countingLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
	return nil
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLimiter(t, nil)
}

func newTestServerWithLimiter(t *testing.T, limiter service.LoginLimiter) *testServer {
	t.Helper()
	config.AppConfig = &config.Config{JWTKey: []byte("router-test-secret"), JWTExp: time.Hour}
	security.InitJWT()

	store := repository.NewMemoryStore()
	authService := service.NewAuthService(store.Users(), limiter, nil)
	taskService := service.NewTaskService(store.Tasks(), nil)
	adminService := service.NewAdminService(store.Users(), store.Tasks(), taskService, nil)
	require.NoError(t, authService.EnsureAdmin(context.Background(), "admin@example.com", "admin", "Admin123"))

	srv := httptest.NewServer(NewRouter(store.Users(), authService, taskService, adminService))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv}
}

// do sends body as JSON and decodes the JSON response into a generic map.
func (s *testServer) do(method, path, token string, body interface{}) (int, map[string]interface{}) {
	s.t.Helper()
	return s.doWithHeaders(method, path, token, body, nil)
}

func (s *testServer) doWithHeaders(method, path, token string, body interface{}, headers map[string]string) (int, map[string]interface{}) {
	s.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *testServer) register(username string) (token, id string) {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":  username,
		"email":     username + "@example.com",
		"password":  "Secret123",
		"firstName": "First",
		"lastName":  "Last",
	})
	require.Equal(s.t, http.StatusCreated, status, body)
	return body["token"].(string), body["user"].(map[string]interface{})["id"].(string)
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	status, body := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(s.t, http.StatusOK, status, body)
	return body["token"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["status"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Access token required", body["error"])
	assert.Equal(t, "Access token required", body["message"])

	status, _ = s.do(http.MethodGet, "/api/tasks", "not.a.jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	userToken, _ := s.register("alice")
	status, body = s.do(http.MethodGet, "/api/admin/dashboard", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", body["error"])
}

func TestLoginThrottleIgnoresForwardedAddress(t *testing.T) {
	s := newTestServerWithLimiter(t, &countingLimiter{limit: 3, failures: map[string]int{}})
	s.register("alice")

	var statuses []int
	for i := 1; i <= 5; i++ {
		status, _ := s.doWithHeaders(http.MethodPost, "/api/auth/login", "",
			map[string]string{"email": "alice@example.com", "password": "wrong"},
			map[string]string{"X-Real-IP": fmt.Sprintf("10.0.0.%d", i)})
		statuses = append(statuses, status)
	}
	assert.Equal(t, []int{401, 401, 401, 429, 429}, statuses)

	status, body := s.doWithHeaders(http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "alice@example.com", "password": "Secret123"},
		map[string]string{"X-Forwarded-For": "192.168.1.50"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "Too many failed login attempts, please try again later", body["message"])
}

func TestTaskScopeEndToEnd(t *testing.T) {
	s := newTestServer(t)
	aliceToken, aliceID := s.register("alice")
	bobToken, _ := s.register("bob")
	adminToken := s.login("admin@example.com", "Admin123")

	status, body := s.do(http.MethodPost, "/api/tasks", aliceToken, map[string]string{"title": "Buy milk", "priority": "low"})
	require.Equal(t, http.StatusCreated, status, body)
	task := body["task"].(map[string]interface{})
	taskID := task["id"].(string)
	assert.Equal(t, aliceID, task["userId"])

	status, body = s.do(http.MethodGet, "/api/tasks/"+taskID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Task not found", body["error"])

	status, body = s.do(http.MethodGet, "/api/tasks/"+taskID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Buy milk", body["task"].(map[string]interface{})["title"])

	// bob's owner filter is ignored
	status, body = s.do(http.MethodGet, "/api/tasks?userId="+aliceID, bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["count"])
	assert.Equal(t, false, body["isAdmin"])

	status, body = s.do(http.MethodGet, "/api/tasks?priority=low&completed=false", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, true, body["isAdmin"])

	status, body = s.do(http.MethodPatch, "/api/tasks/"+taskID+"/toggle", aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Task marked as completed", body["message"])

	status, _ = s.do(http.MethodDelete, "/api/tasks/"+taskID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(http.MethodGet, "/api/tasks/garbage", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestValidationErrorShape(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register("alice")

	status, body := s.do(http.MethodPost, "/api/tasks", token, map[string]string{"priority": "urgent"})
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Validation failed", body["error"])
	errs, ok := body["errors"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, errs)

	status, body = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "Secret123", "firstName": "A", "lastName": "B",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "User with this email or username already exists", body["error"])
}

func TestAdminEndpoints(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login("admin@example.com", "Admin123")
	aliceToken, aliceID := s.register("alice")

	status, body := s.do(http.MethodPost, "/api/tasks", aliceToken, map[string]string{"title": "Report"})
	require.Equal(t, http.StatusCreated, status)
	taskID := body["task"].(map[string]interface{})["id"].(string)

	status, body = s.do(http.MethodGet, "/api/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["users"].(map[string]interface{})["totalUsers"])
	assert.Equal(t, float64(1), body["tasks"].(map[string]interface{})["totalTasks"])

	status, body = s.do(http.MethodGet, "/api/admin/users/"+aliceID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["taskStats"].(map[string]interface{})["total"])

	status, body = s.do(http.MethodGet, "/api/admin/users/xyz", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid user ID format", body["error"])

	status, body = s.do(http.MethodPut, "/api/admin/tasks/xyz", adminToken, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Invalid task ID format", body["error"])

	status, body = s.do(http.MethodPut, "/api/admin/tasks/"+taskID, adminToken, map[string]interface{}{
		"title": "Reviewed", "userId": "00000000-0000-0000-0000-000000000000", "createdBy": "someone",
	})
	require.Equal(t, http.StatusOK, status, body)
	task := body["task"].(map[string]interface{})
	assert.Equal(t, "Reviewed", task["title"])
	assert.Equal(t, aliceID, task["userId"])
	assert.Equal(t, aliceID, task["createdBy"])

	status, body = s.do(http.MethodGet, "/api/admin/tasks?userId="+aliceID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, body = s.do(http.MethodPatch, "/api/admin/users/"+aliceID+"/toggle-status", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User deactivated successfully", body["message"])

	// the deactivated user's existing token stops working
	status, body = s.do(http.MethodGet, "/api/tasks", aliceToken, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Account is deactivated", body["error"])

	status, body = s.do(http.MethodDelete, "/api/admin/users/"+aliceID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User and associated tasks deleted successfully", body["message"])

	status, body = s.do(http.MethodGet, "/api/admin/tasks", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["total"])
}

func TestAdminCannotRemoveSelf(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login("admin@example.com", "Admin123")

	status, body := s.do(http.MethodGet, "/api/auth/profile", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	adminID := body["user"].(map[string]interface{})["id"].(string)

	status, body = s.do(http.MethodDelete, "/api/admin/users/"+adminID, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Cannot delete your own account", body["error"])

	status, body = s.do(http.MethodPatch, "/api/admin/users/"+adminID+"/toggle-status", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Cannot deactivate your own account", body["error"])
}

func TestProfileUpdate(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register("alice")

	status, body := s.do(http.MethodPut, "/api/auth/profile", token, map[string]string{"firstName": "Alicia", "role": "admin"})
	require.Equal(t, http.StatusOK, status)
	user := body["user"].(map[string]interface{})
	assert.Equal(t, "Alicia", user["firstName"])
	assert.Equal(t, "user", user["role"])
	assert.NotContains(t, user, "passwordHash")
}
