package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"taskboard/internal/common"
	"taskboard/internal/domain/model"
	"taskboard/internal/domain/repository"
	"taskboard/internal/domain/scope"
)

var (
	errInvalidUserID  = common.NewError(common.ErrBadRequest, "Invalid user ID format")
	errInvalidTaskID  = common.NewError(common.ErrBadRequest, "Invalid task ID format")
	errDeleteSelf     = common.NewError(common.ErrBadRequest, "Cannot delete your own account")
	errDeactivateSelf = common.NewError(common.ErrBadRequest, "Cannot deactivate your own account")
)

// AdminService is the unrestricted counterpart of TaskService plus user
// management. Its callers are expected to have passed the admin middleware.
type AdminService struct {
	userRepo repository.UserRepository
	taskRepo repository.TaskRepository
	tasks    *TaskService
	stats    StatsCache
}

func NewAdminService(userRepo repository.UserRepository, taskRepo repository.TaskRepository, tasks *TaskService, stats StatsCache) *AdminService {
	if stats == nil {
		stats = noopStatsCache{}
	}
	return &AdminService{userRepo: userRepo, taskRepo: taskRepo, tasks: tasks, stats: stats}
}

// UpdateUserRequest lists the user fields an admin may change. Password and id
// are not settable through it.
type UpdateUserRequest struct {
	Username  *string `json:"username" validate:"omitnil,min=3,max=30,username"`
	Email     *string `json:"email" validate:"omitnil,email"`
	FirstName *string `json:"firstName" validate:"omitnil,max=50"`
	LastName  *string `json:"lastName" validate:"omitnil,max=50"`
	Role      *string `json:"role" validate:"omitnil,oneof=user admin"`
	IsActive  *bool   `json:"isActive"`
}

type UserListResponse struct {
	Users       []model.User `json:"users"`
	Total       int          `json:"total"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
}

type UserDetailResponse struct {
	User      *model.User     `json:"user"`
	TaskStats model.TaskStats `json:"taskStats"`
}

type AdminTaskListResponse struct {
	Tasks       []model.Task `json:"tasks"`
	Total       int          `json:"total"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
}

func (s *AdminService) ListUsers(ctx context.Context, filter model.UserFilter, page model.Page) (*UserListResponse, error) {
	users, total, err := s.userRepo.List(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return &UserListResponse{
		Users:       users,
		Total:       total,
		TotalPages:  page.TotalPages(total),
		CurrentPage: page.Number,
	}, nil
}

func (s *AdminService) findUser(ctx context.Context, id string) (*model.User, error) {
	if !validID(id) {
		return nil, errInvalidUserID
	}
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

func (s *AdminService) GetUser(ctx context.Context, id string) (*UserDetailResponse, error) {
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.taskRepo.StatsForOwner(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute task stats: %w", err)
	}
	return &UserDetailResponse{User: user, TaskStats: stats}, nil
}

func (s *AdminService) UpdateUser(ctx context.Context, caller scope.Caller, id string, req UpdateUserRequest) (*model.User, error) {
	if !validID(id) {
		return nil, errInvalidUserID
	}

	var extra []common.FieldError
	names := []struct {
		field string
		value *string
	}{{"firstName", req.FirstName}, {"lastName", req.LastName}}
	for _, n := range names {
		if n.value == nil {
			continue
		}
		*n.value = strings.TrimSpace(*n.value)
		if *n.value == "" {
			extra = append(extra, common.FieldError{Field: n.field, Message: "is required"})
		}
	}
	if req.Username != nil {
		*req.Username = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil {
		*req.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if err := common.Validate(req, extra...); err != nil {
		return nil, err
	}
	if id == caller.ID && req.IsActive != nil && !*req.IsActive {
		return nil, errDeactivateSelf
	}

	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, common.ErrConflict):
			return nil, errUserExists
		case errors.Is(err, common.ErrNotFound):
			return nil, errUserNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	invalidateStats(ctx, s.stats)
	return user, nil
}

// DeleteUser removes the user together with every task they own.
func (s *AdminService) DeleteUser(ctx context.Context, caller scope.Caller, id string) error {
	if !validID(id) {
		return errInvalidUserID
	}
	if id == caller.ID {
		return errDeleteSelf
	}
	if err := s.userRepo.DeleteWithTasks(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return errUserNotFound
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	invalidateStats(ctx, s.stats)
	return nil
}

func (s *AdminService) ToggleUserStatus(ctx context.Context, caller scope.Caller, id string) (*model.User, error) {
	if !validID(id) {
		return nil, errInvalidUserID
	}
	if id == caller.ID {
		return nil, errDeactivateSelf
	}
	user, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.IsActive = !user.IsActive
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to toggle user status: %w", err)
	}
	invalidateStats(ctx, s.stats)
	return user, nil
}

// Dashboard returns aggregate counts over all users and tasks. A cached value
// is used when available; cache failures fall through to the repositories.
// Counts computed while a write invalidated the cache are returned but not stored.
func (s *AdminService) Dashboard(ctx context.Context) (*model.DashboardStats, error) {
	cached, ok, err := s.stats.Get(ctx)
	if err != nil {
		slog.WarnContext(ctx, "stats cache read failed", "error", err)
	}
	if ok {
		return cached, nil
	}

	version, err := s.stats.Version(ctx)
	cacheable := err == nil
	if err != nil {
		slog.WarnContext(ctx, "stats cache version read failed", "error", err)
	}

	users, err := s.userRepo.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	tasks, err := s.taskRepo.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	stats := &model.DashboardStats{Users: users, Tasks: tasks}
	if cacheable {
		if err := s.stats.Set(ctx, stats, version); err != nil {
			slog.WarnContext(ctx, "stats cache write failed", "error", err)
		}
	}
	return stats, nil
}

// ListTasks runs through the scope resolver like every other task query; for
// an admin caller the requested filter, owner included, passes unchanged.
func (s *AdminService) ListTasks(ctx context.Context, caller scope.Caller, requested model.TaskFilter, page model.Page) (*AdminTaskListResponse, error) {
	if requested.OwnerID != nil && !validID(*requested.OwnerID) {
		// no user can own a task under a malformed id
		return &AdminTaskListResponse{Tasks: []model.Task{}, CurrentPage: page.Number}, nil
	}
	res, err := s.tasks.List(ctx, caller, requested, model.DefaultTaskSort, page)
	if err != nil {
		return nil, err
	}
	return &AdminTaskListResponse{
		Tasks:       res.Tasks,
		Total:       res.Total,
		TotalPages:  res.TotalPages,
		CurrentPage: res.CurrentPage,
	}, nil
}

func (s *AdminService) UpdateTask(ctx context.Context, caller scope.Caller, id string, req UpdateTaskRequest) (*model.Task, error) {
	if !validID(id) {
		return nil, errInvalidTaskID
	}
	return s.tasks.Update(ctx, caller, id, req)
}

func (s *AdminService) DeleteTask(ctx context.Context, caller scope.Caller, id string) error {
	if !validID(id) {
		return errInvalidTaskID
	}
	return s.tasks.Delete(ctx, caller, id)
}
