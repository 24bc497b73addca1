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

	"github.com/google/uuid"
)

// StatsCache holds the latest dashboard aggregates. Invalidate is called after
// every write that changes a count and bumps the cache version; Set only stores
// stats computed under the version the caller read before computing them.
type StatsCache interface {
	Get(ctx context.Context) (*model.DashboardStats, bool, error)
	Version(ctx context.Context) (int64, error)
	Set(ctx context.Context, stats *model.DashboardStats, version int64) error
	Invalidate(ctx context.Context) error
}

type noopStatsCache struct{}

func (noopStatsCache) Get(context.Context) (*model.DashboardStats, bool, error) { return nil, false, nil }
func (noopStatsCache) Version(context.Context) (int64, error)                   { return 0, nil }
func (noopStatsCache) Set(context.Context, *model.DashboardStats, int64) error  { return nil }
func (noopStatsCache) Invalidate(context.Context) error                         { return nil }

func invalidateStats(ctx context.Context, cache StatsCache) {
	if err := cache.Invalidate(ctx); err != nil {
		slog.WarnContext(ctx, "stats cache invalidation failed", "error", err)
	}
}

var errTaskNotFound = common.NewError(common.ErrNotFound, "Task not found")

type TaskService struct {
	taskRepo repository.TaskRepository
	stats    StatsCache
}

// NewTaskService returns a TaskService. A nil cache disables stats invalidation.
func NewTaskService(taskRepo repository.TaskRepository, stats StatsCache) *TaskService {
	if stats == nil {
		stats = noopStatsCache{}
	}
	return &TaskService{taskRepo: taskRepo, stats: stats}
}

type CreateTaskRequest struct {
	Title       string             `json:"title" validate:"required,max=100"`
	Description string             `json:"description" validate:"max=500"`
	Priority    model.Priority     `json:"priority" validate:"oneof=low medium high"`
	DueDate     model.OptionalTime `json:"dueDate"`
}

// UpdateTaskRequest has no id, owner or creator fields, so those keys in a
// request body are dropped during decoding.
type UpdateTaskRequest struct {
	Title       *string            `json:"title" validate:"omitnil,max=100"`
	Description *string            `json:"description" validate:"omitnil,max=500"`
	Priority    *model.Priority    `json:"priority" validate:"omitnil,oneof=low medium high"`
	Completed   *bool              `json:"completed"`
	DueDate     model.OptionalTime `json:"dueDate"`
}

type TaskListResponse struct {
	Tasks       []model.Task `json:"tasks"`
	Count       int          `json:"count"`
	IsAdmin     bool         `json:"isAdmin"`
	Total       int          `json:"total"`
	TotalPages  int          `json:"totalPages"`
	CurrentPage int          `json:"currentPage"`
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func dueDateErrors(d model.OptionalTime) []common.FieldError {
	if d.Invalid {
		return []common.FieldError{{Field: "dueDate", Message: "must be a valid date"}}
	}
	return nil
}

func (s *TaskService) List(ctx context.Context, caller scope.Caller, requested model.TaskFilter, sort model.TaskSort, page model.Page) (*TaskListResponse, error) {
	tasks, total, err := s.taskRepo.List(ctx, scope.Tasks(caller, requested), sort, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	return &TaskListResponse{
		Tasks:       tasks,
		Count:       len(tasks),
		IsAdmin:     caller.IsAdmin(),
		Total:       total,
		TotalPages:  page.TotalPages(total),
		CurrentPage: page.Number,
	}, nil
}

// taskLookupError maps every way of missing a task to the same error, so callers
// cannot tell a foreign task from an absent one.
func taskLookupError(err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return errTaskNotFound
	}
	return err
}

func (s *TaskService) Get(ctx context.Context, caller scope.Caller, id string) (*model.Task, error) {
	if !validID(id) {
		return nil, errTaskNotFound
	}
	task, err := s.taskRepo.FindOne(ctx, scope.Task(caller, id))
	if err != nil {
		return nil, taskLookupError(err)
	}
	return task, nil
}

func (s *TaskService) Create(ctx context.Context, caller scope.Caller, req CreateTaskRequest) (*model.Task, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}
	if err := common.Validate(req, dueDateErrors(req.DueDate)...); err != nil {
		return nil, err
	}

	task := &model.Task{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     req.DueDate.Value,
		UserID:      caller.ID,
		CreatedBy:   caller.ID,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	invalidateStats(ctx, s.stats)

	created, err := s.taskRepo.FindOne(ctx, model.TaskFilter{ID: &task.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}
	return created, nil
}

func (s *TaskService) Update(ctx context.Context, caller scope.Caller, id string, req UpdateTaskRequest) (*model.Task, error) {
	if !validID(id) {
		return nil, errTaskNotFound
	}

	var extra []common.FieldError
	if req.Title != nil {
		*req.Title = strings.TrimSpace(*req.Title)
		if *req.Title == "" {
			extra = append(extra, common.FieldError{Field: "title", Message: "is required"})
		}
	}
	if req.Description != nil {
		*req.Description = strings.TrimSpace(*req.Description)
	}
	extra = append(extra, dueDateErrors(req.DueDate)...)
	if err := common.Validate(req, extra...); err != nil {
		return nil, err
	}

	patch := model.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Completed:   req.Completed,
	}
	if req.DueDate.Set {
		patch.DueDate = req.DueDate.Value
		patch.ClearDueDate = req.DueDate.Value == nil
	}

	task, err := s.taskRepo.Update(ctx, scope.Task(caller, id), patch)
	if err != nil {
		return nil, taskLookupError(err)
	}
	invalidateStats(ctx, s.stats)
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, caller scope.Caller, id string) error {
	if !validID(id) {
		return errTaskNotFound
	}
	if err := s.taskRepo.Delete(ctx, scope.Task(caller, id)); err != nil {
		return taskLookupError(err)
	}
	invalidateStats(ctx, s.stats)
	return nil
}

// Toggle flips the completion flag and returns the task in its new state.
func (s *TaskService) Toggle(ctx context.Context, caller scope.Caller, id string) (*model.Task, error) {
	if !validID(id) {
		return nil, errTaskNotFound
	}
	task, err := s.taskRepo.ToggleCompleted(ctx, scope.Task(caller, id))
	if err != nil {
		return nil, taskLookupError(err)
	}
	invalidateStats(ctx, s.stats)
	return task, nil
}
