package handler

import (
	"net/http"

	"taskboard/internal/app/service"
	"taskboard/internal/common"
	"taskboard/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(ts *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: ts}
}

// RegisterRoutes expects r to be behind the authenticator.
func (h *TaskHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listTasks)               // GET /api/tasks
	r.Post("/", h.createTask)             // POST /api/tasks
	r.Get("/{id}", h.getTask)             // GET /api/tasks/{id}
	r.Put("/{id}", h.updateTask)          // PUT /api/tasks/{id}
	r.Delete("/{id}", h.deleteTask)       // DELETE /api/tasks/{id}
	r.Patch("/{id}/toggle", h.toggleTask) // PATCH /api/tasks/{id}/toggle
}

func (h *TaskHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	sort := model.ParseTaskSort(q.Get("sortBy"), q.Get("order"))

	resp, err := h.taskService.List(r.Context(), c, parseTaskFilter(q), sort, parsePage(q))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) getTask(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	task, err := h.taskService.Get(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"task": task})
}

func (h *TaskHandler) createTask(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req service.CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.taskService.Create(r.Context(), c, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Task created successfully",
		"task":    task,
	})
}

func (h *TaskHandler) updateTask(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req service.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.taskService.Update(r.Context(), c, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Task updated successfully",
		"task":    task,
	})
}

func (h *TaskHandler) deleteTask(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.taskService.Delete(r.Context(), c, chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

func (h *TaskHandler) toggleTask(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	task, err := h.taskService.Toggle(r.Context(), c, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	state := "incomplete"
	if task.Completed {
		state = "completed"
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Task marked as " + state,
		"task":    task,
	})
}
