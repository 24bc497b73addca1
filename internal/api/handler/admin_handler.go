package handler

import (
	"net/http"

	"taskboard/internal/app/service"
	"taskboard/internal/common"
	"taskboard/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	adminService *service.AdminService
}

func NewAdminHandler(as *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: as}
}

// RegisterRoutes expects r to be behind the authenticator and AdminOnly.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/dashboard", h.dashboard)

	r.Get("/users", h.listUsers)
	r.Get("/users/{userId}", h.getUser)
	r.Put("/users/{userId}", h.updateUser)
	r.Delete("/users/{userId}", h.deleteUser)
	r.Patch("/users/{userId}/toggle-status", h.toggleUserStatus)

	r.Get("/tasks", h.listTasks)
	r.Put("/tasks/{taskId}", h.updateTask)
	r.Delete("/tasks/{taskId}", h.deleteTask)
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.UserFilter{
		Role:     parseString(q, "role"),
		IsActive: parseBool(q, "isActive"),
		Search:   q.Get("search"),
	}
	resp, err := h.adminService.ListUsers(r.Context(), filter, parsePage(q))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) getUser(w http.ResponseWriter, r *http.Request) {
	resp, err := h.adminService.GetUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) updateUser(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.adminService.UpdateUser(r.Context(), c, chi.URLParam(r, "userId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User updated successfully",
		"user":    user,
	})
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.adminService.DeleteUser(r.Context(), c, chi.URLParam(r, "userId")); err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "User and associated tasks deleted successfully"})
}

func (h *AdminHandler) toggleUserStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	user, err := h.adminService.ToggleUserStatus(r.Context(), c, chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	state := "deactivated"
	if user.IsActive {
		state = "activated"
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User " + state + " successfully",
		"user":    user,
	})
}

func (h *AdminHandler) listTasks(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := parseTaskFilter(q)
	filter.OwnerID = parseString(q, "userId")

	resp, err := h.adminService.ListTasks(r.Context(), c, filter, parsePage(q))
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) updateTask(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req service.UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	task, err := h.adminService.UpdateTask(r.Context(), c, chi.URLParam(r, "taskId"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Task updated successfully",
		"task":    task,
	})
}

func (h *AdminHandler) deleteTask(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.adminService.DeleteTask(r.Context(), c, chi.URLParam(r, "taskId")); err != nil {
		writeError(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}
