package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"taskboard/internal/api/middleware"
	"taskboard/internal/common"
	"taskboard/internal/domain/model"
	"taskboard/internal/domain/scope"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// writeError sends err to the client with its mapped status. Server-side
// failures are logged with the request id and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if common.HTTPStatusFromError(err) == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	}
	common.RespondWithAppError(w, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// parsePositiveInt returns 0 for missing or malformed values so callers fall
// back to their defaults.
func parsePositiveInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parsePage(q url.Values) model.Page {
	return model.NewPage(parsePositiveInt(q.Get("page")), parsePositiveInt(q.Get("limit")))
}

// parseBool treats "true" as true and any other present value as false.
func parseBool(q url.Values, key string) *bool {
	if !q.Has(key) {
		return nil
	}
	b := q.Get(key) == "true"
	return &b
}

func parseString(q url.Values, key string) *string {
	v := q.Get(key)
	if v == "" {
		return nil
	}
	return &v
}

func parseTaskFilter(q url.Values) model.TaskFilter {
	f := model.TaskFilter{
		Completed: parseBool(q, "completed"),
		Search:    q.Get("search"),
	}
	if p := q.Get("priority"); p != "" {
		priority := model.Priority(p)
		f.Priority = &priority
	}
	return f
}

// requireCaller reads the authenticated identity; a missing one means the
// route was mounted without the authenticator.
func requireCaller(w http.ResponseWriter, r *http.Request) (scope.Caller, bool) {
	c, ok := middleware.GetCaller(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
	}
	return c, ok
}
