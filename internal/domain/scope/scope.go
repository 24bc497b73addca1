// Package scope decides which tasks a caller may see or change. Every task
// query in the service layer goes through Tasks or Task; nothing else applies
// ownership rules.
package scope

import "taskboard/internal/domain/model"

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   string
	Role string
}

func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}

// Tasks returns the filter a task query must run with. Admins get the requested
// filter unchanged. Everyone else is pinned to their own tasks, whatever owner
// the request asked for.
func Tasks(c Caller, requested model.TaskFilter) model.TaskFilter {
	if c.IsAdmin() {
		return requested
	}
	owner := c.ID
	requested.OwnerID = &owner
	return requested
}

// Task scopes a single-record lookup by id.
func Task(c Caller, taskID string) model.TaskFilter {
	return Tasks(c, model.TaskFilter{ID: &taskID})
}
