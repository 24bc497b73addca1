package model

import (
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Rank orders priorities low < medium < high.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	}
	return 0
}

func (p Priority) Valid() bool {
	return p.Rank() > 0
}

type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Priority    Priority     `json:"priority"`
	Completed   bool         `json:"completed"`
	DueDate     *time.Time   `json:"dueDate"`
	UserID      string       `json:"userId"`
	CreatedBy   string       `json:"createdBy,omitempty"` // Empty once the creator account is deleted
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Owner       *UserSummary `json:"owner,omitempty"`
	Creator     *UserSummary `json:"creator,omitempty"`
}

// TaskPatch lists the task fields a caller may change. Owner, creator and id
// are fixed at creation.
type TaskPatch struct {
	Title        *string
	Description  *string
	Priority     *Priority
	Completed    *bool
	DueDate      *time.Time
	ClearDueDate bool
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.Completed == nil && p.DueDate == nil && !p.ClearDueDate
}

// Apply copies the set fields of p onto t.
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
}
