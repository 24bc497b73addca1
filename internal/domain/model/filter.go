package model

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
)

// TaskFilter is a set of equality constraints plus an optional free-text term.
// Nil fields are not constrained.
type TaskFilter struct {
	ID        *string
	OwnerID   *string
	Completed *bool
	Priority  *Priority
	Search    string // case-insensitive substring of title or description
}

type UserFilter struct {
	Role     *string
	IsActive *bool
	Search   string // case-insensitive substring of username, email, first or last name
}

type TaskSortField string

const (
	SortByCreatedAt TaskSortField = "createdAt"
	SortByUpdatedAt TaskSortField = "updatedAt"
	SortByDueDate   TaskSortField = "dueDate"
	SortByPriority  TaskSortField = "priority"
	SortByTitle     TaskSortField = "title"
	SortByCompleted TaskSortField = "completed"
)

var taskSortFields = map[TaskSortField]bool{
	SortByCreatedAt: true,
	SortByUpdatedAt: true,
	SortByDueDate:   true,
	SortByPriority:  true,
	SortByTitle:     true,
	SortByCompleted: true,
}

type TaskSort struct {
	Field TaskSortField
	Desc  bool
}

// DefaultTaskSort is newest first.
var DefaultTaskSort = TaskSort{Field: SortByCreatedAt, Desc: true}

// ParseTaskSort falls back to createdAt for unknown fields. The order is
// descending when empty or "desc" and ascending for anything else.
func ParseTaskSort(sortBy, order string) TaskSort {
	s := DefaultTaskSort
	if f := TaskSortField(sortBy); taskSortFields[f] {
		s.Field = f
	}
	s.Desc = order == "" || order == "desc"
	return s
}

type Page struct {
	Number int
	Limit  int
}

func NewPage(number, limit int) Page {
	if number <= 0 {
		number = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}
