package repository

import (
	"fmt"
	"strings"

	"taskboard/internal/domain/model"
)

// queryArgs collects positional arguments and hands out their $n placeholders.
type queryArgs struct {
	args []interface{}
}

func (q *queryArgs) add(v interface{}) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

type conditions []string

func (c conditions) where() string {
	if len(c) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns a search term into an ILIKE substring pattern that matches
// the term literally.
func likePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

func taskConditions(f model.TaskFilter, q *queryArgs) conditions {
	var c conditions
	if f.ID != nil {
		c = append(c, "t.id = "+q.add(*f.ID))
	}
	if f.OwnerID != nil {
		c = append(c, "t.user_id = "+q.add(*f.OwnerID))
	}
	if f.Completed != nil {
		c = append(c, "t.completed = "+q.add(*f.Completed))
	}
	if f.Priority != nil {
		c = append(c, "t.priority = "+q.add(string(*f.Priority)))
	}
	if f.Search != "" {
		p := q.add(likePattern(f.Search))
		c = append(c, fmt.Sprintf("(t.title ILIKE %s OR t.description ILIKE %s)", p, p))
	}
	return c
}

func userConditions(f model.UserFilter, q *queryArgs) conditions {
	var c conditions
	if f.Role != nil {
		c = append(c, "u.role = "+q.add(*f.Role))
	}
	if f.IsActive != nil {
		c = append(c, "u.is_active = "+q.add(*f.IsActive))
	}
	if f.Search != "" {
		p := q.add(likePattern(f.Search))
		c = append(c, fmt.Sprintf("(u.username ILIKE %[1]s OR u.email ILIKE %[1]s OR u.first_name ILIKE %[1]s OR u.last_name ILIKE %[1]s)", p))
	}
	return c
}

var taskSortColumns = map[model.TaskSortField]string{
	model.SortByCreatedAt: "t.created_at",
	model.SortByUpdatedAt: "t.updated_at",
	model.SortByDueDate:   "t.due_date",
	model.SortByTitle:     "t.title",
	model.SortByCompleted: "t.completed",
	model.SortByPriority:  "CASE t.priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END",
}

func taskOrderBy(s model.TaskSort) string {
	col, ok := taskSortColumns[s.Field]
	if !ok {
		col = taskSortColumns[model.SortByCreatedAt]
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, t.id %s", col, dir, dir)
}
