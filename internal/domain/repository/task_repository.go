package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskboard/internal/common"
	"taskboard/internal/domain/model"
)

// TaskRepository reads and writes tasks. Every method that addresses existing
// tasks takes a filter; a filter matching nothing yields common.ErrNotFound.
type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	FindOne(ctx context.Context, filter model.TaskFilter) (*model.Task, error)
	List(ctx context.Context, filter model.TaskFilter, sort model.TaskSort, page model.Page) ([]model.Task, int, error)
	Update(ctx context.Context, filter model.TaskFilter, patch model.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, filter model.TaskFilter) error
	// ToggleCompleted flips the completion flag in a single statement.
	ToggleCompleted(ctx context.Context, filter model.TaskFilter) (*model.Task, error)
	StatsForOwner(ctx context.Context, ownerID string) (model.TaskStats, error)
	Counts(ctx context.Context) (model.TaskCounts, error)
}

type pgTaskRepository struct {
	db *sql.DB
}

func NewPgTaskRepository(db *sql.DB) TaskRepository {
	return &pgTaskRepository{db: db}
}

const taskSelect = `
        SELECT t.id, t.title, t.description, t.priority, t.completed, t.due_date,
               t.user_id, t.created_by, t.created_at, t.updated_at,
               o.username, o.first_name, o.last_name, o.email,
               c.username, c.first_name, c.last_name, c.email
        FROM tasks t
        JOIN users o ON o.id = t.user_id
        LEFT JOIN users c ON c.id = t.created_by`

func scanTask(row interface{ Scan(...interface{}) error }) (*model.Task, error) {
	var t model.Task
	var owner model.UserSummary
	var dueDate sql.NullTime
	var createdBy, cUser, cFirst, cLast, cEmail sql.NullString
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Priority, &t.Completed, &dueDate,
		&t.UserID, &createdBy, &t.CreatedAt, &t.UpdatedAt,
		&owner.Username, &owner.FirstName, &owner.LastName, &owner.Email,
		&cUser, &cFirst, &cLast, &cEmail,
	)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		d := dueDate.Time
		t.DueDate = &d
	}
	owner.ID = t.UserID
	t.Owner = &owner
	if createdBy.Valid {
		t.CreatedBy = createdBy.String
		if cUser.Valid {
			t.Creator = &model.UserSummary{
				ID:        createdBy.String,
				Username:  cUser.String,
				FirstName: cFirst.String,
				LastName:  cLast.String,
				Email:     cEmail.String,
			}
		}
	}
	return &t, nil
}

func (r *pgTaskRepository) Create(ctx context.Context, t *model.Task) error {
	query := `INSERT INTO tasks (id, title, description, priority, completed, due_date, user_id, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING created_at, updated_at`
	var createdBy interface{}
	if t.CreatedBy != "" {
		createdBy = t.CreatedBy
	}
	err := r.db.QueryRowContext(ctx, query,
		t.ID, t.Title, t.Description, t.Priority, t.Completed, t.DueDate, t.UserID, createdBy,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgTaskRepository.Create: %w", err)
	}
	return nil
}

func (r *pgTaskRepository) FindOne(ctx context.Context, filter model.TaskFilter) (*model.Task, error) {
	q := &queryArgs{}
	query := taskSelect + taskConditions(filter, q).where() + " LIMIT 1"
	task, err := scanTask(r.db.QueryRowContext(ctx, query, q.args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTaskRepository.FindOne: %w", err)
	}
	return task, nil
}

func (r *pgTaskRepository) List(ctx context.Context, filter model.TaskFilter, sort model.TaskSort, page model.Page) ([]model.Task, int, error) {
	q := &queryArgs{}
	where := taskConditions(filter, q).where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks t`+where, q.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgTaskRepository.List count: %w", err)
	}

	query := taskSelect + where + taskOrderBy(sort) +
		fmt.Sprintf(" LIMIT %s OFFSET %s", q.add(page.Limit), q.add(page.Offset()))

	rows, err := r.db.QueryContext(ctx, query, q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgTaskRepository.List query: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgTaskRepository.List scan: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgTaskRepository.List rows.Err: %w", err)
	}
	return tasks, total, nil
}

// mutate runs an UPDATE over the filtered rows and reloads the first one.
func (r *pgTaskRepository) mutate(ctx context.Context, op string, filter model.TaskFilter, set func(q *queryArgs) []string) (*model.Task, error) {
	q := &queryArgs{}
	sets := append(set(q), "updated_at = NOW()")
	query := `UPDATE tasks AS t SET ` + strings.Join(sets, ", ") + taskConditions(filter, q).where() + ` RETURNING t.id`

	var id string
	if err := r.db.QueryRowContext(ctx, query, q.args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTaskRepository.%s: %w", op, err)
	}
	return r.FindOne(ctx, model.TaskFilter{ID: &id})
}

func (r *pgTaskRepository) Update(ctx context.Context, filter model.TaskFilter, patch model.TaskPatch) (*model.Task, error) {
	if patch.Empty() {
		return r.FindOne(ctx, filter)
	}
	return r.mutate(ctx, "Update", filter, func(q *queryArgs) []string {
		var sets []string
		if patch.Title != nil {
			sets = append(sets, "title = "+q.add(*patch.Title))
		}
		if patch.Description != nil {
			sets = append(sets, "description = "+q.add(*patch.Description))
		}
		if patch.Priority != nil {
			sets = append(sets, "priority = "+q.add(string(*patch.Priority)))
		}
		if patch.Completed != nil {
			sets = append(sets, "completed = "+q.add(*patch.Completed))
		}
		if patch.ClearDueDate {
			sets = append(sets, "due_date = NULL")
		} else if patch.DueDate != nil {
			sets = append(sets, "due_date = "+q.add(*patch.DueDate))
		}
		return sets
	})
}

func (r *pgTaskRepository) ToggleCompleted(ctx context.Context, filter model.TaskFilter) (*model.Task, error) {
	return r.mutate(ctx, "ToggleCompleted", filter, func(q *queryArgs) []string {
		return []string{"completed = NOT t.completed"}
	})
}

func (r *pgTaskRepository) Delete(ctx context.Context, filter model.TaskFilter) error {
	q := &queryArgs{}
	query := `DELETE FROM tasks AS t` + taskConditions(filter, q).where()
	res, err := r.db.ExecContext(ctx, query, q.args...)
	if err != nil {
		return fmt.Errorf("pgTaskRepository.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgTaskRepository.Delete rows: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgTaskRepository) StatsForOwner(ctx context.Context, ownerID string) (model.TaskStats, error) {
	var s model.TaskStats
	query := `SELECT COUNT(*),
	                 COUNT(*) FILTER (WHERE completed),
	                 COUNT(*) FILTER (WHERE NOT completed)
	          FROM tasks WHERE user_id = $1`
	if err := r.db.QueryRowContext(ctx, query, ownerID).Scan(&s.Total, &s.Completed, &s.Pending); err != nil {
		return s, fmt.Errorf("pgTaskRepository.StatsForOwner: %w", err)
	}
	return s, nil
}

func (r *pgTaskRepository) Counts(ctx context.Context) (model.TaskCounts, error) {
	var c model.TaskCounts
	query := `SELECT COUNT(*),
	                 COUNT(*) FILTER (WHERE completed),
	                 COUNT(*) FILTER (WHERE NOT completed)
	          FROM tasks`
	if err := r.db.QueryRowContext(ctx, query).Scan(&c.TotalTasks, &c.CompletedTasks, &c.PendingTasks); err != nil {
		return c, fmt.Errorf("pgTaskRepository.Counts: %w", err)
	}
	return c, nil
}
