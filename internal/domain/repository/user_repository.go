package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskboard/internal/common"
	"taskboard/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context, filter model.UserFilter, page model.Page) ([]model.User, int, error)
	// Update writes every mutable column of user. The password hash is only
	// written by Create.
	Update(ctx context.Context, user *model.User) error
	// DeleteWithTasks removes the user and every task they own atomically.
	DeleteWithTasks(ctx context.Context, id string) error
	CountByRole(ctx context.Context, role string) (int, error)
	Counts(ctx context.Context) (model.UserCounts, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

const userColumns = `u.id, u.username, u.email, u.password_hash, u.role, u.is_active,
	u.first_name, u.last_name, u.created_at, u.updated_at`

func scanUser(row interface{ Scan(...interface{}) error }, user *model.User) error {
	return row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Role, &user.IsActive,
		&user.FirstName, &user.LastName, &user.CreatedAt, &user.UpdatedAt,
	)
}

func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, password_hash, role, is_active, first_name, last_name)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Role, user.IsActive, user.FirstName, user.LastName,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) findOne(ctx context.Context, op, column, value string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.` + column + ` = $1`
	user := &model.User{}
	if err := scanUser(r.db.QueryRowContext(ctx, query, value), user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	return user, nil
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "FindByEmail", "email", email)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "FindByID", "id", id)
}

func (r *pgUserRepository) List(ctx context.Context, filter model.UserFilter, page model.Page) ([]model.User, int, error) {
	q := &queryArgs{}
	where := userConditions(filter, q).where()

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users u`+where, q.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List count: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users u` + where +
		fmt.Sprintf(" ORDER BY u.created_at DESC, u.id DESC LIMIT %s OFFSET %s", q.add(page.Limit), q.add(page.Offset()))

	rows, err := r.db.QueryContext(ctx, query, q.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List query: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, 0, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List rows.Err: %w", err)
	}
	return users, total, nil
}

func (r *pgUserRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE users SET
	            username = $1, email = $2, role = $3, is_active = $4,
	            first_name = $5, last_name = $6, updated_at = NOW()
	          WHERE id = $7
	          RETURNING updated_at`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.Role, user.IsActive, user.FirstName, user.LastName, user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrNotFound
		}
		if uniqueViolation(err) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Update: %w", err)
	}
	return nil
}

func (r *pgUserRepository) DeleteWithTasks(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgUserRepository.DeleteWithTasks begin: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = $1`, id); err != nil {
		return fmt.Errorf("pgUserRepository.DeleteWithTasks tasks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgUserRepository.DeleteWithTasks user: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("pgUserRepository.DeleteWithTasks rows: %w", err)
	} else if n == 0 {
		return common.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgUserRepository.DeleteWithTasks commit: %w", err)
	}
	return nil
}

func (r *pgUserRepository) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgUserRepository.CountByRole: %w", err)
	}
	return n, nil
}

func (r *pgUserRepository) Counts(ctx context.Context) (model.UserCounts, error) {
	var c model.UserCounts
	query := `SELECT COUNT(*),
	                 COUNT(*) FILTER (WHERE is_active),
	                 COUNT(*) FILTER (WHERE role = 'admin')
	          FROM users`
	if err := r.db.QueryRowContext(ctx, query).Scan(&c.TotalUsers, &c.ActiveUsers, &c.AdminUsers); err != nil {
		return c, fmt.Errorf("pgUserRepository.Counts: %w", err)
	}
	return c, nil
}
