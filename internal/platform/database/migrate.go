package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// schema is applied in order inside one transaction. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      VARCHAR(30)  NOT NULL UNIQUE,
		email         VARCHAR(255) NOT NULL UNIQUE,
		password_hash TEXT         NOT NULL,
		role          VARCHAR(10)  NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
		is_active     BOOLEAN      NOT NULL DEFAULT TRUE,
		first_name    VARCHAR(50)  NOT NULL DEFAULT '',
		last_name     VARCHAR(50)  NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id          UUID PRIMARY KEY,
		title       VARCHAR(100) NOT NULL,
		description TEXT         NOT NULL DEFAULT '',
		priority    VARCHAR(10)  NOT NULL DEFAULT 'medium' CHECK (priority IN ('low', 'medium', 'high')),
		completed   BOOLEAN      NOT NULL DEFAULT FALSE,
		due_date    TIMESTAMPTZ,
		user_id     UUID         NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_by  UUID         REFERENCES users(id) ON DELETE SET NULL,
		created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_user_id ON tasks(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at)`,
}

// Migrate creates the users and tasks tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	slog.Info("Database schema is up to date")
	return nil
}
