package main

import (
	"context"

	"taskboard/internal/platform/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the users and tasks tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(cmd.Context(), func(ctx context.Context) error {
			return database.Migrate(ctx, database.DB)
		})
	},
}
