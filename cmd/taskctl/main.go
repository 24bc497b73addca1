// Command taskctl runs operator tasks against the taskboard database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"taskboard/internal/platform/config"
	"taskboard/internal/platform/database"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "taskctl",
	Short: "Operator commands for the taskboard service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		config.Load()
	},
}

// withDB connects to PostgreSQL for the duration of fn.
func withDB(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := database.Connect(ctx, config.AppConfig.DBConnStr); err != nil {
		return err
	}
	defer database.Close()
	return fn(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.AddCommand(migrateCmd, createAdminCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
