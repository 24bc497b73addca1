package main

import (
	"context"
	"fmt"

	"taskboard/internal/app/service"
	"taskboard/internal/domain/repository"
	"taskboard/internal/platform/database"

	"github.com/spf13/cobra"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long:  "Create an administrator account. Username and password follow the same rules as self-registration.",
	RunE: func(cmd *cobra.Command, args []string) error {
		var req service.RegisterRequest
		flags := cmd.Flags()
		for name, dst := range map[string]*string{
			"username":   &req.Username,
			"email":      &req.Email,
			"password":   &req.Password,
			"first-name": &req.FirstName,
			"last-name":  &req.LastName,
		} {
			v, err := flags.GetString(name)
			if err != nil {
				return fmt.Errorf("read flag %q: %w", name, err)
			}
			*dst = v
		}

		return withDB(cmd.Context(), func(ctx context.Context) error {
			auth := service.NewAuthService(repository.NewPgUserRepository(database.DB), nil, nil)
			user, err := auth.CreateAdmin(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", user.Username, user.ID)
			return nil
		})
	},
}

func init() {
	createAdminCmd.Flags().String("username", "admin", "login name, lower-case slug")
	createAdminCmd.Flags().String("email", "", "email address")
	createAdminCmd.Flags().String("password", "", "password with a lower-case letter, an upper-case letter and a digit")
	createAdminCmd.Flags().String("first-name", "Admin", "first name")
	createAdminCmd.Flags().String("last-name", "User", "last name")
	createAdminCmd.MarkFlagRequired("email")
	createAdminCmd.MarkFlagRequired("password")
}
