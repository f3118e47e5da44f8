package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewCreateSuperuserCmd creates the createsuperuser subcommand.
func NewCreateSuperuserCmd() *cobra.Command {
	var email, pseudo, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an account with staff and superuser rights",
		Long: `Create an account with staff and superuser rights.
The password may also be given through WYE_SUPERUSER_PASSWORD.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("WYE_SUPERUSER_PASSWORD")
			}
			if password == "" {
				return oops.Code("CONFIG_INVALID").Errorf("--password or WYE_SUPERUSER_PASSWORD is required")
			}

			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			user, err := app.AccountsService.CreateSuperuser(cmd.Context(), email, pseudo, password)
			if err != nil {
				return err
			}

			cmd.Printf("Superuser %s created (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email (required)")
	cmd.Flags().StringVar(&pseudo, "pseudo", "", "pseudo (required)")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("pseudo")

	return cmd
}
