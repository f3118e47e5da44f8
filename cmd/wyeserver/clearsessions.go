package main

import (
	"github.com/spf13/cobra"
)

// NewClearSessionsCmd creates the clearsessions subcommand.
func NewClearSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clearsessions",
		Short: "Delete expired login sessions",
		Long: `Delete expired login sessions from the store. Expired sessions never
authenticate; this only reclaims space. Run it from cron.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			app, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			purged, err := app.SessionsService.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}

			cmd.Printf("Removed %d expired sessions\n", purged)
			return nil
		},
	}
}
