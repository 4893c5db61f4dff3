package main

import (
	"github.com/spf13/cobra"

	"github.com/dukerupert/cadence/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db.DB); err != nil {
				return err
			}
			a.logger.Info("migrations applied", "db", a.cfg.DBPath)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Status(cmd.Context(), db.DB)
		},
	})
	return cmd
}
