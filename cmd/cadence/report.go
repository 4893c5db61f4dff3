package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/cadence/internal/database"
	"github.com/dukerupert/cadence/internal/stats"
	"github.com/dukerupert/cadence/internal/store"
	"github.com/dukerupert/cadence/internal/streak"
)

func newReportCmd(a *app) *cobra.Command {
	var userID int64
	var username string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a user's focus statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 && username == "" {
				return errors.New("one of --user or --username is required")
			}

			db, err := database.Open(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if userID == 0 {
				u, err := store.NewUserStore(db).GetByUsername(ctx, username)
				if err != nil {
					return err
				}
				if u == nil {
					return fmt.Errorf("user %q not found", username)
				}
				userID = u.ID
			}

			loc := a.cfg.Location()
			streaks := streak.NewService(db, time.Now, loc, a.logger)
			report, err := stats.NewService(db, streaks, time.Now, loc, a.logger).BuildReport(ctx, userID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&username, "username", "", "username, when the id is not known")
	return cmd
}
