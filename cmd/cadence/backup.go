package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/dukerupert/cadence/internal/backup"
	"github.com/dukerupert/cadence/internal/database"
)

var errBackupDisabled = errors.New("backups are not configured: set backup.s3 bucket and credentials")

// backupService builds the snapshot service. db may be nil for commands
// that only touch object storage.
func (a *app) backupService(db *sqlx.DB) (*backup.Service, error) {
	bc := a.cfg.Backup
	if !bc.S3.Enabled() {
		return nil, errBackupDisabled
	}
	return backup.NewService(db, backup.NewS3Client(bc.S3), bc.S3, bc.Passphrase, time.Now, a.logger), nil
}

func newBackupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage encrypted database snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Snapshot the database and upload it",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Connect(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := a.backupService(db)
			if err != nil {
				return err
			}
			snap, err := svc.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), snap.Key)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.backupService(nil)
			if err != nil {
				return err
			}
			snaps, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tTAKEN")
			for _, s := range snaps {
				fmt.Fprintf(w, "%s\t%d\t%s\n", s.Key, s.Size, s.TakenAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	})

	var retention time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.backupService(nil)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("retention") {
				retention = a.cfg.Backup.Retention
			}
			n, err := svc.Prune(cmd.Context(), retention)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d snapshot(s)\n", n)
			return nil
		},
	}
	prune.Flags().DurationVar(&retention, "retention", 0, "keep snapshots newer than this (default backup.retention)")
	cmd.AddCommand(prune)

	var overwrite bool
	restore := &cobra.Command{
		Use:   "restore <key>",
		Short: "Download a snapshot into db_path",
		Long: `Restore downloads and decrypts a snapshot, checks its integrity, and
writes it to db_path. Stop the server first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.backupService(nil)
			if err != nil {
				return err
			}
			return svc.Restore(cmd.Context(), args[0], a.cfg.DBPath, overwrite)
		},
	}
	restore.Flags().BoolVar(&overwrite, "force", false, "replace an existing database")
	cmd.AddCommand(restore)

	return cmd
}
