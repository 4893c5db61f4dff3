package main

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dukerupert/cadence/internal/config"
	"github.com/dukerupert/cadence/internal/logging"
)

// Version information, set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// app holds what every subcommand loads before running.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "cadence",
		Short: "Focus tracker server",
		Long: `Cadence tracks focus sessions, daily check-ins and ordered to-do
collections, and serves them over a JSON API with live websocket updates.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newReportCmd(a),
		newBackupCmd(a),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cadence version %s\n", Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  Git commit: %s\n", GitCommit)
			fmt.Fprintf(cmd.OutOrStdout(), "  Go version: %s\n", runtime.Version())
		},
	}
}
