// Package cli implements the ledgerctl administrative command tree:
// createdb, dropdb, tables, stats, exec, export, import, and repair,
// each a single non-looping call against an internal/engine.Engine
// opened over the --base-dir data directory.
package cli

import (
	"log/slog"

	"ledgerdb/internal/engine"

	"github.com/spf13/cobra"
)

// NewRootCommand returns the "ledgerctl" command with every subcommand
// wired in. logger is passed down to the engine constructed per
// invocation.
func NewRootCommand(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Administer a ledgerdb data directory",
	}

	root.PersistentFlags().String("base-dir", "./data", "ledgerdb data directory")
	root.PersistentFlags().String("db", "", "database name (required by most subcommands)")
	root.PersistentFlags().StringP("output", "o", "table", "output format: table or json")

	root.AddCommand(
		newCreateDBCmd(logger),
		newDropDBCmd(logger),
		newTablesCmd(logger),
		newStatsCmd(logger),
		newExecCmd(logger),
		newExportCmd(logger),
		newImportCmd(logger),
		newRepairCmd(logger),
	)
	return root
}

// engineFromCmd opens an Engine rooted at the --base-dir flag.
func engineFromCmd(cmd *cobra.Command, logger *slog.Logger) *engine.Engine {
	baseDir, _ := cmd.Flags().GetString("base-dir")
	return engine.New(engine.Config{BaseDir: baseDir, Logger: logger})
}

func dbFlag(cmd *cobra.Command) (string, error) {
	db, _ := cmd.Flags().GetString("db")
	if db == "" {
		return "", errMissingDB
	}
	return db, nil
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}
