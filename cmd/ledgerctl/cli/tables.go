package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newTablesCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables in a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dbFlag(cmd)
			if err != nil {
				return err
			}
			eng := engineFromCmd(cmd, logger)
			tables, err := eng.ListTables(db)
			if err != nil {
				return err
			}
			p := newPrinter(outputFormat(cmd))
			if outputFormat(cmd) == "json" {
				return p.json(tables)
			}
			p.list(tables)
			return nil
		},
	}
}
