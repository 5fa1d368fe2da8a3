package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newRepairCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "repair [table]",
		Short: "Verify a table's stored row count against its chunk files and fix the sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dbFlag(cmd)
			if err != nil {
				return err
			}
			eng := engineFromCmd(cmd, logger)
			n, err := eng.Repair(db, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "table %q verified: %d row(s) on disk\n", args[0], n)
			return nil
		},
	}
}
