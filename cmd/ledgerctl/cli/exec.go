package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
)

func newExecCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "exec [sql]",
		Short: "Run one SQL statement against a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dbFlag(cmd)
			if err != nil {
				return err
			}
			eng := engineFromCmd(cmd, logger)
			if res := eng.Execute("USE " + db); !res.Success {
				return errors.New(res.ErrorMessage)
			}
			res := eng.Execute(args[0])
			return printResult(outputFormat(cmd), res)
		},
	}
}
