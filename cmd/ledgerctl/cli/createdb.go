package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newCreateDBCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "createdb",
		Short: "Create a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dbFlag(cmd)
			if err != nil {
				return err
			}
			eng := engineFromCmd(cmd, logger)
			res := eng.Execute(fmt.Sprintf("CREATE DATABASE %s", db))
			return printResult(outputFormat(cmd), res)
		},
	}
}
