package cli

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show table count and total row count for a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dbFlag(cmd)
			if err != nil {
				return err
			}
			eng := engineFromCmd(cmd, logger)
			stats, err := eng.Statistics(db)
			if err != nil {
				return err
			}
			p := newPrinter(outputFormat(cmd))
			if outputFormat(cmd) == "json" {
				return p.json(stats)
			}
			p.kv([][2]string{
				{"tables", strconv.Itoa(stats.TableCount)},
				{"total rows", strconv.FormatInt(stats.TotalRows, 10)},
			})
			return nil
		},
	}
}
