// Command ledgerctl is a non-interactive administrative CLI for a ledgerdb
// data directory: create/drop databases, list tables, run ad hoc SQL, and
// back up/restore a table's rows.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to the engine via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"log/slog"
	"os"

	"ledgerdb/cmd/ledgerctl/cli"
	"ledgerdb/internal/logging"
)

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelWarn)
	logger := slog.New(filterHandler)

	root := cli.NewRootCommand(logger)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
