package cli

import (
	"fmt"
	"log/slog"
	"os"

	"ledgerdb/internal/value"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
)

// exportDoc is the on-disk shape of a table backup: column headers plus
// every row, msgpack-encoded. Values are carried by their Kind tag and
// canonical string form rather than the raw Value struct, so the format
// doesn't depend on Decimal's internal big.Int representation.
type exportDoc struct {
	Table   string          `msgpack:"table"`
	Columns []string        `msgpack:"columns"`
	Rows    [][]exportField `msgpack:"rows"`
}

type exportField struct {
	Kind string `msgpack:"kind"`
	Text string `msgpack:"text"`
}

func toExportField(v value.Value) exportField {
	return exportField{Kind: v.Kind.String(), Text: v.String()}
}

func newExportCmd(logger *slog.Logger) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export [table]",
		Short: "Back up a table's rows to a msgpack file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			db, err := dbFlag(cmd)
			if err != nil {
				return err
			}
			eng := engineFromCmd(cmd, logger)
			if res := eng.Execute("USE " + db); !res.Success {
				return fmt.Errorf("%s", res.ErrorMessage)
			}
			res := eng.Execute(fmt.Sprintf("SELECT * FROM %s", table))
			if !res.Success {
				return fmt.Errorf("%s", res.ErrorMessage)
			}

			doc := exportDoc{Table: table, Columns: res.Columns}
			for _, row := range res.Rows {
				fields := make([]exportField, len(row))
				for i, v := range row {
					fields[i] = toExportField(v)
				}
				doc.Rows = append(doc.Rows, fields)
			}

			data, err := msgpack.Marshal(doc)
			if err != nil {
				return fmt.Errorf("encode export: %w", err)
			}
			if out == "" {
				out = table + ".ledgerdb.bak"
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write export file: %w", err)
			}
			fmt.Fprintf(os.Stdout, "exported %d row(s) from %q to %s\n", len(doc.Rows), table, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output file path (default: <table>.ledgerdb.bak)")
	return cmd
}
