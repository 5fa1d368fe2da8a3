package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"ledgerdb/internal/value"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"
)

func newImportCmd(logger *slog.Logger) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import [table]",
		Short: "Restore a table's rows from a msgpack backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			db, err := dbFlag(cmd)
			if err != nil {
				return err
			}
			if in == "" {
				in = table + ".ledgerdb.bak"
			}
			data, err := os.ReadFile(in)
			if err != nil {
				return fmt.Errorf("read import file: %w", err)
			}
			var doc exportDoc
			if err := msgpack.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("decode import file: %w", err)
			}

			eng := engineFromCmd(cmd, logger)
			if res := eng.Execute("USE " + db); !res.Success {
				return fmt.Errorf("%s", res.ErrorMessage)
			}

			imported := 0
			for _, row := range doc.Rows {
				values := make([]string, len(row))
				for i, f := range row {
					v, err := fromExportField(f)
					if err != nil {
						return fmt.Errorf("row %d: %w", imported, err)
					}
					values[i] = renderLiteral(v)
				}
				stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(doc.Columns, ", "), strings.Join(values, ", "))
				res := eng.Execute(stmt)
				if !res.Success {
					return fmt.Errorf("row %d: %s", imported, res.ErrorMessage)
				}
				imported++
			}
			fmt.Fprintf(os.Stdout, "imported %d row(s) into %q from %s\n", imported, table, in)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input file path (default: <table>.ledgerdb.bak)")
	return cmd
}

// fromExportField reconstructs the Value an export field was captured
// from, parsing its canonical string form according to its recorded
// Kind.
func fromExportField(f exportField) (value.Value, error) {
	switch f.Kind {
	case "NULL":
		return value.Null, nil
	case "INTEGER":
		n, err := strconv.ParseInt(f.Text, 10, 32)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewInteger(int32(n)), nil
	case "LONG":
		n, err := strconv.ParseInt(f.Text, 10, 64)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewLong(n), nil
	case "TEXT":
		return value.NewText(f.Text), nil
	case "REAL":
		n, err := strconv.ParseFloat(f.Text, 64)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewReal(n), nil
	case "DATETIME":
		t, err := time.Parse("2006-01-02 15:04:05.9999999", f.Text)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewDateTime(value.FromTime(t)), nil
	case "DECIMAL":
		d, err := value.ParseDecimal(f.Text)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewDecimal(d), nil
	default:
		return value.Value{}, fmt.Errorf("unknown export field kind %q", f.Kind)
	}
}
