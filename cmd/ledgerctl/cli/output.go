package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"ledgerdb/internal/sqlexec"
)

var errMissingDB = errors.New("--db is required")

// printer handles table or JSON output, matching the table/json split
// used throughout the wider example pack's admin tooling.
type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string) *printer {
	return &printer{format: format, w: os.Stdout}
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) table(header []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for i, h := range header {
		if i > 0 {
			_, _ = fmt.Fprint(tw, "\t")
		}
		_, _ = fmt.Fprint(tw, h)
	}
	_, _ = fmt.Fprintln(tw)
	for _, row := range rows {
		for i, col := range row {
			if i > 0 {
				_, _ = fmt.Fprint(tw, "\t")
			}
			_, _ = fmt.Fprint(tw, col)
		}
		_, _ = fmt.Fprintln(tw)
	}
	_ = tw.Flush()
}

func (p *printer) kv(pairs [][2]string) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	for _, pair := range pairs {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", pair[0], pair[1])
	}
	_ = tw.Flush()
}

func (p *printer) list(items []string) {
	for _, item := range items {
		_, _ = fmt.Fprintln(p.w, item)
	}
}

// printResult renders a SqlResult per the selected output format. json
// mode dumps the whole result; table mode picks whichever of
// Tables/Databases/Rows is populated.
func printResult(format string, res sqlexec.SqlResult) error {
	p := newPrinter(format)
	if !res.Success {
		return fmt.Errorf("%s", res.ErrorMessage)
	}
	if format == "json" {
		return p.json(res)
	}
	switch {
	case res.Tables != nil:
		p.list(res.Tables)
	case res.Databases != nil:
		p.list(res.Databases)
	case res.Columns != nil:
		rows := make([][]string, 0, len(res.Rows))
		for _, row := range res.Rows {
			cols := make([]string, len(row))
			for i, v := range row {
				cols[i] = v.String()
			}
			rows = append(rows, cols)
		}
		p.table(res.Columns, rows)
	case res.RowsAffected > 0 || res.Message != "":
		_, _ = fmt.Fprintln(p.w, res.Message)
	default:
		_, _ = fmt.Fprintln(p.w, "ok")
	}
	return nil
}
