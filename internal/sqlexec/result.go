// Package sqlexec routes parsed statements to the table engine,
// composes joins/ordering/limit/projection, and shapes every outcome
// into a single SqlResult.
package sqlexec

import "ledgerdb/internal/value"

// SqlResult is the engine's sole output shape: exactly one of the
// message/tabular/list forms is populated, per the external-interface
// contract.
type SqlResult struct {
	Success      bool
	Message      string
	ErrorMessage string
	Columns      []string
	Rows         [][]value.Value
	RowsAffected int64
	Tables       []string
	Databases    []string
}

func okMessage(msg string) SqlResult {
	return SqlResult{Success: true, Message: msg}
}

func okRowsAffected(n int64, msg string) SqlResult {
	return SqlResult{Success: true, Message: msg, RowsAffected: n}
}

func okTabular(columns []string, rows [][]value.Value) SqlResult {
	return SqlResult{Success: true, Columns: columns, Rows: rows}
}

func okTables(tables []string) SqlResult {
	return SqlResult{Success: true, Tables: tables}
}

func okDatabases(databases []string) SqlResult {
	return SqlResult{Success: true, Databases: databases}
}

func failResult(kind ErrorKind, err error) SqlResult {
	return SqlResult{Success: false, ErrorMessage: formatError(kind, err)}
}
