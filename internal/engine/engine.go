// Package engine is the embedding application's sole entry point: it
// wires the storage manager, table engine, and SQL executor together and
// owns the one piece of state none of those components track themselves
// — which database is current.
package engine

import (
	"log/slog"

	"ledgerdb/internal/logging"
	"ledgerdb/internal/sqlexec"
	"ledgerdb/internal/storage"
	"ledgerdb/internal/table"
)

// Config is the declarative shape of an Engine: where it stores data and
// how its table engine is tuned. It carries no behavior of its own —
// New is what turns it into running components.
type Config struct {
	// BaseDir is the root directory all databases live under.
	BaseDir string
	// ChunkSize is the row count per data chunk; zero uses
	// table.DefaultChunkSize.
	ChunkSize int64
	// Logger receives lifecycle events from every wired component. A nil
	// Logger is replaced with logging.Discard().
	Logger *slog.Logger
}

// Engine is the top-level, single-writer embedding surface: one Execute
// call in, one SqlResult out, plus the listing/statistics methods the
// external interface contract names. It is not safe for concurrent
// mutating calls from multiple goroutines.
type Engine struct {
	mgr     *storage.Manager
	tables  *table.Engine
	exec    *sqlexec.Executor
	log     *slog.Logger
	current string
}

// DefaultDatabase always exists: it is created (if missing) on every New
// and selected as the initial current database.
const DefaultDatabase = "default"

// New constructs an Engine from cfg, creating the default database if it
// doesn't already exist on disk and selecting it as current. Callers may
// still issue CREATE DATABASE / USE through Execute to work with others.
func New(cfg Config) *Engine {
	logger := logging.Default(cfg.Logger).With("component", "engine")
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = table.DefaultChunkSize
	}
	mgr := storage.NewManager(cfg.BaseDir, logger)
	tables := table.NewEngine(mgr, chunkSize, logger)
	exec := sqlexec.NewExecutor(mgr, tables, logger)
	if err := mgr.CreateDatabase(DefaultDatabase); err != nil {
		logger.Warn("failed to ensure default database", "error", err)
	}
	return &Engine{mgr: mgr, tables: tables, exec: exec, log: logger, current: DefaultDatabase}
}

// Execute runs one SQL statement (or dot-command) against the engine's
// current database, per the external execute(sqlText) → SqlResult
// contract. USE statements update CurrentDatabase() as a side effect.
func (e *Engine) Execute(sqlText string) sqlexec.SqlResult {
	result, next := e.exec.Execute(sqlText, e.current)
	e.current = next
	return result
}

// CurrentDatabase returns the database name Execute currently targets.
// It is DefaultDatabase immediately after New, and "" only once a DROP
// DATABASE of the current database has left nothing selected.
func (e *Engine) CurrentDatabase() string {
	return e.current
}

// ClearCurrentDatabase drops every table in the current database, per
// the external execute/listing contract. It leaves the current-database
// selection untouched — only the tables are removed. If no database is
// currently selected, it is a no-op.
func (e *Engine) ClearCurrentDatabase() error {
	if e.current == "" {
		return nil
	}
	names, err := e.mgr.ListTables(e.current)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := e.tables.Drop(e.current, name); err != nil {
			return err
		}
	}
	return nil
}

// ListDatabases returns every database directory under the engine's base
// directory.
func (e *Engine) ListDatabases() ([]string, error) {
	return e.mgr.ListDatabases()
}

// ListTables returns every table defined in db.
func (e *Engine) ListTables(db string) ([]string, error) {
	return e.mgr.ListTables(db)
}

// Statistics summarizes db: the number of tables it holds and the sum of
// their declared row counts.
type Statistics struct {
	TableCount int
	TotalRows  int64
}

// Statistics computes aggregate counters for db by loading every table's
// metadata sidecar; it does not stream row data.
func (e *Engine) Statistics(db string) (Statistics, error) {
	names, err := e.mgr.ListTables(db)
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{TableCount: len(names)}
	for _, name := range names {
		tbl, err := e.tables.Load(db, name)
		if err != nil {
			return Statistics{}, err
		}
		stats.TotalRows += tbl.Metadata().TotalRows
	}
	return stats, nil
}

// CurrentStatistics reports Statistics for the currently selected
// database.
func (e *Engine) CurrentStatistics() (Statistics, error) {
	return e.Statistics(e.current)
}

// Repair verifies a table's metadata row count against the framed rows
// actually on disk and corrects the sidecar if they disagree (a crash
// between a chunk rewrite and the metadata flush can leave it stale). It
// returns the verified row count.
func (e *Engine) Repair(db, name string) (int64, error) {
	tbl, err := e.tables.Load(db, name)
	if err != nil {
		return 0, err
	}
	return tbl.Repair()
}
