// Package table implements the schema-aware layer over the storage
// package: column validation, value coercion, auto-increment and row-id
// assignment, and the streaming select/update/delete operations built
// on the chunked append and batch rewriter.
package table

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"ledgerdb/internal/codec"
	"ledgerdb/internal/logging"
	"ledgerdb/internal/storage"
	"ledgerdb/internal/value"
)

// Sentinel errors surfaced by the table engine; the SQL executor maps
// these onto its error-kind taxonomy before populating SqlResult.
var (
	ErrTableExists      = errors.New("table: already exists")
	ErrTableNotFound    = errors.New("table: not found")
	ErrNullPrimaryKey   = errors.New("table: primary key value is null")
	ErrUnknownColumn    = errors.New("table: unknown column")
	ErrNotNullViolation = errors.New("table: column does not allow null")
	ErrInvalidSchema    = errors.New("table: invalid column definition")
	ErrTypeMismatch     = errors.New("table: value does not match column type")
)

// checkpointInterval bounds how many appends may accumulate before
// metadata is flushed; a flush also happens at quiescence (explicit
// Flush at the end of each statement).
const checkpointInterval = 1000

// DefaultChunkSize is the chunk row bound new tables are created with
// unless the engine is configured otherwise.
const DefaultChunkSize = 50_000

// State models the Loaded -> Modified -> Flushed lifecycle a table handle
// moves through between metadata persists.
type State int

const (
	StateLoaded State = iota
	StateModified
	StateFlushed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateModified:
		return "modified"
	case StateFlushed:
		return "flushed"
	default:
		return "unknown"
	}
}

// Engine owns the table lifecycle (create/load/drop) over a storage
// Manager. It holds no per-table state itself; each opened Table owns its
// own in-memory metadata between flushes.
type Engine struct {
	mgr       *storage.Manager
	chunkSize int64
	log       *slog.Logger
}

// NewEngine builds a Table Engine over mgr. chunkSize is applied to newly
// created tables; zero selects DefaultChunkSize.
func NewEngine(mgr *storage.Manager, chunkSize int64, logger *slog.Logger) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	logger = logging.Default(logger)
	return &Engine{mgr: mgr, chunkSize: chunkSize, log: logger}
}

// Create validates a column schema and writes fresh, empty metadata for a
// new table. It returns ErrTableExists if a metadata sidecar already
// exists for this name.
func (e *Engine) Create(db, name string, columns []storage.ColumnDef) (*Table, error) {
	if err := validateSchema(columns); err != nil {
		return nil, err
	}
	if _, err := e.mgr.Meta.Load(db, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, name)
	}
	pkName := ""
	autoInc := map[string]int64{}
	for _, c := range columns {
		if c.PrimaryKey {
			pkName = c.Name
		}
		if c.AutoIncrement {
			autoInc[c.Name] = 1
		}
	}
	now := time.Now().UTC()
	meta := &storage.TableMetadata{
		TableName:      name,
		Columns:        columns,
		TotalRows:      0,
		NextRowID:      0,
		HasPrimaryKey:  pkName != "",
		PrimaryKeyName: pkName,
		AutoIncrement:  autoInc,
		ChunkSize:      e.chunkSize,
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	if err := e.mgr.Meta.Save(db, meta); err != nil {
		return nil, fmt.Errorf("table: persisting metadata for %s: %w", name, err)
	}
	e.log.Info("table created", "database", db, "table", name, "columns", len(columns))
	return &Table{eng: e, db: db, meta: meta, state: StateFlushed}, nil
}

// Load reads a table's metadata sidecar without scanning its chunk files.
func (e *Engine) Load(db, name string) (*Table, error) {
	meta, err := e.mgr.Meta.Load(db, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return &Table{eng: e, db: db, meta: meta, state: StateLoaded}, nil
}

// Drop removes a table's metadata and chunk files.
func (e *Engine) Drop(db, name string) error {
	return e.mgr.DropTable(db, name)
}

func validateSchema(columns []storage.ColumnDef) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: table must declare at least one column", ErrInvalidSchema)
	}
	seen := map[string]bool{}
	pkCount := 0
	for _, c := range columns {
		if c.Name == "" {
			return fmt.Errorf("%w: column name must not be empty", ErrInvalidSchema)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidSchema, c.Name)
		}
		seen[c.Name] = true
		if c.PrimaryKey {
			pkCount++
			if c.Nullable {
				return fmt.Errorf("%w: primary key column %q must not be nullable", ErrInvalidSchema, c.Name)
			}
		}
		if c.AutoIncrement {
			if c.Nullable {
				return fmt.Errorf("%w: auto-increment column %q must not be nullable", ErrInvalidSchema, c.Name)
			}
			if c.Type != codec.TypeInteger && c.Type != codec.TypeLong {
				return fmt.Errorf("%w: auto-increment column %q must be INTEGER or LONG", ErrInvalidSchema, c.Name)
			}
		}
	}
	if pkCount > 1 {
		return fmt.Errorf("%w: at most one primary key column is allowed", ErrInvalidSchema)
	}
	return nil
}

// Table is an open handle on one table's metadata, tracking the
// Loaded/Modified/Flushed state machine between persists.
type Table struct {
	eng               *Engine
	db                string
	meta              *storage.TableMetadata
	state             State
	appendsSinceFlush int64
}

func (t *Table) Name() string                    { return t.meta.TableName }
func (t *Table) Metadata() storage.TableMetadata { return *t.meta }
func (t *Table) State() State                    { return t.state }

func (t *Table) fields() []codec.Field { return t.meta.Fields() }

// columnDef looks up a declared column by name.
func (t *Table) columnDef(name string) (storage.ColumnDef, bool) {
	for _, c := range t.meta.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return storage.ColumnDef{}, false
}

// Insert validates and coerces the supplied row against the declared
// schema, assigns auto-increment values and the row identifier, and
// appends the encoded row. The returned identifier is the newly
// assigned __row_id for tables with no declared primary key, or the
// pre-append ordinal (TotalRows before this insert) otherwise.
func (t *Table) Insert(input map[string]value.Value) (int64, error) {
	row := make(map[string]value.Value, len(t.meta.Columns)+1)

	for _, c := range t.meta.Columns {
		v, present := input[c.Name]
		if !present {
			v = value.Null
		}
		if c.AutoIncrement {
			if t.meta.AutoIncrement == nil {
				t.meta.AutoIncrement = map[string]int64{}
			}
			if v.IsNull() {
				next := t.meta.NextAutoIncrement(c.Name)
				v = value.NewLong(next)
				t.meta.AutoIncrement[c.Name] = next + 1
			} else {
				n, err := coerceToInt64(v)
				if err != nil {
					return 0, fmt.Errorf("%w: column %q: %v", ErrTypeMismatch, c.Name, err)
				}
				if n < 1 {
					return 0, fmt.Errorf("%w: auto-increment column %q requires a value >= 1", ErrTypeMismatch, c.Name)
				}
				if n+1 > t.meta.NextAutoIncrement(c.Name) {
					t.meta.AutoIncrement[c.Name] = n + 1
				}
				v = coerceNumericTo(c.Type, n)
			}
		}
		if c.PrimaryKey && v.IsNull() {
			return 0, fmt.Errorf("%w: column %q", ErrNullPrimaryKey, c.Name)
		}
		if v.IsNull() && !c.Nullable {
			return 0, fmt.Errorf("%w: column %q", ErrNotNullViolation, c.Name)
		}
		coerced, err := Coerce(v, c.Type)
		if err != nil {
			return 0, fmt.Errorf("%w: column %q: %v", ErrTypeMismatch, c.Name, err)
		}
		row[c.Name] = coerced
	}
	for name := range input {
		if _, declared := t.columnDef(name); !declared {
			return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
	}

	var identifier int64
	if t.meta.HasRowIDColumn() {
		identifier = t.meta.NextRowID
		row[storage.RowIDColumn] = value.NewLong(identifier)
		t.meta.NextRowID++
	} else {
		identifier = t.meta.TotalRows
	}

	ordinal := t.meta.TotalRows
	written, err := t.eng.mgr.AppendRow(t.db, t.meta.TableName, t.meta.ChunkSize, ordinal, t.fields(), row)
	if err != nil {
		return 0, fmt.Errorf("table: appending row: %w", err)
	}
	t.meta.TotalRows++
	t.meta.EstimatedSizeBytes += written
	t.meta.LastModifiedAt = time.Now().UTC()
	t.appendsSinceFlush++
	t.state = StateModified
	if err := t.sealChunkIfFull(); err != nil {
		return 0, err
	}
	if err := t.maybeFlush(); err != nil {
		return 0, err
	}
	return identifier, nil
}

// sealChunkIfFull compacts the chunk that this insert just filled, if any.
// A chunk becomes sealed the moment TotalRows crosses a multiple of
// ChunkSize: it will never be appended to again, so it's a candidate for
// at-rest compression the instant it's full, rather than waiting for an
// explicit maintenance pass.
func (t *Table) sealChunkIfFull() error {
	if t.meta.ChunkSize <= 0 || t.meta.TotalRows%t.meta.ChunkSize != 0 {
		return nil
	}
	activeIdx := t.meta.TotalRows / t.meta.ChunkSize
	sealedIdx := activeIdx - 1
	if err := t.eng.mgr.CompactChunk(t.db, t.meta.TableName, sealedIdx, activeIdx); err != nil {
		return fmt.Errorf("table: compacting sealed chunk %d: %w", sealedIdx, err)
	}
	return nil
}

// maybeFlush persists metadata once appendsSinceFlush reaches the
// checkpoint interval, so a long append run never leaves counters more
// than one interval behind the data.
func (t *Table) maybeFlush() error {
	if t.appendsSinceFlush < checkpointInterval {
		return nil
	}
	return t.Flush()
}

// Flush persists metadata unconditionally; callers should call this at
// quiescence (e.g. after the last statement of a session, or before
// closing the engine) so a clean shutdown never loses counters.
func (t *Table) Flush() error {
	if err := t.eng.mgr.Meta.Save(t.db, t.meta); err != nil {
		return fmt.Errorf("table: flushing metadata: %w", err)
	}
	t.appendsSinceFlush = 0
	t.state = StateFlushed
	return nil
}

// Predicate decides whether a row (including the hidden __row_id field,
// when present) should be included. A nil Predicate matches every row.
type Predicate func(row map[string]value.Value) bool

// SelectOptions controls the Select streaming operation. A nil Projection
// selects every declared column (the hidden row-id column is included
// only when explicitly named).
type SelectOptions struct {
	Projection []string
	Where      Predicate
	OrderBy    string
	Descending bool
	Limit      int64 // <0 means unlimited
	Skip       int64
}

// Row pairs a decoded row with the ordinal position it was read at,
// mirroring the storage cursor's (rowId, row) read contract.
type Row struct {
	Ordinal int64
	Values  map[string]value.Value
}

// Select streams rows matching opts.Where, in insertion order unless
// OrderBy is set. Without OrderBy, rows are read chunk by chunk and
// reading stops as soon as Skip+Limit rows have matched; with OrderBy, the filtered set is
// materialized and sorted before Skip/Limit are applied, since a total
// order requires seeing every candidate row first.
func (t *Table) Select(opts SelectOptions) ([]Row, error) {
	skip := opts.Skip
	if skip < 0 {
		skip = 0
	}
	// With no predicate and no ordering, the skip is pushed down to the
	// storage cursor: the first relevant chunk index is computed from
	// the skip count so earlier chunks are never opened. A predicate
	// invalidates the arithmetic (skip counts matching rows, not stored
	// rows), so it streams from the start in that case.
	startAt := int64(0)
	if opts.Where == nil && opts.OrderBy == "" && skip > 0 {
		startAt = skip
		skip = 0
	}
	cur, err := t.eng.mgr.OpenCursorAt(t.db, t.meta.TableName, t.fields(), t.meta.ChunkSize, startAt)
	if err != nil {
		return nil, fmt.Errorf("table: opening cursor: %w", err)
	}
	defer cur.Close()

	var matched []Row
	ordinal := startAt
	for {
		raw, err := cur.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table: reading rows: %w", err)
		}
		row := raw
		pos := ordinal
		ordinal++
		if opts.Where != nil && !opts.Where(row) {
			continue
		}
		matched = append(matched, Row{Ordinal: pos, Values: row})
		if opts.OrderBy == "" {
			if opts.Limit >= 0 && int64(len(matched)) >= skip+opts.Limit {
				break
			}
		}
	}
	if opts.OrderBy != "" {
		sortRows(matched, opts.OrderBy, opts.Descending)
	}
	matched = applySkipLimit(matched, skip, opts.Limit)
	for i := range matched {
		matched[i].Values = project(matched[i].Values, opts.Projection, t.meta.HasRowIDColumn())
	}
	return matched, nil
}

func applySkipLimit(rows []Row, skip, limit int64) []Row {
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(rows)) {
		return nil
	}
	rows = rows[skip:]
	if limit < 0 || limit >= int64(len(rows)) {
		return rows
	}
	return rows[:limit]
}

func sortRows(rows []Row, column string, desc bool) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Values[column], rows[j].Values[column]
		c := value.CompareValues(a, b)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// project narrows a decoded row to the requested projection, hiding the
// hidden row-id column unless it is explicitly named.
func project(row map[string]value.Value, projection []string, hasRowID bool) map[string]value.Value {
	if projection == nil {
		if !hasRowID {
			return row
		}
		out := make(map[string]value.Value, len(row))
		for k, v := range row {
			if k == storage.RowIDColumn {
				continue
			}
			out[k] = v
		}
		return out
	}
	out := make(map[string]value.Value, len(projection))
	for _, name := range projection {
		out[name] = row[name]
	}
	return out
}

// Update applies assignments to every row matching predicate via the
// single-pass batch rewriter, returning the number of rows touched.
func (t *Table) Update(assignments map[string]value.Value, predicate Predicate) (int64, error) {
	// Coerce every assignment against its destination column up front, so
	// a bad value fails the whole statement before a single row is
	// rewritten; rows keep their pre-update bytes on error.
	coerced := make(map[string]value.Value, len(assignments))
	for name, v := range assignments {
		col, ok := t.columnDef(name)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
		}
		if v.IsNull() {
			if !col.Nullable {
				return 0, fmt.Errorf("%w: column %q", ErrNotNullViolation, col.Name)
			}
			coerced[name] = value.Null
			continue
		}
		c, err := Coerce(v, col.Type)
		if err != nil {
			return 0, fmt.Errorf("%w: column %q: %v", ErrTypeMismatch, col.Name, err)
		}
		coerced[name] = c
	}
	var touched int64
	fn := func(row map[string]value.Value) (map[string]value.Value, bool) {
		if predicate != nil && !predicate(row) {
			return row, true
		}
		for name, v := range coerced {
			row[name] = v
		}
		touched++
		return row, true
	}
	result, err := t.eng.mgr.ProcessBatch(t.db, t.meta.TableName, t.meta.ChunkSize, t.fields(), fn)
	if err != nil {
		return 0, fmt.Errorf("table: batch update: %w", err)
	}
	t.meta.TotalRows = result.RowsKept
	t.meta.EstimatedSizeBytes = result.BytesKept
	t.meta.LastModifiedAt = time.Now().UTC()
	t.state = StateModified
	if err := t.Flush(); err != nil {
		return 0, err
	}
	return touched, nil
}

// Delete removes every row matching predicate. With a nil predicate it
// takes a fast path: drop every chunk file and reset TotalRows, without
// reading a single row; auto-increment counters and schema survive.
func (t *Table) Delete(predicate Predicate) (int64, error) {
	if predicate == nil {
		touched := t.meta.TotalRows
		if err := t.eng.mgr.DropTable(t.db, t.meta.TableName); err != nil {
			return 0, fmt.Errorf("table: clearing table: %w", err)
		}
		t.meta.TotalRows = 0
		t.meta.EstimatedSizeBytes = 0
		t.meta.LastModifiedAt = time.Now().UTC()
		t.state = StateModified
		if err := t.Flush(); err != nil {
			return 0, err
		}
		return touched, nil
	}
	var touched int64
	fn := func(row map[string]value.Value) (map[string]value.Value, bool) {
		if predicate(row) {
			touched++
			return nil, false
		}
		return row, true
	}
	result, err := t.eng.mgr.ProcessBatch(t.db, t.meta.TableName, t.meta.ChunkSize, t.fields(), fn)
	if err != nil {
		return 0, fmt.Errorf("table: batch delete: %w", err)
	}
	t.meta.TotalRows = result.RowsKept
	t.meta.EstimatedSizeBytes = result.BytesKept
	t.meta.LastModifiedAt = time.Now().UTC()
	t.state = StateModified
	if err := t.Flush(); err != nil {
		return 0, err
	}
	return touched, nil
}

// Count streams the table, returning the number of rows matching
// predicate (or the table's total row count when predicate is nil, read
// straight from metadata without a scan).
func (t *Table) Count(predicate Predicate) (int64, error) {
	if predicate == nil {
		return t.meta.TotalRows, nil
	}
	cur, err := t.eng.mgr.OpenCursor(t.db, t.meta.TableName, t.fields())
	if err != nil {
		return 0, fmt.Errorf("table: opening cursor: %w", err)
	}
	defer cur.Close()
	var n int64
	for {
		row, err := cur.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("table: reading rows: %w", err)
		}
		if predicate(row) {
			n++
		}
	}
	return n, nil
}

// Repair recounts the well-formed framed rows on disk and, if the count
// disagrees with the metadata's TotalRows (e.g. after a crash between a
// chunk rewrite and the metadata flush, or after resyncing past a
// corrupted row), corrects TotalRows in place and persists the repaired
// sidecar. It returns the verified on-disk row count.
func (t *Table) Repair() (int64, error) {
	cur, err := t.eng.mgr.OpenCursor(t.db, t.meta.TableName, t.fields())
	if err != nil {
		return 0, fmt.Errorf("table: opening cursor: %w", err)
	}
	defer cur.Close()
	var n int64
	for {
		_, err := cur.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("table: reading rows: %w", err)
		}
		n++
	}
	if n == t.meta.TotalRows {
		return n, nil
	}
	t.eng.log.Warn("repairing row count",
		"table", t.meta.TableName,
		"metadata", t.meta.TotalRows,
		"on_disk", n,
		"resynced", cur.Corrupted())
	t.meta.TotalRows = n
	t.meta.LastModifiedAt = time.Now().UTC()
	t.state = StateModified
	if err := t.Flush(); err != nil {
		return 0, err
	}
	return n, nil
}
