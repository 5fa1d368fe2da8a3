package sqlexec

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"ledgerdb/internal/codec"
	"ledgerdb/internal/logging"
	"ledgerdb/internal/predicate"
	"ledgerdb/internal/sqlparse"
	"ledgerdb/internal/storage"
	"ledgerdb/internal/table"
	"ledgerdb/internal/value"
)

// Executor dispatches parsed statements against a table Engine and
// storage Manager, composing the join/ordering/projection behavior the
// table engine itself doesn't know about.
type Executor struct {
	mgr    *storage.Manager
	tables *table.Engine
	log    *slog.Logger
}

func NewExecutor(mgr *storage.Manager, tables *table.Engine, logger *slog.Logger) *Executor {
	logger = logging.Default(logger)
	return &Executor{mgr: mgr, tables: tables, log: logger}
}

// Execute parses and runs one SQL statement against currentDB, returning
// the result and the database name that should become current afterwards
// (USE changes it, and a DROP DATABASE of the current database clears it
// to ""; every other statement returns currentDB unchanged).
func (e *Executor) Execute(sqlText, currentDB string) (SqlResult, string) {
	stmt, err := sqlparse.Parse(sqlText)
	if err != nil {
		return failResult(KindParseError, err), currentDB
	}
	switch s := stmt.(type) {
	case sqlparse.CreateDatabaseStmt:
		if err := e.mgr.CreateDatabase(s.Name); err != nil {
			return failResult(KindStorageError, err), currentDB
		}
		return okMessage(fmt.Sprintf("database %q created", s.Name)), currentDB
	case sqlparse.DropDatabaseStmt:
		if err := e.mgr.DeleteDatabase(s.Name); err != nil {
			return failResult(KindStorageError, err), currentDB
		}
		next := currentDB
		if s.Name == currentDB {
			next = ""
		}
		return okMessage(fmt.Sprintf("database %q dropped", s.Name)), next
	case sqlparse.UseStmt:
		dbs, err := e.mgr.ListDatabases()
		if err != nil {
			return failResult(KindStorageError, err), currentDB
		}
		if !contains(dbs, s.Name) {
			return failResult(KindArgumentError, fmt.Errorf("database %q does not exist", s.Name)), currentDB
		}
		return okMessage(fmt.Sprintf("using database %q", s.Name)), s.Name
	case sqlparse.ShowTablesStmt:
		tables, err := e.mgr.ListTables(currentDB)
		if err != nil {
			return failResult(KindStorageError, err), currentDB
		}
		return okTables(tables), currentDB
	case sqlparse.ShowDatabasesStmt:
		dbs, err := e.mgr.ListDatabases()
		if err != nil {
			return failResult(KindStorageError, err), currentDB
		}
		return okDatabases(dbs), currentDB
	case sqlparse.QuitStmt:
		return okMessage("bye"), currentDB
	case sqlparse.CreateTableStmt:
		return e.execCreateTable(currentDB, s), currentDB
	case sqlparse.DropTableStmt:
		if err := e.tables.Drop(currentDB, s.Name); err != nil {
			return failResult(classify(err), err), currentDB
		}
		return okMessage(fmt.Sprintf("table %q dropped", s.Name)), currentDB
	case sqlparse.InsertStmt:
		return e.execInsert(currentDB, s), currentDB
	case sqlparse.SelectStmt:
		return e.execSelect(currentDB, s), currentDB
	case sqlparse.UpdateStmt:
		return e.execUpdate(currentDB, s), currentDB
	case sqlparse.DeleteStmt:
		return e.execDelete(currentDB, s), currentDB
	default:
		return failResult(KindNotSupported, fmt.Errorf("unsupported statement %T", stmt)), currentDB
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var columnTypeNames = map[string]codec.ColumnType{
	"INTEGER": codec.TypeInteger,
	"LONG":    codec.TypeLong,
	"TEXT":    codec.TypeText,
	"REAL":    codec.TypeReal,
}

func (e *Executor) execCreateTable(db string, s sqlparse.CreateTableStmt) SqlResult {
	columns := make([]storage.ColumnDef, 0, len(s.Columns))
	for _, c := range s.Columns {
		t, ok := columnTypeNames[strings.ToUpper(c.Type)]
		if !ok {
			return failResult(KindSchemaError, fmt.Errorf("%w: unrecognized column type %q", table.ErrInvalidSchema, c.Type))
		}
		columns = append(columns, storage.ColumnDef{
			Name:          c.Name,
			Type:          t,
			Nullable:      !c.NotNull && !c.PrimaryKey,
			PrimaryKey:    c.PrimaryKey,
			AutoIncrement: c.AutoIncrement,
		})
	}
	_, err := e.tables.Create(db, s.Name, columns)
	if err != nil {
		if s.IfNotExists && errors.Is(err, table.ErrTableExists) {
			return okMessage(fmt.Sprintf("table %q already exists", s.Name))
		}
		return failResult(classify(err), err)
	}
	return okMessage(fmt.Sprintf("table %q created", s.Name))
}

func (e *Executor) execInsert(db string, s sqlparse.InsertStmt) SqlResult {
	tbl, err := e.tables.Load(db, s.Table)
	if err != nil {
		return failResult(classify(err), err)
	}
	row := make(map[string]value.Value)
	if s.Columns != nil {
		if len(s.Columns) != len(s.Values) {
			return failResult(KindArgumentError, fmt.Errorf("column list has %d entries but VALUES has %d", len(s.Columns), len(s.Values)))
		}
		for i, col := range s.Columns {
			row[col] = s.Values[i]
		}
	} else {
		meta := tbl.Metadata()
		if len(s.Values) != len(meta.Columns) {
			return failResult(KindArgumentError, fmt.Errorf("expected %d values, got %d", len(meta.Columns), len(s.Values)))
		}
		for i, col := range meta.Columns {
			row[col.Name] = s.Values[i]
		}
	}
	if _, err := tbl.Insert(row); err != nil {
		return failResult(classify(err), err)
	}
	// The statement boundary is this table handle's quiescence point:
	// counters must be durable before the handle is discarded.
	if err := tbl.Flush(); err != nil {
		return failResult(classify(err), err)
	}
	return okRowsAffected(1, "1 row inserted")
}

func (e *Executor) execUpdate(db string, s sqlparse.UpdateStmt) SqlResult {
	tbl, err := e.tables.Load(db, s.Table)
	if err != nil {
		return failResult(classify(err), err)
	}
	assignments := make(map[string]value.Value, len(s.Assignments))
	for _, a := range s.Assignments {
		assignments[a.Column] = a.Value
	}
	touched, err := tbl.Update(assignments, compileWhere(s.Where))
	if err != nil {
		return failResult(classify(err), err)
	}
	return okRowsAffected(touched, fmt.Sprintf("%d row(s) updated", touched))
}

func (e *Executor) execDelete(db string, s sqlparse.DeleteStmt) SqlResult {
	tbl, err := e.tables.Load(db, s.Table)
	if err != nil {
		return failResult(classify(err), err)
	}
	touched, err := tbl.Delete(compileWhere(s.Where))
	if err != nil {
		return failResult(classify(err), err)
	}
	return okRowsAffected(touched, fmt.Sprintf("%d row(s) deleted", touched))
}

func (e *Executor) execSelect(db string, s sqlparse.SelectStmt) SqlResult {
	if len(s.Joins) == 0 {
		return e.execSelectSingleTable(db, s)
	}
	return e.execSelectJoined(db, s)
}

func (e *Executor) execSelectSingleTable(db string, s sqlparse.SelectStmt) SqlResult {
	tbl, err := e.tables.Load(db, s.From)
	if err != nil {
		return failResult(classify(err), err)
	}
	if isCountStar(s.Projection) {
		n, err := tbl.Count(compileWhere(s.Where))
		if err != nil {
			return failResult(classify(err), err)
		}
		return okTabular([]string{"COUNT"}, [][]value.Value{{value.NewLong(n)}})
	}
	limit := int64(-1)
	if s.Limit != nil {
		limit = *s.Limit
	}
	rows, err := tbl.Select(table.SelectOptions{
		Projection: explicitColumns(s.Projection),
		Where:      compileWhere(s.Where),
		OrderBy:    s.OrderBy,
		Descending: s.Descending,
		Limit:      limit,
	})
	if err != nil {
		return failResult(classify(err), err)
	}
	columns := projectionColumns(s.Projection, tbl.Metadata(), "")
	out := make([][]value.Value, 0, len(rows))
	for _, r := range rows {
		out = append(out, projectRow(s.Projection, r.Values, "", tbl.Metadata()))
	}
	return okTabular(columns, out)
}

func isCountStar(items []sqlparse.ProjItem) bool {
	return len(items) == 1 && items[0].Kind == sqlparse.ProjCountStar
}

// compileWhere preserves nil-ness: a missing WHERE clause compiles to a
// nil Predicate so the table engine keeps its no-predicate fast paths
// (metadata-only COUNT, whole-table delete, chunk-arithmetic skip).
func compileWhere(cmp *sqlparse.Comparison) table.Predicate {
	if cmp == nil {
		return nil
	}
	return predicate.Compile(cmp)
}

// explicitColumns lists the columns a projection names when every item
// is a bare column or LEN(col), so explicitly requested hidden columns
// (e.g. __row_id) survive into the result. A star projection returns
// nil, selecting the table engine's default of every declared column
// with the hidden row id stripped.
func explicitColumns(items []sqlparse.ProjItem) []string {
	var cols []string
	seen := map[string]bool{}
	for _, item := range items {
		switch item.Kind {
		case sqlparse.ProjColumn, sqlparse.ProjLen:
			if !seen[item.Column] {
				seen[item.Column] = true
				cols = append(cols, item.Column)
			}
		default:
			return nil
		}
	}
	return cols
}

// projectionColumns computes the output column header list. alias, when
// non-empty, is the single table's own name and is currently unused for
// the unqualified (no-join) path; it exists so join callers can reuse
// this for qualified headers in future composition.
func projectionColumns(items []sqlparse.ProjItem, meta storage.TableMetadata, alias string) []string {
	if len(items) == 1 && items[0].Kind == sqlparse.ProjStar {
		var cols []string
		for _, c := range meta.Columns {
			cols = append(cols, c.Name)
		}
		return cols
	}
	var cols []string
	for _, item := range items {
		switch item.Kind {
		case sqlparse.ProjColumn:
			cols = append(cols, item.Column)
		case sqlparse.ProjLen:
			cols = append(cols, fmt.Sprintf("LEN(%s)", item.Column))
		case sqlparse.ProjCountStar:
			cols = append(cols, "COUNT")
		}
	}
	return cols
}

func projectRow(items []sqlparse.ProjItem, row map[string]value.Value, alias string, meta storage.TableMetadata) []value.Value {
	if len(items) == 1 && items[0].Kind == sqlparse.ProjStar {
		out := make([]value.Value, 0, len(meta.Columns))
		for _, c := range meta.Columns {
			out = append(out, row[c.Name])
		}
		return out
	}
	out := make([]value.Value, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case sqlparse.ProjColumn:
			out = append(out, row[item.Column])
		case sqlparse.ProjLen:
			out = append(out, value.NewInteger(int32(row[item.Column].Len())))
		}
	}
	return out
}

// joinedRow is a row merged across a chain of joins, keyed by fully
// qualified "table.column" names.
type joinedRow map[string]value.Value

func (e *Executor) execSelectJoined(db string, s sqlparse.SelectStmt) SqlResult {
	leftTbl, err := e.tables.Load(db, s.From)
	if err != nil {
		return failResult(classify(err), err)
	}
	leftRows, err := leftTbl.Select(table.SelectOptions{Limit: -1})
	if err != nil {
		return failResult(classify(err), err)
	}
	merged := make([]joinedRow, 0, len(leftRows))
	for _, r := range leftRows {
		merged = append(merged, qualify(r.Values, s.From))
	}
	tableOrder := []string{s.From}
	tableMeta := map[string]storage.TableMetadata{s.From: leftTbl.Metadata()}

	for _, join := range s.Joins {
		rightTbl, err := e.tables.Load(db, join.Table)
		if err != nil {
			return failResult(classify(err), err)
		}
		rightRows, err := rightTbl.Select(table.SelectOptions{Limit: -1})
		if err != nil {
			return failResult(classify(err), err)
		}
		rightCol := bareColumn(join.RightCol)
		var next []joinedRow
		for _, left := range merged {
			leftVal := left[join.LeftCol]
			matches := matchJoinKey(leftVal, rightRows, rightCol)
			if len(matches) == 0 {
				if join.Kind == sqlparse.JoinLeft {
					combined := cloneJoined(left)
					for _, c := range rightTbl.Metadata().Columns {
						combined[join.Table+"."+c.Name] = value.Null
					}
					next = append(next, combined)
				}
				continue
			}
			for _, m := range matches {
				combined := cloneJoined(left)
				for k, v := range qualify(m, join.Table) {
					combined[k] = v
				}
				next = append(next, combined)
			}
		}
		merged = next
		tableOrder = append(tableOrder, join.Table)
		tableMeta[join.Table] = rightTbl.Metadata()
	}

	var filtered []joinedRow
	for _, row := range merged {
		if s.Where != nil && !predicate.Eval(s.Where, row) {
			continue
		}
		filtered = append(filtered, row)
	}

	if isCountStar(s.Projection) {
		return okTabular([]string{"COUNT"}, [][]value.Value{{value.NewLong(int64(len(filtered)))}})
	}

	if s.OrderBy != "" {
		sort.SliceStable(filtered, func(i, j int) bool {
			a, b := filtered[i][s.OrderBy], filtered[j][s.OrderBy]
			c := value.CompareValues(a, b)
			if s.Descending {
				return c > 0
			}
			return c < 0
		})
	}

	limit := int64(-1)
	if s.Limit != nil {
		limit = *s.Limit
	}
	rows := make([]map[string]value.Value, len(filtered))
	for i, r := range filtered {
		rows[i] = r
	}
	rows = applySkipLimit(rows, 0, limit)

	columns := joinedProjectionColumns(s.Projection, tableOrder, tableMeta)
	out := make([][]value.Value, 0, len(rows))
	for _, r := range rows {
		out = append(out, joinedProjectRow(s.Projection, r, tableOrder, tableMeta))
	}
	return okTabular(columns, out)
}

func applySkipLimit(rows []map[string]value.Value, skip, limit int64) []map[string]value.Value {
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

// matchJoinKey scans rightRows for every row whose rightCol value equals
// leftVal under the engine's typed comparison (value.CompareNonNull),
// the same numeric-widening rule WHERE predicates and ORDER BY already
// use, rather than comparing canonical string forms. A NULL on either
// side never matches, including NULL against NULL; WHERE's both-null
// `=` rule governs literal comparisons only, not table-to-table joins.
func matchJoinKey(leftVal value.Value, rightRows []table.Row, rightCol string) []map[string]value.Value {
	if leftVal.IsNull() {
		return nil
	}
	var matches []map[string]value.Value
	for _, r := range rightRows {
		rightVal := r.Values[rightCol]
		if rightVal.IsNull() {
			continue
		}
		if value.CompareNonNull(leftVal, rightVal) == 0 {
			matches = append(matches, r.Values)
		}
	}
	return matches
}

func qualify(row map[string]value.Value, tableName string) joinedRow {
	out := make(joinedRow, len(row))
	for k, v := range row {
		out[tableName+"."+k] = v
	}
	return out
}

func cloneJoined(row joinedRow) joinedRow {
	out := make(joinedRow, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func bareColumn(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

// joinedProjectionColumns computes headers for a joined SELECT: ProjStar
// expands to every table's declared columns, in join order, fully
// qualified.
func joinedProjectionColumns(items []sqlparse.ProjItem, tableOrder []string, tableMeta map[string]storage.TableMetadata) []string {
	if len(items) == 1 && items[0].Kind == sqlparse.ProjStar {
		var cols []string
		for _, tn := range tableOrder {
			for _, c := range tableMeta[tn].Columns {
				cols = append(cols, tn+"."+c.Name)
			}
		}
		return cols
	}
	var cols []string
	for _, item := range items {
		switch item.Kind {
		case sqlparse.ProjColumn:
			cols = append(cols, item.Column)
		case sqlparse.ProjLen:
			cols = append(cols, fmt.Sprintf("LEN(%s)", item.Column))
		}
	}
	return cols
}

func joinedProjectRow(items []sqlparse.ProjItem, row map[string]value.Value, tableOrder []string, tableMeta map[string]storage.TableMetadata) []value.Value {
	if len(items) == 1 && items[0].Kind == sqlparse.ProjStar {
		var out []value.Value
		for _, tn := range tableOrder {
			for _, c := range tableMeta[tn].Columns {
				out = append(out, row[tn+"."+c.Name])
			}
		}
		return out
	}
	out := make([]value.Value, 0, len(items))
	for _, item := range items {
		switch item.Kind {
		case sqlparse.ProjColumn:
			out = append(out, row[item.Column])
		case sqlparse.ProjLen:
			out = append(out, value.NewInteger(int32(row[item.Column].Len())))
		}
	}
	return out
}
