package table

import (
	"os"
	"testing"

	"ledgerdb/internal/codec"
	"ledgerdb/internal/storage"
	"ledgerdb/internal/value"
)

func newTestEngine(t *testing.T) (*Engine, *storage.Manager) {
	t.Helper()
	mgr := storage.NewManager(t.TempDir(), nil)
	if err := mgr.CreateDatabase("default"); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	return NewEngine(mgr, 4, nil), mgr
}

func ordersSchema() []storage.ColumnDef {
	return []storage.ColumnDef{
		{Name: "id", Type: codec.TypeInteger, PrimaryKey: true, AutoIncrement: true},
		{Name: "customer", Type: codec.TypeText},
		{Name: "total", Type: codec.TypeReal, Nullable: true},
	}
}

func TestCreateRejectsInvalidSchema(t *testing.T) {
	eng, _ := newTestEngine(t)
	bad := []storage.ColumnDef{
		{Name: "id", Type: codec.TypeInteger, AutoIncrement: true, Nullable: true},
	}
	if _, err := eng.Create("default", "orders", bad); err == nil {
		t.Fatal("expected error for nullable auto-increment column")
	}
}

func TestCreateThenLoadRoundTrip(t *testing.T) {
	eng, _ := newTestEngine(t)
	if _, err := eng.Create("default", "orders", ordersSchema()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	tbl, err := eng.Load("default", "orders")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Metadata().TotalRows != 0 {
		t.Errorf("fresh table totalRows = %d, want 0", tbl.Metadata().TotalRows)
	}
}

func TestInsertAssignsAutoIncrementAndRowOrdinal(t *testing.T) {
	eng, _ := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	id1, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("Ada")})
	if err != nil {
		t.Fatalf("Insert 1: %v", err)
	}
	id2, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("Lin")})
	if err != nil {
		t.Fatalf("Insert 2: %v", err)
	}
	if id1 != 0 || id2 != 1 {
		t.Errorf("ordinals = %d, %d; want 0, 1", id1, id2)
	}
	if got := tbl.Metadata().AutoIncrement["id"]; got != 3 {
		t.Errorf("autoIncrement[id] = %d, want 3", got)
	}
}

func TestInsertNullPrimaryKeyRejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	schema := []storage.ColumnDef{
		{Name: "code", Type: codec.TypeText, PrimaryKey: true},
	}
	tbl, err := eng.Create("default", "codes", schema)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Insert(map[string]value.Value{}); err == nil {
		t.Fatal("expected ErrNullPrimaryKey")
	}
}

func TestInsertUnknownColumnRejected(t *testing.T) {
	eng, _ := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("x"), "bogus": value.NewInteger(1)}); err == nil {
		t.Fatal("expected ErrUnknownColumn")
	}
}

func TestNoPrimaryKeyAssignsHiddenRowID(t *testing.T) {
	eng, _ := newTestEngine(t)
	schema := []storage.ColumnDef{
		{Name: "note", Type: codec.TypeText},
	}
	tbl, err := eng.Create("default", "notes", schema)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := tbl.Insert(map[string]value.Value{"note": value.NewText("n")}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	rows, err := tbl.Select(SelectOptions{Limit: -1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	for _, r := range rows {
		if _, present := r.Values[storage.RowIDColumn]; present {
			t.Errorf("hidden row id column leaked into unprojected select: %+v", r.Values)
		}
	}
}

func TestSelectOrderByDescending(t *testing.T) {
	eng, _ := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, total := range []float64{10, 30, 20} {
		if _, err := tbl.Insert(map[string]value.Value{
			"customer": value.NewText("c"),
			"total":    value.NewReal(total),
		}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	rows, err := tbl.Select(SelectOptions{OrderBy: "total", Descending: true, Limit: -1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	want := []float64{30, 20, 10}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, w := range want {
		if rows[i].Values["total"].Real != w {
			t.Errorf("row %d: total = %v, want %v", i, rows[i].Values["total"].Real, w)
		}
	}
}

func TestUpdateAndDeleteWithPredicate(t *testing.T) {
	eng, _ := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 6; i++ {
		if _, err := tbl.Insert(map[string]value.Value{
			"customer": value.NewText("c"),
			"total":    value.NewReal(float64(i)),
		}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	pred := func(row map[string]value.Value) bool {
		return row["total"].Real >= 3
	}
	touched, err := tbl.Update(map[string]value.Value{"customer": value.NewText("updated")}, pred)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if touched != 3 {
		t.Fatalf("updated %d rows, want 3", touched)
	}
	deleted, err := tbl.Delete(pred)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("deleted %d rows, want 3", deleted)
	}
	if tbl.Metadata().TotalRows != 3 {
		t.Fatalf("totalRows after delete = %d, want 3", tbl.Metadata().TotalRows)
	}
}

func TestDeleteWithoutPredicateClearsTable(t *testing.T) {
	eng, _ := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("c")}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	deleted, err := tbl.Delete(nil)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("deleted %d rows, want 5", deleted)
	}
	if tbl.Metadata().TotalRows != 0 {
		t.Fatalf("totalRows after clear = %d, want 0", tbl.Metadata().TotalRows)
	}
}

func TestCountWithAndWithoutPredicate(t *testing.T) {
	eng, _ := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := tbl.Insert(map[string]value.Value{
			"customer": value.NewText("c"),
			"total":    value.NewReal(float64(i)),
		}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	n, err := tbl.Count(nil)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Fatalf("Count(nil) = %d, want 4", n)
	}
	n, err = tbl.Count(func(row map[string]value.Value) bool { return row["total"].Real >= 2 })
	if err != nil {
		t.Fatalf("Count predicate: %v", err)
	}
	if n != 2 {
		t.Fatalf("Count(predicate) = %d, want 2", n)
	}
}

// TestInsertSealsFullChunkWithCompaction exercises the chunk size boundary
// (newTestEngine uses ChunkSize=4): the 4th insert fills chunk 0, which
// should be compressed in place, while the 5th insert's chunk stays plain
// since it's still being appended to.
func TestInsertSealsFullChunkWithCompaction(t *testing.T) {
	eng, mgr := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("c")}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	sealedPath := mgr.Layout.ChunkPath("default", "orders", 0)
	if _, err := os.Stat(sealedPath); err == nil {
		t.Fatalf("chunk 0 should have been compacted to .zst, but plain file still exists")
	}
	if _, err := os.Stat(sealedPath + ".zst"); err != nil {
		t.Fatalf("expected compressed chunk 0 at %s.zst: %v", sealedPath, err)
	}

	if _, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("d")}); err != nil {
		t.Fatalf("Insert 5th row: %v", err)
	}
	activePath := mgr.Layout.ChunkPath("default", "orders", 1)
	if _, err := os.Stat(activePath); err != nil {
		t.Fatalf("expected active chunk 1 at %s: %v", activePath, err)
	}

	rows, err := tbl.Select(SelectOptions{Limit: -1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("Select after compaction returned %d rows, want 5", len(rows))
	}
}

// TestDeleteRewritesOnlyTouchedChunks confirms the batch rewriter replaces
// a chunk with its own rewritten content only: deleting a row from chunk 0
// leaves chunk 1's bytes unchanged, since its rows are re-encoded as they
// were. Only 7 rows are inserted (chunkSize=4)
// so chunk 1 stays partially filled and plain, rather than being sealed
// and compacted by the 8th insert.
func TestDeleteRewritesOnlyTouchedChunks(t *testing.T) {
	eng, mgr := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 7; i++ {
		if _, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("c")}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	chunk1Path := mgr.Layout.ChunkPath("default", "orders", 1)
	before, err := os.ReadFile(chunk1Path)
	if err != nil {
		t.Fatalf("read chunk 1 before delete: %v", err)
	}

	deleted, err := tbl.Delete(func(row map[string]value.Value) bool { return row["id"].Integer == 1 })
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted %d rows, want 1", deleted)
	}

	after, err := os.ReadFile(chunk1Path)
	if err != nil {
		t.Fatalf("read chunk 1 after delete: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("chunk 1 bytes changed after deleting a row only present in chunk 0")
	}
	if tbl.Metadata().TotalRows != 6 {
		t.Fatalf("totalRows = %d, want 6", tbl.Metadata().TotalRows)
	}
}

func TestUpdateRejectsUncoercibleAssignment(t *testing.T) {
	eng, _ := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("c")}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_, err = tbl.Update(map[string]value.Value{"id": value.NewText("oops")}, nil)
	if err == nil {
		t.Fatal("expected type mismatch assigning text to an INTEGER column")
	}
	rows, err := tbl.Select(SelectOptions{Limit: -1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if rows[0].Values["id"].Integer != 1 {
		t.Fatalf("row mutated by failed update: id = %v", rows[0].Values["id"])
	}
}

func TestSelectSkipStartsMidTable(t *testing.T) {
	eng, _ := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("c")}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	rows, err := tbl.Select(SelectOptions{Skip: 6, Limit: 2})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Values["id"].Integer != 7 || rows[1].Values["id"].Integer != 8 {
		t.Fatalf("skip landed on ids %d,%d; want 7,8",
			rows[0].Values["id"].Integer, rows[1].Values["id"].Integer)
	}
}

func TestRepairFixesStaleRowCount(t *testing.T) {
	eng, mgr := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := tbl.Insert(map[string]value.Value{"customer": value.NewText("c")}); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}
	if err := tbl.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	// Simulate a crash between a chunk rewrite and the metadata flush by
	// writing back a stale row count.
	meta, err := mgr.Meta.Load("default", "orders")
	if err != nil {
		t.Fatalf("Load meta: %v", err)
	}
	meta.TotalRows = 2
	if err := mgr.Meta.Save("default", meta); err != nil {
		t.Fatalf("Save meta: %v", err)
	}

	stale, err := eng.Load("default", "orders")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stale.Metadata().TotalRows != 2 {
		t.Fatalf("expected stale count 2 before repair, got %d", stale.Metadata().TotalRows)
	}
	n, err := stale.Repair()
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if n != 5 {
		t.Fatalf("repaired count = %d, want 5", n)
	}
	reloaded, err := eng.Load("default", "orders")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Metadata().TotalRows != 5 {
		t.Fatalf("persisted count = %d, want 5", reloaded.Metadata().TotalRows)
	}
}

func TestInsertCoercesNonTextValuesIntoTextColumns(t *testing.T) {
	eng, _ := newTestEngine(t)
	tbl, err := eng.Create("default", "orders", ordersSchema())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := tbl.Insert(map[string]value.Value{"customer": value.NewInteger(42)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	rows, err := tbl.Select(SelectOptions{Limit: -1})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if got := rows[0].Values["customer"]; got.Kind != value.KindText || got.Text != "42" {
		t.Fatalf("expected customer coerced to text \"42\", got %+v", got)
	}
}
