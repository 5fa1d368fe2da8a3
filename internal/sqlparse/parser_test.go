package sqlparse

import (
	"testing"

	"ledgerdb/internal/value"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse(`CREATE TABLE IF NOT EXISTS orders (id INTEGER PRIMARY KEY AUTO_INCREMENT, customer TEXT NOT NULL, total REAL)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ct, ok := stmt.(CreateTableStmt)
	if !ok {
		t.Fatalf("got %T, want CreateTableStmt", stmt)
	}
	if !ct.IfNotExists || ct.Name != "orders" || len(ct.Columns) != 3 {
		t.Fatalf("unexpected statement: %+v", ct)
	}
	if !ct.Columns[0].PrimaryKey || !ct.Columns[0].AutoIncrement {
		t.Errorf("id column flags: %+v", ct.Columns[0])
	}
	if !ct.Columns[1].NotNull {
		t.Errorf("customer column should be NOT NULL: %+v", ct.Columns[1])
	}
}

func TestParseInsertWithColumnList(t *testing.T) {
	stmt, err := Parse(`INSERT INTO orders (customer, total) VALUES ('Ada', 19.99)`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ins, ok := stmt.(InsertStmt)
	if !ok {
		t.Fatalf("got %T, want InsertStmt", stmt)
	}
	if len(ins.Columns) != 2 || ins.Columns[0] != "customer" {
		t.Fatalf("unexpected columns: %+v", ins.Columns)
	}
	if ins.Values[0].Kind != value.KindText || ins.Values[0].Text != "Ada" {
		t.Errorf("value 0 = %+v", ins.Values[0])
	}
	if ins.Values[1].Kind != value.KindDecimal {
		t.Errorf("value 1 kind = %v, want Decimal", ins.Values[1].Kind)
	}
}

func TestParseSelectWithWhereOrderByLimit(t *testing.T) {
	stmt, err := Parse(`SELECT id, customer FROM orders WHERE total >= 10 ORDER BY total DESC LIMIT 5`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel, ok := stmt.(SelectStmt)
	if !ok {
		t.Fatalf("got %T, want SelectStmt", stmt)
	}
	if len(sel.Projection) != 2 || sel.Projection[0].Column != "id" {
		t.Fatalf("unexpected projection: %+v", sel.Projection)
	}
	if sel.Where == nil || sel.Where.Op != OpGte {
		t.Fatalf("unexpected where: %+v", sel.Where)
	}
	if sel.OrderBy != "total" || !sel.Descending {
		t.Errorf("unexpected order by: %s desc=%v", sel.OrderBy, sel.Descending)
	}
	if sel.Limit == nil || *sel.Limit != 5 {
		t.Errorf("unexpected limit: %v", sel.Limit)
	}
}

func TestParseSelectStarWithJoin(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM orders LEFT JOIN customers ON orders.customer_id = customers.id`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel, ok := stmt.(SelectStmt)
	if !ok {
		t.Fatalf("got %T, want SelectStmt", stmt)
	}
	if len(sel.Projection) != 1 || sel.Projection[0].Kind != ProjStar {
		t.Fatalf("unexpected projection: %+v", sel.Projection)
	}
	if len(sel.Joins) != 1 || sel.Joins[0].Kind != JoinLeft {
		t.Fatalf("unexpected joins: %+v", sel.Joins)
	}
	if sel.Joins[0].LeftCol != "orders.customer_id" || sel.Joins[0].RightCol != "customers.id" {
		t.Errorf("unexpected join columns: %+v", sel.Joins[0])
	}
}

func TestParseCountStar(t *testing.T) {
	stmt, err := Parse(`SELECT COUNT(*) FROM orders`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(SelectStmt)
	if len(sel.Projection) != 1 || sel.Projection[0].Kind != ProjCountStar {
		t.Fatalf("unexpected projection: %+v", sel.Projection)
	}
}

func TestParseUpdateAndDelete(t *testing.T) {
	stmt, err := Parse(`UPDATE orders SET total = 5.00 WHERE id = 1`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	upd := stmt.(UpdateStmt)
	if upd.Table != "orders" || len(upd.Assignments) != 1 {
		t.Fatalf("unexpected update: %+v", upd)
	}

	stmt, err = Parse(`DELETE FROM orders WHERE total < 1`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	del := stmt.(DeleteStmt)
	if del.Table != "orders" || del.Where == nil || del.Where.Op != OpLt {
		t.Fatalf("unexpected delete: %+v", del)
	}
}

func TestParseLenPredicate(t *testing.T) {
	stmt, err := Parse(`SELECT * FROM orders WHERE LEN(customer) > 3`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(SelectStmt)
	if sel.Where == nil || !sel.Where.Left.LenOf || sel.Where.Left.Column != "customer" {
		t.Fatalf("unexpected where: %+v", sel.Where)
	}
}

func TestParseDotCommands(t *testing.T) {
	if _, err := Parse(`.TABLES`); err != nil {
		t.Fatalf(".TABLES: %v", err)
	}
	stmt, err := Parse(`.QUIT`)
	if err != nil {
		t.Fatalf(".QUIT: %v", err)
	}
	if _, ok := stmt.(QuitStmt); !ok {
		t.Fatalf("got %T, want QuitStmt", stmt)
	}
}

func TestParseMalformedStatementReturnsParseError(t *testing.T) {
	_, err := Parse(`SELEKT * FROM orders`)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("got %T, want *ParseError", err)
	}
}

func TestDateShapedLiteralBecomesDateTime(t *testing.T) {
	stmt, err := Parse(`INSERT INTO events (happened_at) VALUES ('2024-01-02T03:04:05Z')`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ins := stmt.(InsertStmt)
	if ins.Values[0].Kind != value.KindDateTime {
		t.Fatalf("got kind %v, want DateTime", ins.Values[0].Kind)
	}
}

func TestQuotedIntegerLooksLikeStaysText(t *testing.T) {
	stmt, err := Parse(`INSERT INTO codes (code) VALUES ('42')`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ins := stmt.(InsertStmt)
	if ins.Values[0].Kind != value.KindText {
		t.Fatalf("got kind %v, want Text", ins.Values[0].Kind)
	}
}
