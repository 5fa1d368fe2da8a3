package codec

import (
	"bytes"
	"io"
	"math/big"
	"testing"
	"time"

	"ledgerdb/internal/value"
)

var fields = []Field{
	{Name: "id", Type: TypeInteger},
	{Name: "name", Type: TypeText},
	{Name: "age", Type: TypeLong},
	{Name: "score", Type: TypeReal},
}

func sampleRow() map[string]value.Value {
	return map[string]value.Value{
		"id":    value.NewInteger(7),
		"name":  value.NewText("Ada"),
		"age":   value.NewLong(200),
		"score": value.NewReal(3.5),
	}
}

func TestRoundTripRow(t *testing.T) {
	row := sampleRow()
	enc, err := EncodeRow(fields, row)
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	if enc[len(enc)-1] != Separator {
		t.Fatalf("last byte = 0x%02x, want separator 0xFF", enc[len(enc)-1])
	}
	rr := NewRowReader(bytes.NewReader(enc), fields)
	got, err := rr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for _, f := range fields {
		want := row[f.Name]
		have := got[f.Name]
		if have.Kind != want.Kind || have.String() != want.String() {
			t.Errorf("field %s: got %+v, want %+v", f.Name, have, want)
		}
	}
	if _, err := rr.Next(); err != io.EOF {
		t.Fatalf("second Next: got %v, want io.EOF", err)
	}
}

func TestRoundTripNullAndDecimalAndDateTime(t *testing.T) {
	fs := []Field{
		{Name: "a", Type: TypeInteger},
		{Name: "b", Type: TypeDecimal},
		{Name: "c", Type: TypeDateTime},
	}
	dec, err := value.NewDecimalFromParts(big.NewInt(123456), 2, true)
	if err != nil {
		t.Fatalf("NewDecimalFromParts: %v", err)
	}
	row := map[string]value.Value{
		"a": value.Null,
		"b": value.NewDecimal(dec),
		"c": value.NewDateTime(value.FromTime(mustParseTime(t, "2024-01-02T03:04:05Z"))),
	}
	enc, err := EncodeRow(fs, row)
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	rr := NewRowReader(bytes.NewReader(enc), fs)
	got, err := rr.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !got["a"].IsNull() {
		t.Errorf("a: want null, got %+v", got["a"])
	}
	if !got["b"].Decimal.Equal(dec) {
		t.Errorf("b: got %s, want %s", got["b"].Decimal.String(), dec.String())
	}
	if got["c"].DateTime != row["c"].DateTime {
		t.Errorf("c: got %d, want %d", got["c"].DateTime, row["c"].DateTime)
	}
}

func TestMultipleRowsInsertionOrder(t *testing.T) {
	var buf bytes.Buffer
	var want []string
	for i := 0; i < 5; i++ {
		row := map[string]value.Value{
			"id":    value.NewInteger(int32(i)),
			"name":  value.NewText("row"),
			"age":   value.NewLong(int64(i)),
			"score": value.NewReal(0),
		}
		enc, err := EncodeRow(fields, row)
		if err != nil {
			t.Fatalf("EncodeRow: %v", err)
		}
		buf.Write(enc)
		want = append(want, row["id"].String())
	}
	rr := NewRowReader(&buf, fields)
	var got []string
	for {
		row, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		got = append(got, row["id"].String())
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d: got id=%s, want id=%s", i, got[i], want[i])
		}
	}
}

func TestTruncatedTrailingRowIsSilentEOF(t *testing.T) {
	row := sampleRow()
	enc, err := EncodeRow(fields, row)
	if err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	truncated := enc[:len(enc)-3] // chop off part of the last field + separator
	rr := NewRowReader(bytes.NewReader(truncated), fields)
	if _, err := rr.Next(); err != io.EOF {
		t.Fatalf("Next on truncated row: got %v, want io.EOF", err)
	}
}

func TestCorruptionResyncsToNextRow(t *testing.T) {
	var buf bytes.Buffer
	rows := []map[string]value.Value{
		{"id": value.NewInteger(1), "name": value.NewText("one"), "age": value.NewLong(1), "score": value.NewReal(1)},
		{"id": value.NewInteger(2), "name": value.NewText("two"), "age": value.NewLong(2), "score": value.NewReal(2)},
		{"id": value.NewInteger(3), "name": value.NewText("three"), "age": value.NewLong(3), "score": value.NewReal(3)},
	}
	var offsets []int
	for _, r := range rows {
		offsets = append(offsets, buf.Len())
		enc, err := EncodeRow(fields, r)
		if err != nil {
			t.Fatalf("EncodeRow: %v", err)
		}
		buf.Write(enc)
	}
	data := buf.Bytes()

	// Flip the low bit of row 2's text length prefix (right after its
	// 5-byte integer field and 1-byte text marker): "two" decodes as
	// "tw" and the stray 'o' is read where the next field's marker
	// belongs, which forces a resync to the following separator.
	textLenOffset := offsets[1] + 1 + 4 + 1
	data[textLenOffset] ^= 0x01

	rr := NewRowReader(bytes.NewReader(data), fields)
	first, err := rr.Next()
	if err != nil {
		t.Fatalf("first Next: %v", err)
	}
	if first["id"].Integer != 1 {
		t.Fatalf("first row id = %d, want 1", first["id"].Integer)
	}

	var ids []int32
	for {
		row, err := rr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		ids = append(ids, row["id"].Integer)
	}
	if rr.Corrupted() == 0 {
		t.Errorf("expected at least one resync, got Corrupted()=0")
	}
	if len(ids) == 0 || ids[len(ids)-1] != 3 {
		t.Errorf("expected row 3 to be recovered after resync, got ids=%v", ids)
	}
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	tm, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("time.Parse: %v", err)
	}
	return tm
}
