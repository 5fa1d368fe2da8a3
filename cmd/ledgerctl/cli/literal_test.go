package cli

import (
	"testing"

	"ledgerdb/internal/value"
)

func TestExportFieldRoundTripPreservesKindAndText(t *testing.T) {
	cases := []value.Value{
		value.Null,
		value.NewInteger(42),
		value.NewLong(-7),
		value.NewText("it's \\ quoted"),
		value.NewReal(3.5),
	}
	for _, v := range cases {
		f := toExportField(v)
		got, err := fromExportField(f)
		if err != nil {
			t.Fatalf("fromExportField(%v): %v", f, err)
		}
		if got.Kind != v.Kind {
			t.Fatalf("kind mismatch: want %v got %v", v.Kind, got.Kind)
		}
		if got.String() != v.String() {
			t.Fatalf("round trip mismatch: want %q got %q", v.String(), got.String())
		}
	}
}

func TestRenderLiteralQuotesTextSafely(t *testing.T) {
	lit := renderLiteral(value.NewText("O'Brien\\path"))
	want := `'O\'Brien\\path'`
	if lit != want {
		t.Fatalf("expected %q, got %q", want, lit)
	}
}

func TestRenderLiteralNullIsBareKeyword(t *testing.T) {
	if got := renderLiteral(value.Null); got != "NULL" {
		t.Fatalf("expected NULL, got %q", got)
	}
}
