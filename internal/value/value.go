// Package value defines the tagged variant used to represent every row
// field the engine touches: parsed literals, column defaults, coerced
// insert arguments, and decoded codec payloads all flow through Value.
//
// A Value is deliberately small and comparable by struct equality where
// possible; Text and Decimal carry out-of-line data (a string, and a
// Decimal holding a *big.Int) because they don't fit in a machine word.
package value

import (
	"fmt"
	"strings"
)

// Kind identifies which field of a Value is meaningful.
type Kind int

const (
	KindNull Kind = iota
	KindInteger
	KindLong
	KindText
	KindReal
	KindDateTime
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInteger:
		return "INTEGER"
	case KindLong:
		return "LONG"
	case KindText:
		return "TEXT"
	case KindReal:
		return "REAL"
	case KindDateTime:
		return "DATETIME"
	case KindDecimal:
		return "DECIMAL"
	default:
		return "UNKNOWN"
	}
}

// Value is a tagged union over the column types the engine supports.
// Only the field matching Kind is meaningful; the rest are zero.
type Value struct {
	Kind     Kind
	Integer  int32
	Long     int64
	Text     string
	Real     float64
	DateTime Ticks
	Decimal  Decimal
}

// Null is the shared representation of SQL NULL.
var Null = Value{Kind: KindNull}

func NewInteger(v int32) Value  { return Value{Kind: KindInteger, Integer: v} }
func NewLong(v int64) Value     { return Value{Kind: KindLong, Long: v} }
func NewText(v string) Value    { return Value{Kind: KindText, Text: v} }
func NewReal(v float64) Value   { return Value{Kind: KindReal, Real: v} }
func NewDateTime(v Ticks) Value { return Value{Kind: KindDateTime, DateTime: v} }
func NewDecimal(v Decimal) Value {
	return Value{Kind: KindDecimal, Decimal: v}
}

// IsNull reports whether v represents SQL NULL.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsNumeric reports whether v is one of the numeric kinds (Integer, Long,
// Real, Decimal). DateTime is intentionally excluded: it compares as its
// own ordered domain, not as a generic number, per the predicate rules.
func (v Value) IsNumeric() bool {
	switch v.Kind {
	case KindInteger, KindLong, KindReal, KindDecimal:
		return true
	default:
		return false
	}
}

// String returns the canonical string form used for display and for
// string-domain comparisons. Null renders as the empty string; callers
// that need to distinguish null from "" must check IsNull first.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindInteger:
		return fmt.Sprintf("%d", v.Integer)
	case KindLong:
		return fmt.Sprintf("%d", v.Long)
	case KindText:
		return v.Text
	case KindReal:
		return formatReal(v.Real)
	case KindDateTime:
		return v.DateTime.ToTime().Format("2006-01-02 15:04:05.9999999")
	case KindDecimal:
		return v.Decimal.String()
	default:
		return ""
	}
}

func formatReal(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

// Len returns the UTF-16 code-unit count of the value's string form, as
// required by the LEN(col) scalar. Null is defined to have length 0.
func (v Value) Len() int {
	if v.IsNull() {
		return 0
	}
	s := v.String()
	n := 0
	for _, r := range s {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// EqualCanonicalString compares two values using case-insensitive ordinal
// comparison of their canonical string forms, per the fallback rule in the
// comparison semantics.
func EqualCanonicalString(a, b Value) bool {
	return strings.EqualFold(a.String(), b.String())
}

// CompareCanonicalString orders two values by case-insensitive ordinal
// comparison of their canonical string forms.
func CompareCanonicalString(a, b Value) int {
	return strings.Compare(strings.ToLower(a.String()), strings.ToLower(b.String()))
}
