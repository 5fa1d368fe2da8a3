// Package predicate evaluates WHERE comparisons against rows: it
// resolves operands (bare columns and LEN), applies the null-comparison
// law, and dispatches to numeric/DateTime/string comparison as
// appropriate.
package predicate

import (
	"ledgerdb/internal/sqlparse"
	"ledgerdb/internal/value"
)

// Eval reports whether row satisfies cmp. An unknown column (absent from
// row) always evaluates to false, so an unrecognized WHERE column simply
// excludes every row rather than erroring. A nil cmp matches every row.
func Eval(cmp *sqlparse.Comparison, row map[string]value.Value) bool {
	if cmp == nil {
		return true
	}
	left, ok := resolveOperand(cmp.Left, row)
	if !ok {
		return false
	}
	right := cmp.Right

	// Null law: = is true iff both operands are null, != is true iff
	// exactly one is null, and every ordered operator is false whenever
	// either operand is null (no three-valued "unknown" result in a
	// WHERE clause here, just a fixed collapse to false).
	if left.IsNull() || right.IsNull() {
		switch cmp.Op {
		case sqlparse.OpEq:
			return left.IsNull() && right.IsNull()
		case sqlparse.OpNe:
			return left.IsNull() != right.IsNull()
		default:
			return false
		}
	}

	c := value.CompareNonNull(left, right)
	switch cmp.Op {
	case sqlparse.OpEq:
		return c == 0
	case sqlparse.OpNe:
		return c != 0
	case sqlparse.OpLt:
		return c < 0
	case sqlparse.OpLte:
		return c <= 0
	case sqlparse.OpGt:
		return c > 0
	case sqlparse.OpGte:
		return c >= 0
	default:
		return false
	}
}

// resolveOperand looks up an operand's value in row, applying LEN() when
// requested. The bool return is false when the referenced column does not
// exist in row at all.
func resolveOperand(op sqlparse.Operand, row map[string]value.Value) (value.Value, bool) {
	v, present := row[op.Column]
	if !present {
		return value.Value{}, false
	}
	if op.LenOf {
		return value.NewInteger(int32(v.Len())), true
	}
	return v, true
}

// Compile captures cmp in a closure matching the row-predicate shape used
// throughout the table engine and executor (func(row) bool), so callers
// don't need to thread the AST node through every call site.
func Compile(cmp *sqlparse.Comparison) func(row map[string]value.Value) bool {
	return func(row map[string]value.Value) bool {
		return Eval(cmp, row)
	}
}
