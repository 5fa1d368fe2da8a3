package value

import "errors"

var errNotNumeric = errors.New("value: not a numeric kind")

// CompareValues establishes the total order ORDER BY sorts by: nulls sort
// before every non-null value; among non-null values, numeric kinds
// compare numerically via decimal promotion (never naive float equality),
// DateTime compares by tick count, and everything else falls back to
// case-insensitive ordinal comparison of the canonical string form. This
// is a distinct concern from the WHERE predicate's null-comparison law
// (see the predicate package), which never orders a null: ordered
// operators against a null are false, = matches two nulls, and != matches
// exactly one null.
func CompareValues(a, b Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	return CompareNonNull(a, b)
}

// CompareNonNull orders two known-non-null values: numeric kinds compare
// via decimal promotion, DateTime compares by tick count, and everything
// else falls back to case-insensitive ordinal string comparison. This is
// the shared ordering rule both CompareValues (ORDER BY) and the
// predicate package's non-null comparison branch build on.
func CompareNonNull(a, b Value) int {
	if a.IsNumeric() && b.IsNumeric() {
		return compareNumeric(a, b)
	}
	if a.Kind == KindDateTime && b.Kind == KindDateTime {
		switch {
		case a.DateTime < b.DateTime:
			return -1
		case a.DateTime > b.DateTime:
			return 1
		default:
			return 0
		}
	}
	return CompareCanonicalString(a, b)
}

// compareNumeric promotes both operands to Decimal and compares exactly,
// so e.g. a Real 0.1 and a Decimal "0.1" column compare as equal rather
// than suffering float rounding.
func compareNumeric(a, b Value) int {
	da, err := toDecimal(a)
	if err != nil {
		return CompareCanonicalString(a, b)
	}
	db, err := toDecimal(b)
	if err != nil {
		return CompareCanonicalString(a, b)
	}
	return da.Compare(db)
}

func toDecimal(v Value) (Decimal, error) {
	switch v.Kind {
	case KindDecimal:
		return v.Decimal, nil
	case KindInteger:
		return DecimalFromFloat(float64(v.Integer))
	case KindLong:
		return DecimalFromFloat(float64(v.Long))
	case KindReal:
		return DecimalFromFloat(v.Real)
	default:
		return Decimal{}, errNotNumeric
	}
}
