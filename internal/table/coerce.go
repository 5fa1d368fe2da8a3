package table

import (
	"fmt"

	"ledgerdb/internal/codec"
	"ledgerdb/internal/value"
)

// Coerce converts v to the declared column type t. Integer columns accept
// Integer values and Long values that fit in 32 bits; Long columns accept
// Integer and Long; Real columns accept Integer, Long, Real and Decimal;
// Decimal columns accept Decimal, Integer, Long and Real. Text columns
// accept any value, converted to its canonical string form; DateTime
// columns require a DateTime value (the parser is responsible for
// recognizing date-shaped literals). A null value always
// passes through unchanged; callers check nullability separately.
func Coerce(v value.Value, t codec.ColumnType) (value.Value, error) {
	if v.IsNull() {
		return v, nil
	}
	switch t {
	case codec.TypeInteger:
		switch v.Kind {
		case value.KindInteger:
			return v, nil
		case value.KindLong:
			if v.Long < -2147483648 || v.Long > 2147483647 {
				return value.Value{}, fmt.Errorf("value %d does not fit in INTEGER", v.Long)
			}
			return value.NewInteger(int32(v.Long)), nil
		}
		return value.Value{}, fmt.Errorf("cannot coerce %s to INTEGER", v.Kind)
	case codec.TypeLong:
		switch v.Kind {
		case value.KindInteger:
			return value.NewLong(int64(v.Integer)), nil
		case value.KindLong:
			return v, nil
		}
		return value.Value{}, fmt.Errorf("cannot coerce %s to LONG", v.Kind)
	case codec.TypeReal:
		switch v.Kind {
		case value.KindInteger:
			return value.NewReal(float64(v.Integer)), nil
		case value.KindLong:
			return value.NewReal(float64(v.Long)), nil
		case value.KindReal:
			return v, nil
		case value.KindDecimal:
			return value.NewReal(v.Decimal.Float64()), nil
		}
		return value.Value{}, fmt.Errorf("cannot coerce %s to REAL", v.Kind)
	case codec.TypeDecimal:
		switch v.Kind {
		case value.KindDecimal:
			return v, nil
		case value.KindInteger:
			d, err := value.DecimalFromFloat(float64(v.Integer))
			return value.NewDecimal(d), err
		case value.KindLong:
			d, err := value.DecimalFromFloat(float64(v.Long))
			return value.NewDecimal(d), err
		case value.KindReal:
			d, err := value.DecimalFromFloat(v.Real)
			return value.NewDecimal(d), err
		}
		return value.Value{}, fmt.Errorf("cannot coerce %s to DECIMAL", v.Kind)
	case codec.TypeText:
		// Text accepts any value, converted to its canonical string form.
		if v.Kind == value.KindText {
			return v, nil
		}
		return value.NewText(v.String()), nil
	case codec.TypeDateTime:
		if v.Kind != value.KindDateTime {
			return value.Value{}, fmt.Errorf("cannot coerce %s to DATETIME", v.Kind)
		}
		return v, nil
	default:
		return value.Value{}, fmt.Errorf("unknown column type %v", t)
	}
}

// coerceToInt64 extracts a whole-number value from an explicitly supplied
// auto-increment column value, used to compute the "max(cur, v+1)" law.
func coerceToInt64(v value.Value) (int64, error) {
	switch v.Kind {
	case value.KindInteger:
		return int64(v.Integer), nil
	case value.KindLong:
		return v.Long, nil
	default:
		return 0, fmt.Errorf("auto-increment value must be an integer, got %s", v.Kind)
	}
}

func coerceNumericTo(t codec.ColumnType, n int64) value.Value {
	if t == codec.TypeInteger {
		return value.NewInteger(int32(n))
	}
	return value.NewLong(n)
}
