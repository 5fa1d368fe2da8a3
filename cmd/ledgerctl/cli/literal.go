package cli

import (
	"strconv"
	"strings"

	"ledgerdb/internal/value"
)

// renderLiteral formats v as a SQL literal the parser accepts back,
// used by the import command to rebuild INSERT statements from an
// exported row.
func renderLiteral(v value.Value) string {
	switch v.Kind {
	case value.KindNull:
		return "NULL"
	case value.KindInteger, value.KindLong, value.KindDecimal:
		return v.String()
	case value.KindReal:
		// Plain decimal notation: the lexer has no exponent syntax.
		return strconv.FormatFloat(v.Real, 'f', -1, 64)
	case value.KindText, value.KindDateTime:
		return quoteText(v.String())
	default:
		return "NULL"
	}
}

func quoteText(s string) string {
	var sb strings.Builder
	sb.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\'':
			sb.WriteString(`\'`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('\'')
	return sb.String()
}
