package sqlparse

import (
	"strconv"
	"strings"

	"ledgerdb/internal/value"
)

// Parser turns one SQL statement into its AST form. It holds a single
// token of lookahead; multi-word keywords (IF NOT EXISTS, ORDER BY, LEFT
// JOIN, ...) are recognized by matching consecutive identifier tokens.
type Parser struct {
	lex  *Lexer
	tok  Token
	text string
}

// Parse tokenizes and parses one SQL statement (an optional trailing `;`
// is tolerated and discarded).
func Parse(text string) (Statement, error) {
	p := &Parser{lex: NewLexer(text), text: text}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.Kind == TokEOF {
		return nil, newParseError(0, ErrEmptyStatement, "empty statement")
	}
	if p.tok.Kind == TokDotCommand {
		return p.parseDotCommand()
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == TokSemicolon {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.Kind != TokEOF {
		return nil, p.errorf("unexpected trailing input %q", p.fragment())
	}
	return stmt, nil
}

func (p *Parser) advance() error {
	t, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *Parser) fragment() string {
	end := p.tok.Pos + 24
	if end > len(p.text) {
		end = len(p.text)
	}
	if p.tok.Pos >= len(p.text) {
		return ""
	}
	return p.text[p.tok.Pos:end]
}

func (p *Parser) errorf(format string, args ...any) *ParseError {
	return newParseError(p.tok.Pos, ErrUnexpectedToken, format, args...)
}

// keyword reports whether the current token is an identifier equal
// (case-insensitively) to word.
func (p *Parser) keyword(word string) bool {
	return p.tok.Kind == TokIdent && strings.EqualFold(p.tok.Lit, word)
}

func (p *Parser) expectKeyword(word string) error {
	if !p.keyword(word) {
		return p.errorf("expected %q, found %q", word, p.fragment())
	}
	return p.advance()
}

func (p *Parser) expectIdent() (string, error) {
	if p.tok.Kind != TokIdent {
		return "", p.errorf("expected identifier, found %q", p.fragment())
	}
	name := p.tok.Lit
	return name, p.advance()
}

func (p *Parser) parseDotCommand() (Statement, error) {
	switch strings.ToUpper(p.tok.Lit) {
	case "TABLES":
		return ShowTablesStmt{}, p.advance()
	case "QUIT", "EXIT":
		return QuitStmt{}, p.advance()
	default:
		return nil, p.errorf("unrecognized dot-command %q", p.tok.Lit)
	}
}

func (p *Parser) parseStatement() (Statement, error) {
	switch {
	case p.keyword("CREATE"):
		return p.parseCreate()
	case p.keyword("DROP"):
		return p.parseDrop()
	case p.keyword("USE"):
		return p.parseUse()
	case p.keyword("SHOW"):
		return p.parseShow()
	case p.keyword("INSERT"):
		return p.parseInsert()
	case p.keyword("SELECT"):
		return p.parseSelect()
	case p.keyword("UPDATE"):
		return p.parseUpdate()
	case p.keyword("DELETE"):
		return p.parseDelete()
	default:
		return nil, newParseError(p.tok.Pos, ErrUnknownStatement, "unrecognized statement starting at %q", p.fragment())
	}
}

func (p *Parser) parseCreate() (Statement, error) {
	if err := p.expectKeyword("CREATE"); err != nil {
		return nil, err
	}
	switch {
	case p.keyword("DATABASE"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return CreateDatabaseStmt{Name: name}, nil
	case p.keyword("TABLE"):
		return p.parseCreateTable()
	default:
		return nil, p.errorf("expected DATABASE or TABLE, found %q", p.fragment())
	}
}

func (p *Parser) parseCreateTable() (Statement, error) {
	if err := p.expectKeyword("TABLE"); err != nil {
		return nil, err
	}
	ifNotExists := false
	if p.keyword("IF") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("NOT"); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("EXISTS"); err != nil {
			return nil, err
		}
		ifNotExists = true
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != TokLParen {
		return nil, p.errorf("expected '(' after table name, found %q", p.fragment())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var columns []ColumnSpec
	for {
		col, err := p.parseColumnSpec()
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
		if p.tok.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.tok.Kind != TokRParen {
		return nil, p.errorf("expected ')' to close column list, found %q", p.fragment())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return CreateTableStmt{Name: name, IfNotExists: ifNotExists, Columns: columns}, nil
}

func (p *Parser) parseColumnSpec() (ColumnSpec, error) {
	name, err := p.expectIdent()
	if err != nil {
		return ColumnSpec{}, err
	}
	typeName, err := p.expectIdent()
	if err != nil {
		return ColumnSpec{}, err
	}
	spec := ColumnSpec{Name: name, Type: strings.ToUpper(typeName)}
	for {
		switch {
		case p.keyword("PRIMARY"):
			if err := p.advance(); err != nil {
				return ColumnSpec{}, err
			}
			if err := p.expectKeyword("KEY"); err != nil {
				return ColumnSpec{}, err
			}
			spec.PrimaryKey = true
		case p.keyword("NOT"):
			if err := p.advance(); err != nil {
				return ColumnSpec{}, err
			}
			if err := p.expectKeyword("NULL"); err != nil {
				return ColumnSpec{}, err
			}
			spec.NotNull = true
		case p.keyword("AUTO_INCREMENT") || p.keyword("AUTOINCREMENT"):
			if err := p.advance(); err != nil {
				return ColumnSpec{}, err
			}
			spec.AutoIncrement = true
		default:
			return spec, nil
		}
	}
}

func (p *Parser) parseDrop() (Statement, error) {
	if err := p.expectKeyword("DROP"); err != nil {
		return nil, err
	}
	switch {
	case p.keyword("DATABASE"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return DropDatabaseStmt{Name: name}, nil
	case p.keyword("TABLE"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return DropTableStmt{Name: name}, nil
	default:
		return nil, p.errorf("expected DATABASE or TABLE, found %q", p.fragment())
	}
}

func (p *Parser) parseUse() (Statement, error) {
	if err := p.expectKeyword("USE"); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return UseStmt{Name: name}, nil
}

func (p *Parser) parseShow() (Statement, error) {
	if err := p.expectKeyword("SHOW"); err != nil {
		return nil, err
	}
	switch {
	case p.keyword("TABLES"):
		return ShowTablesStmt{}, p.advance()
	case p.keyword("DATABASES"):
		return ShowDatabasesStmt{}, p.advance()
	default:
		return nil, p.errorf("expected TABLES or DATABASES, found %q", p.fragment())
	}
}

func (p *Parser) parseInsert() (Statement, error) {
	if err := p.expectKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var columns []string
	if p.tok.Kind == TokLParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
			if p.tok.Kind == TokComma {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
		if p.tok.Kind != TokRParen {
			return nil, p.errorf("expected ')' to close column list, found %q", p.fragment())
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	if p.tok.Kind != TokLParen {
		return nil, p.errorf("expected '(' to open VALUES list, found %q", p.fragment())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var values []value.Value
	for {
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.tok.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.tok.Kind != TokRParen {
		return nil, p.errorf("expected ')' to close VALUES list, found %q", p.fragment())
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return InsertStmt{Table: table, Columns: columns, Values: values}, nil
}

func (p *Parser) parseSelect() (Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	proj, err := p.parseProjection()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt := SelectStmt{Projection: proj, From: from}
	for p.keyword("JOIN") || p.keyword("INNER") || p.keyword("LEFT") {
		join, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		stmt.Joins = append(stmt.Joins, join)
	}
	if p.keyword("WHERE") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		cmp, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		stmt.Where = &cmp
	}
	if p.keyword("ORDER") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		stmt.OrderBy = col
		if p.keyword("DESC") {
			stmt.Descending = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else if p.keyword("ASC") {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if p.keyword("LIMIT") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.Kind != TokNumber {
			return nil, p.errorf("expected number after LIMIT, found %q", p.fragment())
		}
		n, err := strconv.ParseInt(p.tok.Lit, 10, 64)
		if err != nil {
			return nil, p.errorf("malformed LIMIT value %q", p.tok.Lit)
		}
		stmt.Limit = &n
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) parseProjection() ([]ProjItem, error) {
	var items []ProjItem
	for {
		switch {
		case p.tok.Kind == TokStar:
			items = append(items, ProjItem{Kind: ProjStar})
			if err := p.advance(); err != nil {
				return nil, err
			}
		case p.keyword("COUNT"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.Kind != TokLParen {
				// Bare COUNT with no parens, per the "SELECT COUNT [FROM
				// t [WHERE p]]" form: treat it the same as COUNT(*).
				items = append(items, ProjItem{Kind: ProjCountStar})
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.Kind == TokStar {
				items = append(items, ProjItem{Kind: ProjCountStar})
				if err := p.advance(); err != nil {
					return nil, err
				}
			} else {
				return nil, p.errorf("COUNT(col) is not supported; use COUNT(*)")
			}
			if p.tok.Kind != TokRParen {
				return nil, p.errorf("expected ')' after COUNT(*), found %q", p.fragment())
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		case p.keyword("LEN"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.Kind != TokLParen {
				return nil, p.errorf("expected '(' after LEN, found %q", p.fragment())
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			col, err := p.parseQualifiedColumn()
			if err != nil {
				return nil, err
			}
			if p.tok.Kind != TokRParen {
				return nil, p.errorf("expected ')' after LEN(%s, found %q", col, p.fragment())
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			items = append(items, ProjItem{Kind: ProjLen, Column: col})
		case p.tok.Kind == TokIdent:
			col, err := p.parseQualifiedColumn()
			if err != nil {
				return nil, err
			}
			items = append(items, ProjItem{Kind: ProjColumn, Column: col})
		default:
			return nil, p.errorf("expected projection item, found %q", p.fragment())
		}
		if p.tok.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	// The grammar allows * and the COUNT aggregate only as the sole
	// projection, never mixed into a column list.
	if len(items) > 1 {
		for _, item := range items {
			if item.Kind == ProjCountStar || item.Kind == ProjStar {
				return nil, p.errorf("* and COUNT must be the sole projection item")
			}
		}
	}
	return items, nil
}

func (p *Parser) parseJoin() (JoinClause, error) {
	kind := JoinInner
	if p.keyword("LEFT") {
		kind = JoinLeft
		if err := p.advance(); err != nil {
			return JoinClause{}, err
		}
	} else if p.keyword("INNER") {
		if err := p.advance(); err != nil {
			return JoinClause{}, err
		}
	}
	if err := p.expectKeyword("JOIN"); err != nil {
		return JoinClause{}, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return JoinClause{}, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return JoinClause{}, err
	}
	leftCol, err := p.parseQualifiedColumn()
	if err != nil {
		return JoinClause{}, err
	}
	if p.tok.Kind != TokEq {
		return JoinClause{}, p.errorf("expected '=' in JOIN ON clause, found %q", p.fragment())
	}
	if err := p.advance(); err != nil {
		return JoinClause{}, err
	}
	rightCol, err := p.parseQualifiedColumn()
	if err != nil {
		return JoinClause{}, err
	}
	return JoinClause{Kind: kind, Table: table, LeftCol: leftCol, RightCol: rightCol}, nil
}

// parseQualifiedColumn parses `ident` or `ident.ident`, returning the
// dotted form as a single string for the executor to resolve.
func (p *Parser) parseQualifiedColumn() (string, error) {
	first, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	if p.tok.Kind == TokDot {
		if err := p.advance(); err != nil {
			return "", err
		}
		second, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		return first + "." + second, nil
	}
	return first, nil
}

func (p *Parser) parseComparison() (Comparison, error) {
	lenOf := false
	var column string
	if p.keyword("LEN") {
		if err := p.advance(); err != nil {
			return Comparison{}, err
		}
		if p.tok.Kind != TokLParen {
			return Comparison{}, p.errorf("expected '(' after LEN, found %q", p.fragment())
		}
		if err := p.advance(); err != nil {
			return Comparison{}, err
		}
		col, err := p.parseQualifiedColumn()
		if err != nil {
			return Comparison{}, err
		}
		column = col
		if p.tok.Kind != TokRParen {
			return Comparison{}, p.errorf("expected ')' after LEN(%s, found %q", col, p.fragment())
		}
		if err := p.advance(); err != nil {
			return Comparison{}, err
		}
		lenOf = true
	} else {
		col, err := p.parseQualifiedColumn()
		if err != nil {
			return Comparison{}, err
		}
		column = col
	}
	op, err := p.parseCompareOp()
	if err != nil {
		return Comparison{}, err
	}
	rhs, err := p.parseLiteral()
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{Left: Operand{Column: column, LenOf: lenOf}, Op: op, Right: rhs}, nil
}

func (p *Parser) parseCompareOp() (CompareOp, error) {
	var op CompareOp
	switch p.tok.Kind {
	case TokEq:
		op = OpEq
	case TokNe:
		op = OpNe
	case TokLt:
		op = OpLt
	case TokLte:
		op = OpLte
	case TokGt:
		op = OpGt
	case TokGte:
		op = OpGte
	default:
		return 0, p.errorf("expected comparison operator, found %q", p.fragment())
	}
	return op, p.advance()
}

func (p *Parser) parseUpdate() (Statement, error) {
	if err := p.expectKeyword("UPDATE"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	var assignments []Assignment
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if p.tok.Kind != TokEq {
			return nil, p.errorf("expected '=' in SET clause, found %q", p.fragment())
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := p.parseLiteral()
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, Assignment{Column: col, Value: v})
		if p.tok.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	stmt := UpdateStmt{Table: table, Assignments: assignments}
	if p.keyword("WHERE") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		cmp, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		stmt.Where = &cmp
	}
	return stmt, nil
}

func (p *Parser) parseDelete() (Statement, error) {
	if err := p.expectKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	stmt := DeleteStmt{Table: table}
	if p.keyword("WHERE") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		cmp, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		stmt.Where = &cmp
	}
	return stmt, nil
}

// parseLiteral consumes one value literal: NULL, a quoted string (possibly
// reinterpreted as DateTime or Decimal by its shape), or a signed numeric
// literal.
func (p *Parser) parseLiteral() (value.Value, error) {
	switch {
	case p.keyword("NULL"):
		return value.Null, p.advance()
	case p.tok.Kind == TokString:
		lit := p.tok.Lit
		if err := p.advance(); err != nil {
			return value.Value{}, err
		}
		return literalFromString(lit), nil
	case p.tok.Kind == TokNumber:
		lit := p.tok.Lit
		if err := p.advance(); err != nil {
			return value.Value{}, err
		}
		return literalFromNumber(lit)
	default:
		return value.Value{}, p.errorf("expected a value literal, found %q", p.fragment())
	}
}

func literalFromNumber(lit string) (value.Value, error) {
	if strings.Contains(lit, ".") {
		d, err := value.ParseDecimal(lit)
		if err != nil {
			return value.Value{}, err
		}
		return value.NewDecimal(d), nil
	}
	n, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return value.Value{}, err
	}
	if n >= -2147483648 && n <= 2147483647 {
		return value.NewInteger(int32(n)), nil
	}
	return value.NewLong(n), nil
}

func literalFromString(s string) value.Value {
	if t, ok := parseDateShaped(s); ok {
		return value.NewDateTime(value.FromTime(t))
	}
	if looksDecimalShaped(s) {
		if d, err := value.ParseDecimal(s); err == nil {
			return value.NewDecimal(d)
		}
	}
	return value.NewText(s)
}

// looksDecimalShaped requires a decimal point (unlike value.LooksLikeDecimal,
// which also accepts bare integer strings) so that a quoted integer-looking
// string like "42" stays TEXT rather than silently becoming DECIMAL.
func looksDecimalShaped(s string) bool {
	return strings.Contains(s, ".") && value.LooksLikeDecimal(s)
}
