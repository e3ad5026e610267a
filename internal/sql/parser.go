package sql

import (
	"strconv"
	"strings"

	"sqlhild/internal/domain"
	"sqlhild/internal/value"
)

// Parse tokenizes and parses one SELECT statement.
func Parse(src string) (*SelectStmt, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	// Clients routinely terminate the statement with a semicolon.
	for p.cur().Type == TokenSemi {
		p.advance()
	}
	if p.cur().Type != TokenEOF {
		return nil, p.errorf("unexpected %s after statement", p.cur().describe())
	}
	return stmt, nil
}

// parser is a recursive-descent parser with a Pratt-style precedence climb
// for expressions. Keywords are matched case-insensitively; quoting is
// case-preserving.
type parser struct {
	toks []Token
	pos  int
}

func (p *parser) cur() Token { return p.toks[p.pos] }

func (p *parser) advance() Token {
	tok := p.toks[p.pos]
	if tok.Type != TokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) errorf(format string, args ...interface{}) error {
	tok := p.cur()
	return domain.ErrSyntax(tok.Line, tok.Col, format, args...)
}

func (p *parser) expect(t TokenType) (Token, error) {
	if p.cur().Type != t {
		return Token{}, p.errorf("expected %s, found %s", t, p.cur().describe())
	}
	return p.advance(), nil
}

func (p *parser) isKeyword(kw string) bool {
	return p.cur().Type == TokenIdent && strings.EqualFold(p.cur().Text, kw)
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.isKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorf("expected %s, found %s", kw, p.cur().describe())
	}
	return nil
}

// reservedWords may not be used as bare aliases or column names.
var reservedWords = map[string]bool{
	"SELECT": true, "DISTINCT": true, "FROM": true, "WHERE": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "OUTER": true,
	"ON": true, "AND": true, "OR": true, "NOT": true, "AS": true,
	"GROUP": true, "ORDER": true, "BY": true, "ASC": true, "DESC": true,
	"LIMIT": true, "OFFSET": true, "TRUE": true, "FALSE": true, "NULL": true,
}

func (p *parser) atReserved() bool {
	return p.cur().Type == TokenIdent && reservedWords[strings.ToUpper(p.cur().Text)]
}

func (p *parser) parseSelect() (*SelectStmt, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	stmt := &SelectStmt{}
	stmt.Distinct = p.acceptKeyword("DISTINCT")

	items, err := p.parseSelectItems()
	if err != nil {
		return nil, err
	}
	stmt.Items = items

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	stmt.From, err = p.parseTableRef()
	if err != nil {
		return nil, err
	}

	for {
		join, ok, err := p.parseJoin()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		stmt.Joins = append(stmt.Joins, join)
	}

	if p.acceptKeyword("WHERE") {
		stmt.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}

	if p.isKeyword("GROUP") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if p.cur().Type != TokenComma {
				break
			}
			p.advance()
		}
	}

	if p.isKeyword("ORDER") {
		p.advance()
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			key := OrderKey{Expr: e}
			if p.acceptKeyword("DESC") {
				key.Desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			stmt.OrderBy = append(stmt.OrderBy, key)
			if p.cur().Type != TokenComma {
				break
			}
			p.advance()
		}
	}

	if p.acceptKeyword("LIMIT") {
		stmt.Limit, err = p.parseLimit()
		if err != nil {
			return nil, err
		}
	}

	return stmt, nil
}

func (p *parser) parseSelectItems() ([]SelectItem, error) {
	var items []SelectItem
	for {
		if p.cur().Type == TokenStar {
			p.advance()
			items = append(items, SelectItem{Star: true})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := SelectItem{Expr: e}
			if p.acceptKeyword("AS") {
				alias, err := p.parseName()
				if err != nil {
					return nil, err
				}
				item.Alias = alias
			} else if p.cur().Type == TokenIdent && !p.atReserved() {
				item.Alias = p.advance().Text
			}
			items = append(items, item)
		}
		if p.cur().Type != TokenComma {
			return items, nil
		}
		p.advance()
	}
}

// parseName reads a plain or quoted identifier.
func (p *parser) parseName() (string, error) {
	switch p.cur().Type {
	case TokenIdent:
		if p.atReserved() {
			return "", p.errorf("unexpected keyword %s", p.cur().describe())
		}
		return p.advance().Text, nil
	case TokenQuotedIdent:
		return p.advance().Text, nil
	}
	return "", p.errorf("expected identifier, found %s", p.cur().describe())
}

// parseTableRef reads the provider identifier and an optional alias. Quoted
// identifiers keep dots and slashes verbatim; unquoted dotted paths are
// reassembled segment by segment.
func (p *parser) parseTableRef() (TableRef, error) {
	at := Pos{Line: p.cur().Line, Col: p.cur().Col}
	var identifier string
	switch p.cur().Type {
	case TokenQuotedIdent:
		identifier = p.advance().Text
	case TokenIdent:
		if p.atReserved() {
			return TableRef{}, p.errorf("expected table identifier, found %s", p.cur().describe())
		}
		var segments []string
		segments = append(segments, p.advance().Text)
		for p.cur().Type == TokenDot {
			p.advance()
			seg, err := p.parseName()
			if err != nil {
				return TableRef{}, err
			}
			segments = append(segments, seg)
		}
		identifier = strings.Join(segments, ".")
	default:
		return TableRef{}, p.errorf("expected table identifier, found %s", p.cur().describe())
	}

	ref := TableRef{Identifier: identifier, At: at}
	if p.acceptKeyword("AS") {
		alias, err := p.parseName()
		if err != nil {
			return TableRef{}, err
		}
		ref.Alias = alias
	} else if p.cur().Type == TokenIdent && !p.atReserved() {
		ref.Alias = p.advance().Text
	}
	return ref, nil
}

func (p *parser) parseJoin() (JoinClause, bool, error) {
	kind := JoinInner
	switch {
	case p.isKeyword("JOIN"):
		p.advance()
	case p.isKeyword("INNER"):
		p.advance()
		if err := p.expectKeyword("JOIN"); err != nil {
			return JoinClause{}, false, err
		}
	case p.isKeyword("LEFT"):
		p.advance()
		p.acceptKeyword("OUTER")
		if err := p.expectKeyword("JOIN"); err != nil {
			return JoinClause{}, false, err
		}
		kind = JoinLeft
	case p.isKeyword("RIGHT"):
		p.advance()
		p.acceptKeyword("OUTER")
		if err := p.expectKeyword("JOIN"); err != nil {
			return JoinClause{}, false, err
		}
		kind = JoinRight
	default:
		return JoinClause{}, false, nil
	}

	table, err := p.parseTableRef()
	if err != nil {
		return JoinClause{}, false, err
	}
	// An ON predicate is mandatory: this grammar has no implicit cross join.
	if err := p.expectKeyword("ON"); err != nil {
		return JoinClause{}, false, err
	}
	on, err := p.parseExpr()
	if err != nil {
		return JoinClause{}, false, err
	}
	return JoinClause{Kind: kind, Table: table, On: on}, true, nil
}

func (p *parser) parseLimit() (*LimitClause, error) {
	count, err := p.parseIntLiteral()
	if err != nil {
		return nil, err
	}
	lim := &LimitClause{Count: count}
	if p.cur().Type == TokenComma {
		// MySQL-style `LIMIT offset, count`.
		p.advance()
		n, err := p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
		lim.Offset = lim.Count
		lim.Count = n
	} else if p.acceptKeyword("OFFSET") {
		lim.Offset, err = p.parseIntLiteral()
		if err != nil {
			return nil, err
		}
	}
	return lim, nil
}

func (p *parser) parseIntLiteral() (int64, error) {
	tok, err := p.expect(TokenInt)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if err != nil {
		return 0, domain.ErrSyntax(tok.Line, tok.Col, "invalid integer %q", tok.Text)
	}
	if n < 0 {
		return 0, domain.ErrSyntax(tok.Line, tok.Col, "negative count %d", n)
	}
	return n, nil
}

// Operator precedence, loosest first: OR < AND < NOT < comparison <
// additive < multiplicative < unary minus.

func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		at := Pos{Line: p.cur().Line, Col: p.cur().Col}
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpOr, Left: left, Right: right, At: at}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		at := Pos{Line: p.cur().Line, Col: p.cur().Col}
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpAnd, Left: left, Right: right, At: at}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.isKeyword("NOT") {
		at := Pos{Line: p.cur().Line, Col: p.cur().Col}
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNot, Operand: operand, At: at}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	var op BinaryOp
	switch p.cur().Type {
	case TokenEq:
		op = OpEq
	case TokenNe:
		op = OpNe
	case TokenLt:
		op = OpLt
	case TokenLe:
		op = OpLe
	case TokenGt:
		op = OpGt
	case TokenGe:
		op = OpGe
	default:
		return left, nil
	}
	at := Pos{Line: p.cur().Line, Col: p.cur().Col}
	p.advance()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: op, Left: left, Right: right, At: at}, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch p.cur().Type {
		case TokenPlus:
			op = OpAdd
		case TokenMinus:
			op = OpSub
		default:
			return left, nil
		}
		at := Pos{Line: p.cur().Line, Col: p.cur().Col}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right, At: at}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op BinaryOp
		switch p.cur().Type {
		case TokenStar:
			op = OpMul
		case TokenSlash:
			op = OpDiv
		case TokenPercent:
			op = OpMod
		default:
			return left, nil
		}
		at := Pos{Line: p.cur().Line, Col: p.cur().Col}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right, At: at}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	if p.cur().Type == TokenMinus {
		at := Pos{Line: p.cur().Line, Col: p.cur().Col}
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNeg, Operand: operand, At: at}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	at := Pos{Line: tok.Line, Col: tok.Col}

	switch tok.Type {
	case TokenInt:
		p.advance()
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			return nil, domain.ErrSyntax(tok.Line, tok.Col, "invalid integer %q", tok.Text)
		}
		return &Literal{Val: value.Int(n), At: at}, nil

	case TokenFloat:
		p.advance()
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, domain.ErrSyntax(tok.Line, tok.Col, "invalid number %q", tok.Text)
		}
		return &Literal{Val: value.Float(f), At: at}, nil

	case TokenString:
		p.advance()
		return &Literal{Val: value.Text(tok.Text), At: at}, nil

	case TokenLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return e, nil

	case TokenQuotedIdent:
		p.advance()
		if p.cur().Type == TokenDot {
			p.advance()
			name, err := p.parseName()
			if err != nil {
				return nil, err
			}
			return &ColumnRef{Table: tok.Text, Name: name, At: at}, nil
		}
		return &ColumnRef{Name: tok.Text, At: at}, nil

	case TokenIdent:
		switch strings.ToUpper(tok.Text) {
		case "TRUE":
			p.advance()
			return &Literal{Val: value.Bool(true), At: at}, nil
		case "FALSE":
			p.advance()
			return &Literal{Val: value.Bool(false), At: at}, nil
		case "NULL":
			p.advance()
			return &Literal{Val: value.Null(), At: at}, nil
		}
		if p.atReserved() {
			return nil, p.errorf("unexpected keyword %s", tok.describe())
		}
		p.advance()
		switch p.cur().Type {
		case TokenLParen:
			return p.parseCall(tok, at)
		case TokenDot:
			p.advance()
			name, err := p.parseName()
			if err != nil {
				return nil, err
			}
			return &ColumnRef{Table: tok.Text, Name: name, At: at}, nil
		}
		return &ColumnRef{Name: tok.Text, At: at}, nil
	}

	return nil, p.errorf("unexpected %s", tok.describe())
}

func (p *parser) parseCall(nameTok Token, at Pos) (Expr, error) {
	p.advance() // '('
	call := &CallExpr{Name: strings.ToUpper(nameTok.Text), At: at}
	if p.cur().Type == TokenStar {
		p.advance()
		call.Star = true
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return call, nil
	}
	if p.cur().Type == TokenRParen {
		p.advance()
		return call, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.cur().Type != TokenComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return call, nil
}
