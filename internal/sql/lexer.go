package sql

import (
	"strings"

	"sqlhild/internal/domain"
)

// lexer is a single left-to-right scan over the source text. No
// backtracking: every token is decided by at most one character of
// lookahead.
type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

// Lex tokenizes the whole input.
func Lex(src string) ([]Token, error) {
	lx := newLexer(src)
	var out []Token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.Type == TokenEOF {
			return out, nil
		}
	}
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) advance() byte {
	ch := l.src[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch l.peek() {
		case ' ', '\t', '\r', '\n':
			l.advance()
		case '-':
			// "--" line comment
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '-' {
				for l.pos < len(l.src) && l.peek() != '\n' {
					l.advance()
				}
				continue
			}
			return
		default:
			return
		}
	}
}

func (l *lexer) next() (Token, error) {
	l.skipSpace()
	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return Token{Type: TokenEOF, Line: line, Col: col}, nil
	}

	ch := l.peek()
	switch {
	case isIdentStart(ch):
		return l.lexIdent(line, col), nil
	case ch >= '0' && ch <= '9':
		return l.lexNumber(line, col)
	case ch == '\'':
		return l.lexString(line, col)
	case ch == '`':
		return l.lexQuotedIdent(line, col, '`')
	case ch == '[':
		return l.lexQuotedIdent(line, col, ']')
	}

	l.advance()
	mk := func(t TokenType, text string) (Token, error) {
		return Token{Type: t, Text: text, Line: line, Col: col}, nil
	}
	switch ch {
	case ',':
		return mk(TokenComma, ",")
	case '.':
		return mk(TokenDot, ".")
	case ';':
		return mk(TokenSemi, ";")
	case '(':
		return mk(TokenLParen, "(")
	case ')':
		return mk(TokenRParen, ")")
	case '*':
		return mk(TokenStar, "*")
	case '+':
		return mk(TokenPlus, "+")
	case '-':
		return mk(TokenMinus, "-")
	case '/':
		return mk(TokenSlash, "/")
	case '%':
		return mk(TokenPercent, "%")
	case '=':
		return mk(TokenEq, "=")
	case '<':
		if l.peek() == '=' {
			l.advance()
			return mk(TokenLe, "<=")
		}
		if l.peek() == '>' {
			l.advance()
			return mk(TokenNe, "<>")
		}
		return mk(TokenLt, "<")
	case '>':
		if l.peek() == '=' {
			l.advance()
			return mk(TokenGe, ">=")
		}
		return mk(TokenGt, ">")
	case '!':
		if l.peek() == '=' {
			l.advance()
			return mk(TokenNe, "!=")
		}
		return Token{}, domain.ErrSyntax(line, col, "unexpected character '!'")
	}
	return Token{}, domain.ErrSyntax(line, col, "unexpected character %q", string(ch))
}

func (l *lexer) lexIdent(line, col int) Token {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	return Token{Type: TokenIdent, Text: l.src[start:l.pos], Line: line, Col: col}
}

func (l *lexer) lexNumber(line, col int) (Token, error) {
	start := l.pos
	typ := TokenInt
	for l.pos < len(l.src) && l.peek() >= '0' && l.peek() <= '9' {
		l.advance()
	}
	if l.pos < len(l.src) && l.peek() == '.' {
		// A trailing dot followed by a non-digit belongs to a qualified
		// name, not this number.
		if l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9' {
			typ = TokenFloat
			l.advance()
			for l.pos < len(l.src) && l.peek() >= '0' && l.peek() <= '9' {
				l.advance()
			}
		}
	}
	if l.pos < len(l.src) && (l.peek() == 'e' || l.peek() == 'E') {
		savePos, saveCol := l.pos, l.col
		l.advance()
		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}
		if l.peek() >= '0' && l.peek() <= '9' {
			typ = TokenFloat
			for l.pos < len(l.src) && l.peek() >= '0' && l.peek() <= '9' {
				l.advance()
			}
		} else {
			l.pos, l.col = savePos, saveCol
		}
	}
	return Token{Type: typ, Text: l.src[start:l.pos], Line: line, Col: col}, nil
}

func (l *lexer) lexString(line, col int) (Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, domain.ErrSyntax(line, col, "unterminated string literal")
		}
		ch := l.advance()
		if ch == '\'' {
			if l.peek() == '\'' { // doubled quote escape
				l.advance()
				sb.WriteByte('\'')
				continue
			}
			return Token{Type: TokenString, Text: sb.String(), Line: line, Col: col}, nil
		}
		sb.WriteByte(ch)
	}
}

// lexQuotedIdent reads a backtick- or bracket-quoted identifier. Internal
// dots and slashes are preserved verbatim: these identifiers double as
// module paths for the provider loader.
func (l *lexer) lexQuotedIdent(line, col int, closing byte) (Token, error) {
	l.advance() // opening quote
	start := l.pos
	for {
		if l.pos >= len(l.src) {
			return Token{}, domain.ErrSyntax(line, col, "unterminated quoted identifier")
		}
		if l.peek() == closing {
			text := l.src[start:l.pos]
			l.advance()
			if text == "" {
				return Token{}, domain.ErrSyntax(line, col, "empty quoted identifier")
			}
			return Token{Type: TokenQuotedIdent, Text: text, Line: line, Col: col}, nil
		}
		l.advance()
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
