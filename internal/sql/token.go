package sql

import "fmt"

// TokenType classifies lexer output.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenQuotedIdent // backtick- or bracket-quoted, content preserved verbatim
	TokenString
	TokenInt
	TokenFloat
	TokenComma
	TokenDot
	TokenSemi
	TokenLParen
	TokenRParen
	TokenStar
	TokenPlus
	TokenMinus
	TokenSlash
	TokenPercent
	TokenEq
	TokenNe
	TokenLt
	TokenLe
	TokenGt
	TokenGe
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenQuotedIdent:
		return "quoted identifier"
	case TokenString:
		return "string"
	case TokenInt:
		return "integer"
	case TokenFloat:
		return "float"
	case TokenComma:
		return "','"
	case TokenDot:
		return "'.'"
	case TokenSemi:
		return "';'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenStar:
		return "'*'"
	case TokenPlus:
		return "'+'"
	case TokenMinus:
		return "'-'"
	case TokenSlash:
		return "'/'"
	case TokenPercent:
		return "'%'"
	case TokenEq:
		return "'='"
	case TokenNe:
		return "'<>'"
	case TokenLt:
		return "'<'"
	case TokenLe:
		return "'<='"
	case TokenGt:
		return "'>'"
	case TokenGe:
		return "'>='"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// Token is one lexeme with its 1-based source position.
type Token struct {
	Type TokenType
	Text string
	Line int
	Col  int
}

func (t Token) describe() string {
	if t.Type == TokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Text)
}
