package sql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sqlhild/internal/domain"
)

func TestLexBasicTokens(t *testing.T) {
	toks, err := Lex("select value, 3.5 from t where a >= 10 and b != 'x'")
	require.NoError(t, err)

	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	require.Equal(t, []TokenType{
		TokenIdent, TokenIdent, TokenComma, TokenFloat, TokenIdent, TokenIdent,
		TokenIdent, TokenIdent, TokenGe, TokenInt, TokenIdent, TokenIdent,
		TokenNe, TokenString, TokenEOF,
	}, types)
}

func TestLexNeSpellings(t *testing.T) {
	for _, src := range []string{"a != b", "a <> b"} {
		toks, err := Lex(src)
		require.NoError(t, err)
		require.Equal(t, TokenNe, toks[1].Type, src)
	}
}

func TestLexStringEscape(t *testing.T) {
	toks, err := Lex("'it''s'")
	require.NoError(t, err)
	require.Equal(t, TokenString, toks[0].Type)
	require.Equal(t, "it's", toks[0].Text)
}

func TestLexUnterminatedString(t *testing.T) {
	_, err := Lex("select 'abc")
	var syntaxErr *domain.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
}

func TestLexComments(t *testing.T) {
	toks, err := Lex("select 1 -- trailing comment\n-- full line\n, 2")
	require.NoError(t, err)
	var texts []string
	for _, tok := range toks {
		if tok.Type != TokenEOF {
			texts = append(texts, tok.Text)
		}
	}
	require.Equal(t, []string{"select", "1", ",", "2"}, texts)
}

func TestLexQuotedIdentifiers(t *testing.T) {
	toks, err := Lex("select value from `path/to.module.Table`")
	require.NoError(t, err)
	require.Equal(t, TokenQuotedIdent, toks[3].Type)
	require.Equal(t, "path/to.module.Table", toks[3].Text)

	toks, err = Lex("[my table]")
	require.NoError(t, err)
	require.Equal(t, TokenQuotedIdent, toks[0].Type)
	require.Equal(t, "my table", toks[0].Text)
}

func TestLexNumbers(t *testing.T) {
	toks, err := Lex("1 42 3.25 1e3 2.5e-2")
	require.NoError(t, err)
	require.Equal(t, TokenInt, toks[0].Type)
	require.Equal(t, TokenInt, toks[1].Type)
	require.Equal(t, TokenFloat, toks[2].Type)
	require.Equal(t, TokenFloat, toks[3].Type)
	require.Equal(t, TokenFloat, toks[4].Type)
}

func TestLexQualifiedNameNotFloat(t *testing.T) {
	// t.value must stay ident dot ident, not lex "t." as a number start.
	toks, err := Lex("t.value")
	require.NoError(t, err)
	require.Equal(t, TokenIdent, toks[0].Type)
	require.Equal(t, TokenDot, toks[1].Type)
	require.Equal(t, TokenIdent, toks[2].Type)
}

func TestLexPositions(t *testing.T) {
	toks, err := Lex("select\n  value")
	require.NoError(t, err)
	require.Equal(t, 1, toks[0].Line)
	require.Equal(t, 1, toks[0].Col)
	require.Equal(t, 2, toks[1].Line)
	require.Equal(t, 3, toks[1].Col)
}
