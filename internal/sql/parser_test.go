package sql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sqlhild/internal/domain"
	"sqlhild/internal/value"
)

func mustParse(t *testing.T, src string) *SelectStmt {
	t.Helper()
	stmt, err := Parse(src)
	require.NoError(t, err, src)
	return stmt
}

func TestParseStarSelect(t *testing.T) {
	stmt := mustParse(t, "select * from sqlhild.example.OneToTen")
	require.Len(t, stmt.Items, 1)
	require.True(t, stmt.Items[0].Star)
	require.Equal(t, "sqlhild.example.OneToTen", stmt.From.Identifier)
	require.Equal(t, "OneToTen", stmt.From.Label())
}

func TestParseQuotedTableIdentifier(t *testing.T) {
	stmt := mustParse(t, "select value from `path/to.module.Numbers`")
	require.Equal(t, "path/to.module.Numbers", stmt.From.Identifier)
}

func TestParseTableAlias(t *testing.T) {
	stmt := mustParse(t, "select n.value from sqlhild.example.OneToTen as n")
	require.Equal(t, "n", stmt.From.Alias)
	require.Equal(t, "n", stmt.From.Label())

	stmt = mustParse(t, "select n.value from sqlhild.example.OneToTen n")
	require.Equal(t, "n", stmt.From.Alias)
}

func TestParseSelectItemAlias(t *testing.T) {
	stmt := mustParse(t, "select value as v, value + 1 plus from t")
	require.Equal(t, "v", stmt.Items[0].OutputName())
	require.Equal(t, "plus", stmt.Items[1].OutputName())
}

func TestParseOutputNameDefaults(t *testing.T) {
	stmt := mustParse(t, "select a.value, count(*) from t group by a.value")
	require.Equal(t, "value", stmt.Items[0].OutputName())
	require.Equal(t, "COUNT(*)", stmt.Items[1].OutputName())
}

func TestParseWherePrecedence(t *testing.T) {
	// a = 1 or b = 2 and c = 3 parses as a = 1 or (b = 2 and c = 3).
	stmt := mustParse(t, "select * from t where a = 1 or b = 2 and c = 3")
	or, ok := stmt.Where.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, OpOr, or.Op)
	and, ok := or.Right.(*BinaryExpr)
	require.True(t, ok)
	require.Equal(t, OpAnd, and.Op)
}

func TestParseArithmeticPrecedence(t *testing.T) {
	stmt := mustParse(t, "select * from t where a + b * 2 = 7")
	cmp := stmt.Where.(*BinaryExpr)
	require.Equal(t, OpEq, cmp.Op)
	add := cmp.Left.(*BinaryExpr)
	require.Equal(t, OpAdd, add.Op)
	mul := add.Right.(*BinaryExpr)
	require.Equal(t, OpMul, mul.Op)
}

func TestParseNotBindsTighterThanAnd(t *testing.T) {
	stmt := mustParse(t, "select * from t where not a = 1 and b = 2")
	and := stmt.Where.(*BinaryExpr)
	require.Equal(t, OpAnd, and.Op)
	_, ok := and.Left.(*UnaryExpr)
	require.True(t, ok)
}

func TestParseLiterals(t *testing.T) {
	stmt := mustParse(t, "select * from t where a = null or b = true or c = false or d = 'x' or e = 2.5")
	require.NotNil(t, stmt.Where)

	lit := func(src string) value.Value {
		s := mustParse(t, "select * from t where x = "+src)
		return s.Where.(*BinaryExpr).Right.(*Literal).Val
	}
	require.Equal(t, value.KindNull, lit("NULL").Kind())
	require.Equal(t, value.Bool(true), lit("TRUE"))
	require.Equal(t, value.Int(42), lit("42"))
	require.Equal(t, value.Float(2.5), lit("2.5"))
	require.Equal(t, value.Text("x"), lit("'x'"))
}

func TestParseJoins(t *testing.T) {
	stmt := mustParse(t, `select * from a
		join b on a.id = b.id
		left outer join c on b.id = c.id
		right join d on c.id = d.id`)
	require.Len(t, stmt.Joins, 3)
	require.Equal(t, JoinInner, stmt.Joins[0].Kind)
	require.Equal(t, JoinLeft, stmt.Joins[1].Kind)
	require.Equal(t, JoinRight, stmt.Joins[2].Kind)
}

func TestParseJoinRequiresOn(t *testing.T) {
	_, err := Parse("select * from a join b")
	var syntaxErr *domain.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
}

func TestParseGroupByOrderBy(t *testing.T) {
	stmt := mustParse(t, "select value, count(*) from t group by value order by count(*) desc, value")
	require.Len(t, stmt.GroupBy, 1)
	require.Len(t, stmt.OrderBy, 2)
	require.True(t, stmt.OrderBy[0].Desc)
	require.False(t, stmt.OrderBy[1].Desc)
}

func TestParseLimitForms(t *testing.T) {
	stmt := mustParse(t, "select * from t limit 5")
	require.Equal(t, int64(5), stmt.Limit.Count)
	require.Equal(t, int64(0), stmt.Limit.Offset)

	stmt = mustParse(t, "select * from t limit 5 offset 3")
	require.Equal(t, int64(5), stmt.Limit.Count)
	require.Equal(t, int64(3), stmt.Limit.Offset)

	// MySQL form: LIMIT offset, count.
	stmt = mustParse(t, "select * from t limit 3, 5")
	require.Equal(t, int64(5), stmt.Limit.Count)
	require.Equal(t, int64(3), stmt.Limit.Offset)
}

func TestParseDistinct(t *testing.T) {
	stmt := mustParse(t, "select distinct value from t")
	require.True(t, stmt.Distinct)
}

func TestParseCountStar(t *testing.T) {
	stmt := mustParse(t, "select count(*) from t")
	call := stmt.Items[0].Expr.(*CallExpr)
	require.Equal(t, "COUNT", call.Name)
	require.True(t, call.Star)
}

func TestParseTrailingSemicolon(t *testing.T) {
	for _, src := range []string{
		"select * from t;",
		"select * from t ; ",
		"select * from t;;",
		"select value from t where value > 5 order by value desc limit 2;",
	} {
		mustParse(t, src)
	}

	// A semicolon only terminates; it does not separate statements.
	_, err := Parse("select * from t; select * from t")
	var syntaxErr *domain.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"select",
		"select * from",
		"select * from t where",
		"select * where x = 1",
		"select * from t limit -1",
		"select * from t extra garbage",
		"select * from t order value",
	}
	for _, src := range cases {
		_, err := Parse(src)
		var syntaxErr *domain.SyntaxError
		require.ErrorAs(t, err, &syntaxErr, src)
	}
}

func TestParseSyntaxErrorPosition(t *testing.T) {
	_, err := Parse("select *\nfrom t where +")
	var syntaxErr *domain.SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	require.Equal(t, 2, syntaxErr.Line)
}
