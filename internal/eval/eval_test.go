package eval

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sqlhild/internal/domain"
	"sqlhild/internal/plan"
	"sqlhild/internal/sql"
	"sqlhild/internal/value"
)

func lit(v value.Value) plan.Expr { return &plan.Literal{Val: v} }

func bin(op sql.BinaryOp, l, r plan.Expr) plan.Expr {
	kind := value.KindBool
	if !op.IsComparison() && op != sql.OpAnd && op != sql.OpOr {
		kind = value.KindInt
	}
	return &plan.Binary{Op: op, Left: l, Right: r, ResultKind: kind}
}

func mustEval(t *testing.T, e plan.Expr, row value.Row) value.Value {
	t.Helper()
	v, err := Eval(e, row)
	require.NoError(t, err)
	return v
}

func TestThreeValuedAnd(t *testing.T) {
	null := lit(value.Null())
	tru := lit(value.Bool(true))
	fls := lit(value.Bool(false))

	require.Equal(t, value.Bool(false), mustEval(t, bin(sql.OpAnd, null, fls), nil))
	require.Equal(t, value.Bool(false), mustEval(t, bin(sql.OpAnd, fls, null), nil))
	require.True(t, mustEval(t, bin(sql.OpAnd, null, tru), nil).IsNull())
	require.True(t, mustEval(t, bin(sql.OpAnd, null, null), nil).IsNull())
	require.Equal(t, value.Bool(true), mustEval(t, bin(sql.OpAnd, tru, tru), nil))
}

func TestThreeValuedOr(t *testing.T) {
	null := lit(value.Null())
	tru := lit(value.Bool(true))
	fls := lit(value.Bool(false))

	require.Equal(t, value.Bool(true), mustEval(t, bin(sql.OpOr, null, tru), nil))
	require.Equal(t, value.Bool(true), mustEval(t, bin(sql.OpOr, tru, null), nil))
	require.True(t, mustEval(t, bin(sql.OpOr, null, fls), nil).IsNull())
	require.Equal(t, value.Bool(false), mustEval(t, bin(sql.OpOr, fls, fls), nil))
}

func TestNullComparisonIsNull(t *testing.T) {
	// NULL = NULL is null, not true.
	v := mustEval(t, bin(sql.OpEq, lit(value.Null()), lit(value.Null())), nil)
	require.True(t, v.IsNull())

	v = mustEval(t, bin(sql.OpLt, lit(value.Int(1)), lit(value.Null())), nil)
	require.True(t, v.IsNull())
}

func TestNotNull(t *testing.T) {
	v := mustEval(t, &plan.Unary{Op: sql.OpNot, Operand: lit(value.Null())}, nil)
	require.True(t, v.IsNull())

	v = mustEval(t, &plan.Unary{Op: sql.OpNot, Operand: lit(value.Bool(true))}, nil)
	require.Equal(t, value.Bool(false), v)
}

func TestAcceptExcludesNullAndFalse(t *testing.T) {
	ok, err := Accept(lit(value.Null()), nil)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = Accept(lit(value.Bool(false)), nil)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = Accept(lit(value.Bool(true)), nil)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = Accept(lit(value.Int(1)), nil)
	var evalErr *domain.EvalError
	require.ErrorAs(t, err, &evalErr)
}

func TestTextNumberCoercion(t *testing.T) {
	// WHERE value = '1' matches integer 1.
	v := mustEval(t, bin(sql.OpEq, lit(value.Int(1)), lit(value.Text("1"))), nil)
	require.Equal(t, value.Bool(true), v)
}

func TestIntegerArithmetic(t *testing.T) {
	require.Equal(t, value.Int(7), mustEval(t, bin(sql.OpAdd, lit(value.Int(3)), lit(value.Int(4))), nil))
	require.Equal(t, value.Int(2), mustEval(t, bin(sql.OpDiv, lit(value.Int(7)), lit(value.Int(3))), nil))
	require.Equal(t, value.Int(1), mustEval(t, bin(sql.OpMod, lit(value.Int(7)), lit(value.Int(3))), nil))
}

func TestFloatPromotion(t *testing.T) {
	v := mustEval(t, bin(sql.OpMul, lit(value.Int(2)), lit(value.Float(1.5))), nil)
	require.Equal(t, value.Float(3.0), v)
}

func TestDivisionByZero(t *testing.T) {
	_, err := Eval(bin(sql.OpDiv, lit(value.Int(1)), lit(value.Int(0))), nil)
	var evalErr *domain.EvalError
	require.ErrorAs(t, err, &evalErr)

	_, err = Eval(bin(sql.OpMod, lit(value.Int(1)), lit(value.Int(0))), nil)
	require.ErrorAs(t, err, &evalErr)
}

func TestArithmeticNullPropagates(t *testing.T) {
	v := mustEval(t, bin(sql.OpAdd, lit(value.Int(1)), lit(value.Null())), nil)
	require.True(t, v.IsNull())
}

func TestColumnIndex(t *testing.T) {
	row := value.Row{value.Int(10), value.Text("x")}
	e := &plan.ColumnIdx{Index: 1, Name: "t.name", ColKind: value.KindText}
	require.Equal(t, value.Text("x"), mustEval(t, e, row))
}

func TestScalarFunctions(t *testing.T) {
	call := func(fn string, args ...plan.Expr) plan.Expr {
		return &plan.Call{Fn: fn, Args: args}
	}

	require.Equal(t, value.Text("ABC"), mustEval(t, call("UPPER", lit(value.Text("abc"))), nil))
	require.Equal(t, value.Text("abc"), mustEval(t, call("LOWER", lit(value.Text("ABC"))), nil))
	require.Equal(t, value.Int(3), mustEval(t, call("LENGTH", lit(value.Text("abc"))), nil))
	require.Equal(t, value.Int(4), mustEval(t, call("ABS", lit(value.Int(-4))), nil))
	require.Equal(t, value.Float(2.5), mustEval(t, call("ABS", lit(value.Float(-2.5))), nil))

	// Null propagation.
	require.True(t, mustEval(t, call("UPPER", lit(value.Null())), nil).IsNull())

	// COALESCE returns the first non-null argument.
	v := mustEval(t, call("COALESCE", lit(value.Null()), lit(value.Int(2)), lit(value.Int(3))), nil)
	require.Equal(t, value.Int(2), v)
	require.True(t, mustEval(t, call("COALESCE", lit(value.Null())), nil).IsNull())
}

func TestNegation(t *testing.T) {
	require.Equal(t, value.Int(-5), mustEval(t, &plan.Unary{Op: sql.OpNeg, Operand: lit(value.Int(5))}, nil))
	require.Equal(t, value.Float(-1.5), mustEval(t, &plan.Unary{Op: sql.OpNeg, Operand: lit(value.Float(1.5))}, nil))
	require.True(t, mustEval(t, &plan.Unary{Op: sql.OpNeg, Operand: lit(value.Null())}, nil).IsNull())
}
