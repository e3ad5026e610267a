// Package eval evaluates bound expressions over rows. Comparisons and
// logical connectives follow SQL three-valued logic: any null operand
// yields null unless the connective can decide without it.
package eval

import (
	"math"
	"strings"

	"sqlhild/internal/domain"
	"sqlhild/internal/plan"
	"sqlhild/internal/sql"
	"sqlhild/internal/value"
)

// Eval computes the expression over one input row.
func Eval(e plan.Expr, row value.Row) (value.Value, error) {
	switch t := e.(type) {
	case *plan.Literal:
		return t.Val, nil
	case *plan.ColumnIdx:
		return row[t.Index], nil
	case *plan.Unary:
		return evalUnary(t, row)
	case *plan.Binary:
		return evalBinary(t, row)
	case *plan.Call:
		return evalCall(t, row)
	}
	return value.Null(), domain.ErrEval("cannot evaluate expression %q", e.String())
}

// Accept reports whether the predicate admits the row: only a true result
// passes, false and null both exclude.
func Accept(pred plan.Expr, row value.Row) (bool, error) {
	v, err := Eval(pred, row)
	if err != nil {
		return false, err
	}
	if v.IsNull() {
		return false, nil
	}
	if v.Kind() != value.KindBool {
		return false, domain.ErrEval("predicate produced %s, not boolean", v.Kind())
	}
	return v.Bool(), nil
}

func evalUnary(e *plan.Unary, row value.Row) (value.Value, error) {
	v, err := Eval(e.Operand, row)
	if err != nil {
		return value.Null(), err
	}
	switch e.Op {
	case sql.OpNot:
		if v.IsNull() {
			return value.Null(), nil
		}
		if v.Kind() != value.KindBool {
			return value.Null(), domain.ErrEval("NOT applied to %s", v.Kind())
		}
		return value.Bool(!v.Bool()), nil
	case sql.OpNeg:
		switch v.Kind() {
		case value.KindNull:
			return value.Null(), nil
		case value.KindInt:
			return value.Int(-v.Int()), nil
		case value.KindFloat:
			return value.Float(-v.Float()), nil
		}
		return value.Null(), domain.ErrEval("unary minus applied to %s", v.Kind())
	}
	return value.Null(), domain.ErrEval("unknown unary operator")
}

func evalBinary(e *plan.Binary, row value.Row) (value.Value, error) {
	if e.Op == sql.OpAnd || e.Op == sql.OpOr {
		return evalLogical(e, row)
	}

	left, err := Eval(e.Left, row)
	if err != nil {
		return value.Null(), err
	}
	right, err := Eval(e.Right, row)
	if err != nil {
		return value.Null(), err
	}

	if e.Op.IsComparison() {
		return evalComparison(e.Op, left, right)
	}
	return evalArithmetic(e.Op, left, right)
}

// evalLogical short-circuits: false AND x is false and true OR x is true
// without evaluating x. Null dominates otherwise.
func evalLogical(e *plan.Binary, row value.Row) (value.Value, error) {
	left, err := Eval(e.Left, row)
	if err != nil {
		return value.Null(), err
	}
	lv, err := truth(left)
	if err != nil {
		return value.Null(), err
	}

	if e.Op == sql.OpAnd && lv == triFalse {
		return value.Bool(false), nil
	}
	if e.Op == sql.OpOr && lv == triTrue {
		return value.Bool(true), nil
	}

	right, err := Eval(e.Right, row)
	if err != nil {
		return value.Null(), err
	}
	rv, err := truth(right)
	if err != nil {
		return value.Null(), err
	}

	if e.Op == sql.OpAnd {
		switch {
		case rv == triFalse:
			return value.Bool(false), nil
		case lv == triNull || rv == triNull:
			return value.Null(), nil
		}
		return value.Bool(true), nil
	}
	switch {
	case rv == triTrue:
		return value.Bool(true), nil
	case lv == triNull || rv == triNull:
		return value.Null(), nil
	}
	return value.Bool(false), nil
}

type tri int

const (
	triFalse tri = iota
	triTrue
	triNull
)

func truth(v value.Value) (tri, error) {
	switch v.Kind() {
	case value.KindNull:
		return triNull, nil
	case value.KindBool:
		if v.Bool() {
			return triTrue, nil
		}
		return triFalse, nil
	}
	return triNull, domain.ErrEval("%s is not a boolean", v.Kind())
}

func evalComparison(op sql.BinaryOp, left, right value.Value) (value.Value, error) {
	if left.IsNull() || right.IsNull() {
		return value.Null(), nil
	}
	c, err := value.Compare(left, right)
	if err != nil {
		return value.Null(), domain.ErrEval("%s", err.Error())
	}
	switch op {
	case sql.OpEq:
		return value.Bool(c == 0), nil
	case sql.OpNe:
		return value.Bool(c != 0), nil
	case sql.OpLt:
		return value.Bool(c < 0), nil
	case sql.OpLe:
		return value.Bool(c <= 0), nil
	case sql.OpGt:
		return value.Bool(c > 0), nil
	case sql.OpGe:
		return value.Bool(c >= 0), nil
	}
	return value.Null(), domain.ErrEval("unknown comparison operator")
}

// evalArithmetic keeps integer math exact: two integer operands produce an
// integer (division truncates); any float operand promotes to float.
func evalArithmetic(op sql.BinaryOp, left, right value.Value) (value.Value, error) {
	if left.IsNull() || right.IsNull() {
		return value.Null(), nil
	}

	if left.Kind() == value.KindInt && right.Kind() == value.KindInt {
		a, b := left.Int(), right.Int()
		switch op {
		case sql.OpAdd:
			return value.Int(a + b), nil
		case sql.OpSub:
			return value.Int(a - b), nil
		case sql.OpMul:
			return value.Int(a * b), nil
		case sql.OpDiv:
			if b == 0 {
				return value.Null(), domain.ErrEval("division by zero")
			}
			return value.Int(a / b), nil
		case sql.OpMod:
			if b == 0 {
				return value.Null(), domain.ErrEval("division by zero")
			}
			return value.Int(a % b), nil
		}
	}

	a, aok := numeric(left)
	b, bok := numeric(right)
	if !aok || !bok {
		return value.Null(), domain.ErrEval("arithmetic on %s and %s", left.Kind(), right.Kind())
	}
	switch op {
	case sql.OpAdd:
		return value.Float(a + b), nil
	case sql.OpSub:
		return value.Float(a - b), nil
	case sql.OpMul:
		return value.Float(a * b), nil
	case sql.OpDiv:
		if b == 0 {
			return value.Null(), domain.ErrEval("division by zero")
		}
		return value.Float(a / b), nil
	case sql.OpMod:
		if b == 0 {
			return value.Null(), domain.ErrEval("division by zero")
		}
		return value.Float(math.Mod(a, b)), nil
	}
	return value.Null(), domain.ErrEval("unknown arithmetic operator")
}

func numeric(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindInt:
		return float64(v.Int()), true
	case value.KindFloat:
		return v.Float(), true
	}
	return 0, false
}

func evalCall(e *plan.Call, row value.Row) (value.Value, error) {
	args := make([]value.Value, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(a, row)
		if err != nil {
			return value.Null(), err
		}
		args[i] = v
	}

	switch e.Fn {
	case "COALESCE":
		for _, a := range args {
			if !a.IsNull() {
				return a, nil
			}
		}
		return value.Null(), nil
	}

	// The remaining functions propagate null.
	if args[0].IsNull() {
		return value.Null(), nil
	}
	switch e.Fn {
	case "UPPER", "LOWER":
		if args[0].Kind() != value.KindText && args[0].Kind() != value.KindOpaque {
			return value.Null(), domain.ErrEval("%s applied to %s", e.Fn, args[0].Kind())
		}
		if e.Fn == "UPPER" {
			return value.Text(strings.ToUpper(args[0].Text())), nil
		}
		return value.Text(strings.ToLower(args[0].Text())), nil
	case "LENGTH":
		if args[0].Kind() != value.KindText && args[0].Kind() != value.KindOpaque {
			return value.Null(), domain.ErrEval("LENGTH applied to %s", args[0].Kind())
		}
		return value.Int(int64(len(args[0].Text()))), nil
	case "ABS":
		switch args[0].Kind() {
		case value.KindInt:
			n := args[0].Int()
			if n < 0 {
				n = -n
			}
			return value.Int(n), nil
		case value.KindFloat:
			return value.Float(math.Abs(args[0].Float())), nil
		}
		return value.Null(), domain.ErrEval("ABS applied to %s", args[0].Kind())
	}
	return value.Null(), domain.ErrEval("unknown function %s", e.Fn)
}
