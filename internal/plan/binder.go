package plan

import (
	"sqlhild/internal/domain"
	"sqlhild/internal/sql"
	"sqlhild/internal/value"
)

// binder resolves AST expressions against one input schema, producing
// bound expressions with positional column references. Aggregate calls are
// rejected; aggregate queries route through aggBinder instead.
type binder struct {
	schema value.Schema
}

func (b *binder) bind(e sql.Expr) (Expr, error) {
	switch t := e.(type) {
	case *sql.Literal:
		return &Literal{Val: t.Val}, nil
	case *sql.ColumnRef:
		return b.bindColumn(t)
	case *sql.BinaryExpr:
		left, err := b.bind(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.bind(t.Right)
		if err != nil {
			return nil, err
		}
		return typeBinary(t.Op, left, right)
	case *sql.UnaryExpr:
		operand, err := b.bind(t.Operand)
		if err != nil {
			return nil, err
		}
		return typeUnary(t.Op, operand)
	case *sql.CallExpr:
		if IsAggregateName(t.Name) {
			return nil, domain.ErrPlan("aggregate function %s is not allowed here", t.Name)
		}
		args := make([]Expr, len(t.Args))
		for i, a := range t.Args {
			bound, err := b.bind(a)
			if err != nil {
				return nil, err
			}
			args[i] = bound
		}
		return typeCall(t.Name, args)
	}
	return nil, domain.ErrPlan("unsupported expression %q", e.String())
}

func (b *binder) bindColumn(ref *sql.ColumnRef) (Expr, error) {
	matches := b.schema.Lookup(ref.Table, ref.Name)
	switch len(matches) {
	case 0:
		return nil, domain.ErrPlan("unknown column %q", ref.String())
	case 1:
		col := b.schema[matches[0]]
		return &ColumnIdx{Index: matches[0], Name: col.QualifiedName(), ColKind: col.Kind}, nil
	default:
		return nil, domain.ErrPlan("ambiguous column reference %q", ref.String())
	}
}

// typeBinary checks operand kinds and computes the result kind. Opaque and
// null operands defer to evaluation time.
func typeBinary(op sql.BinaryOp, left, right Expr) (Expr, error) {
	lk, rk := left.Kind(), right.Kind()
	switch {
	case op == sql.OpAnd || op == sql.OpOr:
		if !boolish(lk) || !boolish(rk) {
			return nil, domain.ErrPlan("%s requires boolean operands, got %s and %s", op, lk, rk)
		}
		return &Binary{Op: op, Left: left, Right: right, ResultKind: value.KindBool}, nil
	case op.IsComparison():
		if !comparableKinds(lk, rk) {
			return nil, domain.ErrPlan("cannot compare %s with %s", lk, rk)
		}
		return &Binary{Op: op, Left: left, Right: right, ResultKind: value.KindBool}, nil
	default: // arithmetic
		if !numericish(lk) || !numericish(rk) {
			return nil, domain.ErrPlan("operator %s is not defined for %s and %s", op, lk, rk)
		}
		rkKind := value.KindInt
		if lk == value.KindFloat || rk == value.KindFloat {
			rkKind = value.KindFloat
		}
		if lk == value.KindNull && rk == value.KindNull {
			rkKind = value.KindNull
		}
		return &Binary{Op: op, Left: left, Right: right, ResultKind: rkKind}, nil
	}
}

func typeUnary(op sql.UnaryOp, operand Expr) (Expr, error) {
	k := operand.Kind()
	switch op {
	case sql.OpNot:
		if !boolish(k) {
			return nil, domain.ErrPlan("NOT requires a boolean operand, got %s", k)
		}
	case sql.OpNeg:
		if !numericish(k) {
			return nil, domain.ErrPlan("unary minus is not defined for %s", k)
		}
	}
	return &Unary{Op: op, Operand: operand}, nil
}

func typeCall(name string, args []Expr) (Expr, error) {
	fn, ok := scalarFuncs[name]
	if !ok {
		return nil, domain.ErrPlan("unknown function %s", name)
	}
	if len(args) < fn.minArgs || (fn.maxArgs >= 0 && len(args) > fn.maxArgs) {
		return nil, domain.ErrPlan("wrong number of arguments to %s", name)
	}
	return &Call{Fn: name, Args: args, ResultKind: fn.result(args)}, nil
}

// comparableKinds allows same-kind comparison, numeric interop, and
// text-to-number coercion. Anything touching null or opaque is resolved
// at evaluation time.
func comparableKinds(a, b value.Kind) bool {
	if a == value.KindNull || b == value.KindNull || a == value.KindOpaque || b == value.KindOpaque {
		return true
	}
	if a == b {
		return true
	}
	if isNumeric(a) && isNumeric(b) {
		return true
	}
	if a == value.KindText && isNumeric(b) || b == value.KindText && isNumeric(a) {
		return true
	}
	return false
}

func isNumeric(k value.Kind) bool {
	return k == value.KindInt || k == value.KindFloat
}

func numericish(k value.Kind) bool {
	return isNumeric(k) || k == value.KindNull || k == value.KindOpaque
}
