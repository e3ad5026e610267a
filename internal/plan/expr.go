package plan

import (
	"strings"

	"sqlhild/internal/sql"
	"sqlhild/internal/value"
)

// Expr is a bound scalar expression: every column reference has been
// resolved to an ordinal in the node's input schema, so evaluation never
// consults names. Kind is the statically inferred result kind.
type Expr interface {
	Kind() value.Kind
	String() string
	exprNode()
}

// ColumnIdx reads one input column by position.
type ColumnIdx struct {
	Index   int
	Name    string // qualified display name, for error messages
	ColKind value.Kind
}

// Literal is a constant.
type Literal struct {
	Val value.Value
}

// Binary applies an infix operator to two bound operands.
type Binary struct {
	Op         sql.BinaryOp
	Left       Expr
	Right      Expr
	ResultKind value.Kind
}

// Unary applies NOT or numeric negation.
type Unary struct {
	Op      sql.UnaryOp
	Operand Expr
}

// Call invokes a scalar function.
type Call struct {
	Fn         string
	Args       []Expr
	ResultKind value.Kind
}

func (e *ColumnIdx) exprNode() {}
func (e *Literal) exprNode()   {}
func (e *Binary) exprNode()    {}
func (e *Unary) exprNode()     {}
func (e *Call) exprNode()      {}

func (e *ColumnIdx) Kind() value.Kind { return e.ColKind }
func (e *Literal) Kind() value.Kind   { return e.Val.Kind() }
func (e *Binary) Kind() value.Kind    { return e.ResultKind }
func (e *Call) Kind() value.Kind      { return e.ResultKind }

func (e *Unary) Kind() value.Kind {
	if e.Op == sql.OpNot {
		return value.KindBool
	}
	return e.Operand.Kind()
}

func (e *ColumnIdx) String() string { return e.Name }
func (e *Literal) String() string   { return e.Val.String() }

func (e *Binary) String() string {
	return e.Left.String() + " " + e.Op.String() + " " + e.Right.String()
}

func (e *Unary) String() string {
	if e.Op == sql.OpNot {
		return "NOT " + e.Operand.String()
	}
	return "-" + e.Operand.String()
}

func (e *Call) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Fn + "(" + strings.Join(args, ", ") + ")"
}

// scalarFunc describes a scalar function's arity and result kind. The
// implementations live in the eval package; the planner only needs the
// signatures to type the plan.
type scalarFunc struct {
	minArgs int
	maxArgs int // -1 for variadic
	result  func(args []Expr) value.Kind
}

var scalarFuncs = map[string]scalarFunc{
	"UPPER":  {1, 1, func([]Expr) value.Kind { return value.KindText }},
	"LOWER":  {1, 1, func([]Expr) value.Kind { return value.KindText }},
	"LENGTH": {1, 1, func([]Expr) value.Kind { return value.KindInt }},
	"ABS":    {1, 1, func(args []Expr) value.Kind { return args[0].Kind() }},
	"COALESCE": {1, -1, func(args []Expr) value.Kind {
		for _, a := range args {
			if a.Kind() != value.KindNull {
				return a.Kind()
			}
		}
		return value.KindNull
	}},
}

// aggregateFuncs are recognized in the SELECT list and trigger an
// Aggregate node.
var aggregateFuncs = map[string]bool{
	"COUNT": true,
	"SUM":   true,
	"AVG":   true,
	"MIN":   true,
	"MAX":   true,
}

// IsAggregateName reports whether the (upper-cased) function name is an
// aggregate.
func IsAggregateName(name string) bool { return aggregateFuncs[name] }

// aggregateResultKind types an aggregate output from its argument kind.
func aggregateResultKind(fn string, arg value.Kind) value.Kind {
	switch fn {
	case "COUNT":
		return value.KindInt
	case "AVG":
		return value.KindFloat
	case "SUM":
		if arg == value.KindFloat {
			return value.KindFloat
		}
		return value.KindInt
	default: // MIN, MAX keep the argument kind
		return arg
	}
}
