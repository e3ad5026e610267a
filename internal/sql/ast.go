// Package sql turns SQL source text into an abstract syntax tree for the
// SELECT-statement grammar: projection list, FROM with a provider
// identifier, JOIN ... ON, WHERE, GROUP BY, ORDER BY, LIMIT/OFFSET.
package sql

import (
	"strings"

	"sqlhild/internal/value"
)

// Pos is a 1-based source location.
type Pos struct {
	Line int
	Col  int
}

// Expr is a scalar expression node.
type Expr interface {
	Pos() Pos
	String() string
	exprNode()
}

// ColumnRef names a column, optionally qualified by a table alias or name.
type ColumnRef struct {
	Table string
	Name  string
	At    Pos
}

// Literal is a constant value.
type Literal struct {
	Val value.Value
	At  Pos
}

// BinaryOp enumerates infix operators.
type BinaryOp int

const (
	OpEq BinaryOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

func (op BinaryOp) String() string {
	switch op {
	case OpEq:
		return "="
	case OpNe:
		return "<>"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "AND"
	case OpOr:
		return "OR"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	}
	return "?"
}

// IsComparison reports whether the operator yields a boolean from two
// scalar operands.
func (op BinaryOp) IsComparison() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// BinaryExpr applies an infix operator.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
	At    Pos
}

// UnaryOp enumerates prefix operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
)

// UnaryExpr applies a prefix operator.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
	At      Pos
}

// CallExpr is a function call. Star marks COUNT(*).
type CallExpr struct {
	Name string // upper-cased at parse time
	Args []Expr
	Star bool
	At   Pos
}

func (e *ColumnRef) exprNode()  {}
func (e *Literal) exprNode()    {}
func (e *BinaryExpr) exprNode() {}
func (e *UnaryExpr) exprNode()  {}
func (e *CallExpr) exprNode()   {}

func (e *ColumnRef) Pos() Pos  { return e.At }
func (e *Literal) Pos() Pos    { return e.At }
func (e *BinaryExpr) Pos() Pos { return e.At }
func (e *UnaryExpr) Pos() Pos  { return e.At }
func (e *CallExpr) Pos() Pos   { return e.At }

func (e *ColumnRef) String() string {
	if e.Table == "" {
		return e.Name
	}
	return e.Table + "." + e.Name
}

func (e *Literal) String() string {
	if e.Val.Kind() == value.KindText {
		return "'" + e.Val.Text() + "'"
	}
	return e.Val.String()
}

func (e *BinaryExpr) String() string {
	return e.Left.String() + " " + e.Op.String() + " " + e.Right.String()
}

func (e *UnaryExpr) String() string {
	if e.Op == OpNot {
		return "NOT " + e.Operand.String()
	}
	return "-" + e.Operand.String()
}

func (e *CallExpr) String() string {
	if e.Star {
		return e.Name + "(*)"
	}
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Name + "(" + strings.Join(args, ", ") + ")"
}

// SelectItem is one projection entry. Star marks a bare '*'.
type SelectItem struct {
	Star  bool
	Expr  Expr
	Alias string
}

// OutputName is the column name the item produces.
func (it SelectItem) OutputName() string {
	if it.Alias != "" {
		return it.Alias
	}
	if ref, ok := it.Expr.(*ColumnRef); ok {
		return ref.Name
	}
	return it.Expr.String()
}

// TableRef names a table provider in FROM or JOIN.
type TableRef struct {
	Identifier string // dotted/slashed provider identifier, verbatim
	Alias      string
	At         Pos
}

// Label is the qualifier columns of this table resolve under.
func (t TableRef) Label() string {
	if t.Alias != "" {
		return t.Alias
	}
	// Last dotted segment, so `sqlhild.example.OneToTen` columns read as
	// OneToTen.val.
	if i := strings.LastIndexByte(t.Identifier, '.'); i >= 0 {
		return t.Identifier[i+1:]
	}
	return t.Identifier
}

// JoinKind enumerates supported join types.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
)

func (k JoinKind) String() string {
	switch k {
	case JoinLeft:
		return "LEFT JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	}
	return "INNER JOIN"
}

// JoinClause is one JOIN ... ON entry. The ON predicate is mandatory.
type JoinClause struct {
	Kind  JoinKind
	Table TableRef
	On    Expr
}

// OrderKey is one ORDER BY entry.
type OrderKey struct {
	Expr Expr
	Desc bool
}

// LimitClause carries LIMIT/OFFSET counts. Offset is 0 when absent.
type LimitClause struct {
	Count  int64
	Offset int64
}

// SelectStmt is the root of the AST.
type SelectStmt struct {
	Distinct bool
	Items    []SelectItem
	From     TableRef
	Joins    []JoinClause
	Where    Expr
	GroupBy  []Expr
	OrderBy  []OrderKey
	Limit    *LimitClause
}
