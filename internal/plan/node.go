// Package plan lowers the AST into a tree of logical plan nodes. Every
// node's output schema is computed bottom-up at build time: unknown-column
// and type-mismatch errors surface here, before any row is produced.
package plan

import (
	"sqlhild/internal/provider"
	"sqlhild/internal/sql"
	"sqlhild/internal/value"
)

// Node is one logical plan operator.
type Node interface {
	Schema() value.Schema
}

// Scan produces the rows of one resolved provider. Pushdown carries the
// simple conjuncts extracted from an enclosing Filter; the provider may
// ignore them.
type Scan struct {
	Identifier string
	Label      string // alias or last identifier segment; qualifies columns
	Handle     *provider.Handle
	Pushdown   provider.Pushdown
	Out        value.Schema
}

func (n *Scan) Schema() value.Schema { return n.Out }

// Filter keeps rows whose predicate evaluates to true. Null and false both
// exclude the row (three-valued logic).
type Filter struct {
	Child Node
	Pred  Expr
}

func (n *Filter) Schema() value.Schema { return n.Child.Schema() }

// Project evaluates one expression per output column.
type Project struct {
	Child Node
	Exprs []Expr
	Out   value.Schema
}

func (n *Project) Schema() value.Schema { return n.Out }

// Join combines two children under an ON predicate. Executed as a nested
// loop; the inner side is re-scanned per outer row.
type Join struct {
	Left  Node
	Right Node
	Kind  sql.JoinKind
	On    Expr
	Out   value.Schema
}

func (n *Join) Schema() value.Schema { return n.Out }

// SortKey is one ORDER BY key over the child's output schema.
type SortKey struct {
	Expr Expr
	Desc bool
}

// OrderBy sorts its input. Requires full materialization.
type OrderBy struct {
	Child Node
	Keys  []SortKey
}

func (n *OrderBy) Schema() value.Schema { return n.Child.Schema() }

// Limit stops pulling from its child once Count rows have been delivered,
// after skipping Offset rows. Must short-circuit: the child sequence may
// be infinite.
type Limit struct {
	Child  Node
	Count  int64
	Offset int64
}

func (n *Limit) Schema() value.Schema { return n.Child.Schema() }

// AggExpr is one aggregate computation within an Aggregate node.
type AggExpr struct {
	Fn         string // COUNT, SUM, AVG, MIN, MAX
	Arg        Expr   // nil for COUNT(*)
	Star       bool
	Name       string // display name, e.g. COUNT(*)
	ResultKind value.Kind
}

// Aggregate groups its input by the GroupBy expressions and computes the
// aggregates per group. Output schema: group columns, then aggregate
// columns. Requires full materialization. With no group keys it emits
// exactly one row, even over empty input.
type Aggregate struct {
	Child   Node
	GroupBy []Expr
	Aggs    []AggExpr
	Out     value.Schema
}

func (n *Aggregate) Schema() value.Schema { return n.Out }

// Distinct drops duplicate rows, streaming against a seen-set.
type Distinct struct {
	Child Node
}

func (n *Distinct) Schema() value.Schema { return n.Child.Schema() }
