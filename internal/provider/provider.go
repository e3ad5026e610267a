// Package provider defines the table-provider contract: the capability every
// data source must satisfy to appear in a FROM clause. A provider exposes a
// schema and a lazy, possibly-infinite, restartable-per-invocation sequence
// of rows. Loading a provider from disk is the loader's job; this package
// only cares that the loaded unit satisfies the contract.
package provider

import (
	"context"
	"io"

	"sqlhild/internal/value"
)

// RowIter is a pull-based row sequence. Next returns io.EOF when the
// sequence is exhausted. Close releases any resources the provider holds
// and must be safe to call at any point, including mid-iteration: the
// engine abandons sequences early under LIMIT and on cancellation.
type RowIter interface {
	Next() (value.Row, error)
	Close() error
}

// CompareOp is a pushdown comparison operator.
type CompareOp string

const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// ColumnFilter is one `column op literal` condition offered to a provider.
type ColumnFilter struct {
	Column string
	Op     CompareOp
	Value  value.Value
}

// Pushdown is a conjunction of simple filters extracted from the enclosing
// WHERE clause. It is purely an optimization hint: a provider may ignore it
// entirely, and the engine re-applies the full predicate regardless.
type Pushdown []ColumnFilter

// Matches reports whether a row satisfies every filter in the conjunction.
// Providers that choose to honor the pushdown can call this per row. A
// filter on a column missing from the schema or an incomparable value pair
// counts as a match, keeping pushdown correctness-neutral.
func (pd Pushdown) Matches(schema value.Schema, row value.Row) bool {
	for _, f := range pd {
		idx := schema.Lookup("", f.Column)
		if len(idx) != 1 || idx[0] >= len(row) {
			continue
		}
		v := row[idx[0]]
		if v.IsNull() || f.Value.IsNull() {
			return false
		}
		cmp, err := value.Compare(v, f.Value)
		if err != nil {
			continue
		}
		ok := false
		switch f.Op {
		case OpEq:
			ok = cmp == 0
		case OpNe:
			ok = cmp != 0
		case OpLt:
			ok = cmp < 0
		case OpLe:
			ok = cmp <= 0
		case OpGt:
			ok = cmp > 0
		case OpGe:
			ok = cmp >= 0
		}
		if !ok {
			return false
		}
	}
	return true
}

// Provider is the table-provider contract. Schema is called once before
// planning completes; Scan may be called multiple times and each call must
// yield an independent sequence. Providers need not support concurrent
// overlapping scans on the same instance: a session runs one query at a
// time.
type Provider interface {
	Schema() (value.Schema, error)
	Scan(ctx context.Context, pd Pushdown) (RowIter, error)
}

// Static is an in-memory provider over a fixed row slice. It ignores the
// pushdown, which the contract permits.
type Static struct {
	schema value.Schema
	rows   []value.Row
}

// NewStatic builds a Static provider.
func NewStatic(schema value.Schema, rows []value.Row) *Static {
	return &Static{schema: schema, rows: rows}
}

func (s *Static) Schema() (value.Schema, error) { return s.schema, nil }

func (s *Static) Scan(ctx context.Context, _ Pushdown) (RowIter, error) {
	return &sliceIter{ctx: ctx, rows: s.rows}, nil
}

type sliceIter struct {
	ctx  context.Context
	rows []value.Row
	pos  int
}

func (it *sliceIter) Next() (value.Row, error) {
	if err := it.ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.rows) {
		return nil, io.EOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *sliceIter) Close() error { return nil }

// IterFunc adapts a pull function to RowIter for providers with no
// per-iterator state to release.
type IterFunc func() (value.Row, error)

func (f IterFunc) Next() (value.Row, error) { return f() }
func (f IterFunc) Close() error             { return nil }
