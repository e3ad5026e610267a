// Package engine executes logical plans as pull-based row iterators. Every
// operator is lazy unless its semantics force materialization (ORDER BY,
// aggregation); rows flow one at a time, so infinite providers work under
// LIMIT.
package engine

import (
	"context"
	"io"

	"sqlhild/internal/domain"
	"sqlhild/internal/eval"
	"sqlhild/internal/plan"
	"sqlhild/internal/provider"
	"sqlhild/internal/value"
)

// Execute turns a plan node into a row iterator. The caller owns the
// iterator and must Close it; Close propagates to every child.
func Execute(ctx context.Context, n plan.Node) (provider.RowIter, error) {
	switch t := n.(type) {
	case *plan.Scan:
		return t.Handle.Scan(ctx, t.Pushdown)
	case *plan.Filter:
		child, err := Execute(ctx, t.Child)
		if err != nil {
			return nil, err
		}
		return &filterIter{child: child, pred: t.Pred}, nil
	case *plan.Project:
		child, err := Execute(ctx, t.Child)
		if err != nil {
			return nil, err
		}
		return &projectIter{child: child, exprs: t.Exprs}, nil
	case *plan.Join:
		return newJoinIter(ctx, t)
	case *plan.OrderBy:
		child, err := Execute(ctx, t.Child)
		if err != nil {
			return nil, err
		}
		return &orderByIter{child: child, keys: t.Keys}, nil
	case *plan.Limit:
		child, err := Execute(ctx, t.Child)
		if err != nil {
			return nil, err
		}
		return &limitIter{child: child, count: t.Count, offset: t.Offset}, nil
	case *plan.Aggregate:
		child, err := Execute(ctx, t.Child)
		if err != nil {
			return nil, err
		}
		return &aggIter{child: child, node: t}, nil
	case *plan.Distinct:
		child, err := Execute(ctx, t.Child)
		if err != nil {
			return nil, err
		}
		return &distinctIter{child: child, seen: map[string]bool{}}, nil
	}
	return nil, domain.ErrPlan("no executor for plan node %T", n)
}

type filterIter struct {
	child provider.RowIter
	pred  plan.Expr
}

func (it *filterIter) Next() (value.Row, error) {
	for {
		row, err := it.child.Next()
		if err != nil {
			return nil, err
		}
		ok, err := eval.Accept(it.pred, row)
		if err != nil {
			return nil, err
		}
		if ok {
			return row, nil
		}
	}
}

func (it *filterIter) Close() error { return it.child.Close() }

type projectIter struct {
	child provider.RowIter
	exprs []plan.Expr
}

func (it *projectIter) Next() (value.Row, error) {
	row, err := it.child.Next()
	if err != nil {
		return nil, err
	}
	out := make(value.Row, len(it.exprs))
	for i, e := range it.exprs {
		v, err := eval.Eval(e, row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (it *projectIter) Close() error { return it.child.Close() }

type limitIter struct {
	child  provider.RowIter
	count  int64
	offset int64
	given  int64
	done   bool
}

func (it *limitIter) Next() (value.Row, error) {
	if it.done {
		return nil, io.EOF
	}
	for it.offset > 0 {
		if _, err := it.child.Next(); err != nil {
			return nil, err
		}
		it.offset--
	}
	if it.given >= it.count {
		// Release the child now: it may be an infinite sequence.
		it.done = true
		if err := it.child.Close(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	row, err := it.child.Next()
	if err != nil {
		return nil, err
	}
	it.given++
	return row, nil
}

func (it *limitIter) Close() error {
	if it.done {
		return nil
	}
	it.done = true
	return it.child.Close()
}

type distinctIter struct {
	child provider.RowIter
	seen  map[string]bool
}

func (it *distinctIter) Next() (value.Row, error) {
	for {
		row, err := it.child.Next()
		if err != nil {
			return nil, err
		}
		key := encodeRow(row)
		if it.seen[key] {
			continue
		}
		it.seen[key] = true
		return row, nil
	}
}

func (it *distinctIter) Close() error { return it.child.Close() }
