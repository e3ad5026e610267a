package engine

import (
	"context"
	"io"

	"sqlhild/internal/eval"
	"sqlhild/internal/plan"
	"sqlhild/internal/provider"
	"sqlhild/internal/sql"
	"sqlhild/internal/value"
)

// joinIter runs a nested loop: the inner side is re-executed per outer
// row, which keeps the iterator lazy and honors providers' restartable-scan
// contract. For RIGHT joins the roles swap (the right input drives the
// loop) but the output column order stays left-then-right.
type joinIter struct {
	ctx   context.Context
	node  *plan.Join
	outer provider.RowIter
	inner provider.RowIter

	outerRow   value.Row
	outerMatch bool
	swapped    bool // outer is the right input
	leftWidth  int
	rightWidth int
	closed     bool
}

func newJoinIter(ctx context.Context, n *plan.Join) (provider.RowIter, error) {
	swapped := n.Kind == sql.JoinRight
	driver := n.Left
	if swapped {
		driver = n.Right
	}
	outer, err := Execute(ctx, driver)
	if err != nil {
		return nil, err
	}
	return &joinIter{
		ctx:        ctx,
		node:       n,
		outer:      outer,
		swapped:    swapped,
		leftWidth:  len(n.Left.Schema()),
		rightWidth: len(n.Right.Schema()),
	}, nil
}

func (it *joinIter) Next() (value.Row, error) {
	for {
		if err := it.ctx.Err(); err != nil {
			return nil, err
		}

		if it.inner == nil {
			row, err := it.outer.Next()
			if err != nil {
				return nil, err
			}
			it.outerRow = row
			it.outerMatch = false

			innerNode := it.node.Right
			if it.swapped {
				innerNode = it.node.Left
			}
			inner, err := Execute(it.ctx, innerNode)
			if err != nil {
				return nil, err
			}
			it.inner = inner
		}

		innerRow, err := it.inner.Next()
		if err == io.EOF {
			it.inner.Close()
			it.inner = nil
			if !it.outerMatch && it.padsUnmatched() {
				return it.combine(it.outerRow, nil), nil
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		combined := it.combine(it.outerRow, innerRow)
		ok, err := eval.Accept(it.node.On, combined)
		if err != nil {
			return nil, err
		}
		if ok {
			it.outerMatch = true
			return combined, nil
		}
	}
}

func (it *joinIter) padsUnmatched() bool {
	return it.node.Kind == sql.JoinLeft || it.node.Kind == sql.JoinRight
}

// combine builds the output row in left-then-right column order. A nil
// inner row pads the non-driving side with nulls.
func (it *joinIter) combine(outerRow, innerRow value.Row) value.Row {
	out := make(value.Row, it.leftWidth+it.rightWidth)
	left, right := outerRow, innerRow
	if it.swapped {
		left, right = innerRow, outerRow
	}
	for i := 0; i < it.leftWidth; i++ {
		if left == nil {
			out[i] = value.Null()
		} else {
			out[i] = left[i]
		}
	}
	for i := 0; i < it.rightWidth; i++ {
		if right == nil {
			out[it.leftWidth+i] = value.Null()
		} else {
			out[it.leftWidth+i] = right[i]
		}
	}
	return out
}

func (it *joinIter) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.inner != nil {
		it.inner.Close()
		it.inner = nil
	}
	return it.outer.Close()
}
