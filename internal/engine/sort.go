package engine

import (
	"io"
	"sort"

	"sqlhild/internal/eval"
	"sqlhild/internal/plan"
	"sqlhild/internal/provider"
	"sqlhild/internal/value"
)

// orderByIter materializes its input on first Next, sorts once, then
// serves from memory. Nulls order first ascending (last descending); key
// comparison errors surface on the Next that triggered the sort.
type orderByIter struct {
	child provider.RowIter
	keys  []plan.SortKey

	sorted []value.Row
	pos    int
	loaded bool
}

func (it *orderByIter) Next() (value.Row, error) {
	if !it.loaded {
		if err := it.load(); err != nil {
			return nil, err
		}
	}
	if it.pos >= len(it.sorted) {
		return nil, io.EOF
	}
	row := it.sorted[it.pos]
	it.pos++
	return row, nil
}

func (it *orderByIter) load() error {
	it.loaded = true
	defer it.child.Close()

	type keyed struct {
		row  value.Row
		keys []value.Value
	}
	var rows []keyed
	for {
		row, err := it.child.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		k := keyed{row: row.Clone(), keys: make([]value.Value, len(it.keys))}
		for i, sk := range it.keys {
			v, err := eval.Eval(sk.Expr, k.row)
			if err != nil {
				return err
			}
			k.keys[i] = v
		}
		rows = append(rows, k)
	}

	var sortErr error
	sort.SliceStable(rows, func(a, b int) bool {
		for i, sk := range it.keys {
			c, err := compareKeys(rows[a].keys[i], rows[b].keys[i])
			if err != nil && sortErr == nil {
				sortErr = err
			}
			if c == 0 {
				continue
			}
			if sk.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	if sortErr != nil {
		return sortErr
	}

	it.sorted = make([]value.Row, len(rows))
	for i, k := range rows {
		it.sorted[i] = k.row
	}
	return nil
}

// compareKeys totals the value order with nulls smallest.
func compareKeys(a, b value.Value) (int, error) {
	switch {
	case a.IsNull() && b.IsNull():
		return 0, nil
	case a.IsNull():
		return -1, nil
	case b.IsNull():
		return 1, nil
	}
	return value.Compare(a, b)
}

func (it *orderByIter) Close() error {
	if !it.loaded {
		it.loaded = true
		return it.child.Close()
	}
	it.pos = len(it.sorted)
	return nil
}
