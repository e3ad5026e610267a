// Package example registers the built-in demo table providers. Importing
// it (for side effects) makes identifiers under sqlhild.example.* available
// without any module search path.
package example

import (
	"context"

	"sqlhild/internal/provider"
	"sqlhild/internal/value"
)

func init() {
	provider.Register("sqlhild.example.OneToFive", rangeTable(1, 5))
	provider.Register("sqlhild.example.OneToTen", rangeTable(1, 10))
	provider.Register("sqlhild.example.ThreeToSeven", rangeTable(3, 7))
	provider.Register("sqlhild.example.TwoToTwentyInTwos", stepTable(2, 20, 2))
	provider.Register("sqlhild.example.Pairs", pairsTable)
	provider.Register("sqlhild.example.Letters", lettersTable)
	provider.Register("sqlhild.example.Count", func() (provider.Provider, error) {
		return counter{}, nil
	})
}

func intSchema(names ...string) value.Schema {
	s := make(value.Schema, len(names))
	for i, n := range names {
		s[i] = value.Column{Name: n, Kind: value.KindInt}
	}
	return s
}

// rangeTable yields rows lo..hi inclusive with schema [value: integer].
func rangeTable(lo, hi int64) provider.Factory {
	return stepTable(lo, hi, 1)
}

func stepTable(lo, hi, step int64) provider.Factory {
	return func() (provider.Provider, error) {
		var rows []value.Row
		for i := lo; i <= hi; i += step {
			rows = append(rows, value.Row{value.Int(i)})
		}
		return provider.NewStatic(intSchema("value"), rows), nil
	}
}

// pairsTable is (id, value) with value = id * 2 for id 1..9.
func pairsTable() (provider.Provider, error) {
	var rows []value.Row
	for i := int64(1); i < 10; i++ {
		rows = append(rows, value.Row{value.Int(i), value.Int(i * 2)})
	}
	return provider.NewStatic(intSchema("id", "value"), rows), nil
}

// lettersTable contains duplicates, for DISTINCT demos.
func lettersTable() (provider.Provider, error) {
	schema := value.Schema{{Name: "value", Kind: value.KindText}}
	var rows []value.Row
	for _, s := range []string{"A", "A", "B", "C", "D"} {
		rows = append(rows, value.Row{value.Text(s)})
	}
	return provider.NewStatic(schema, rows), nil
}

// counter is an infinite provider: value 1, 2, 3, ... forever. Useful for
// exercising LIMIT short-circuiting; a full scan never terminates.
type counter struct{}

func (counter) Schema() (value.Schema, error) {
	return intSchema("value"), nil
}

func (counter) Scan(ctx context.Context, _ provider.Pushdown) (provider.RowIter, error) {
	n := int64(0)
	return provider.IterFunc(func() (value.Row, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n++
		return value.Row{value.Int(n)}, nil
	}), nil
}

// Instrumented wraps a Static provider and counts instantiations and scans.
// Registered on demand by tests that need to observe session caching.
type Instrumented struct {
	*provider.Static
	Scans int
}

// NewInstrumented builds an Instrumented provider over fixed rows.
func NewInstrumented(schema value.Schema, rows []value.Row) *Instrumented {
	return &Instrumented{Static: provider.NewStatic(schema, rows)}
}

func (p *Instrumented) Scan(ctx context.Context, pd provider.Pushdown) (provider.RowIter, error) {
	p.Scans++
	return p.Static.Scan(ctx, pd)
}
