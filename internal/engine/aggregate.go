package engine

import (
	"io"
	"strconv"
	"strings"

	"sqlhild/internal/domain"
	"sqlhild/internal/eval"
	"sqlhild/internal/plan"
	"sqlhild/internal/provider"
	"sqlhild/internal/value"
)

// aggIter materializes groups on first Next and then streams the group
// rows in first-seen order. With no GROUP BY keys it emits exactly one
// row, even over empty input.
type aggIter struct {
	child provider.RowIter
	node  *plan.Aggregate

	groups []*group
	pos    int
	loaded bool
}

type group struct {
	keys   []value.Value
	states []aggState
}

func (it *aggIter) Next() (value.Row, error) {
	if !it.loaded {
		if err := it.load(); err != nil {
			return nil, err
		}
	}
	if it.pos >= len(it.groups) {
		return nil, io.EOF
	}
	g := it.groups[it.pos]
	it.pos++

	out := make(value.Row, len(g.keys)+len(g.states))
	copy(out, g.keys)
	for i, st := range g.states {
		out[len(g.keys)+i] = st.result()
	}
	return out, nil
}

func (it *aggIter) load() error {
	it.loaded = true
	defer it.child.Close()

	index := map[string]*group{}
	for {
		row, err := it.child.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		keys := make([]value.Value, len(it.node.GroupBy))
		for i, e := range it.node.GroupBy {
			v, err := eval.Eval(e, row)
			if err != nil {
				return err
			}
			keys[i] = v
		}

		key := encodeValues(keys)
		g, ok := index[key]
		if !ok {
			g = &group{keys: keys, states: newStates(it.node.Aggs)}
			index[key] = g
			it.groups = append(it.groups, g)
		}

		for i, agg := range it.node.Aggs {
			var arg value.Value
			if !agg.Star {
				arg, err = eval.Eval(agg.Arg, row)
				if err != nil {
					return err
				}
			}
			if err := g.states[i].observe(arg); err != nil {
				return err
			}
		}
	}

	if len(it.node.GroupBy) == 0 && len(it.groups) == 0 {
		it.groups = append(it.groups, &group{states: newStates(it.node.Aggs)})
	}
	return nil
}

func (it *aggIter) Close() error {
	if !it.loaded {
		it.loaded = true
		return it.child.Close()
	}
	it.pos = len(it.groups)
	return nil
}

// aggState accumulates one aggregate over one group. COUNT(*) observes
// every row; the others skip nulls.
type aggState interface {
	observe(v value.Value) error
	result() value.Value
}

func newStates(aggs []plan.AggExpr) []aggState {
	states := make([]aggState, len(aggs))
	for i, a := range aggs {
		switch a.Fn {
		case "COUNT":
			states[i] = &countState{star: a.Star}
		case "SUM":
			states[i] = &sumState{allInt: true}
		case "AVG":
			states[i] = &avgState{}
		case "MIN":
			states[i] = &extremeState{min: true}
		case "MAX":
			states[i] = &extremeState{}
		}
	}
	return states
}

type countState struct {
	star bool
	n    int64
}

func (s *countState) observe(v value.Value) error {
	if s.star || !v.IsNull() {
		s.n++
	}
	return nil
}

func (s *countState) result() value.Value { return value.Int(s.n) }

type sumState struct {
	allInt bool
	i      int64
	f      float64
	seen   bool
}

func (s *sumState) observe(v value.Value) error {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindInt:
		s.i += v.Int()
		s.f += float64(v.Int())
	case value.KindFloat:
		s.allInt = false
		s.f += v.Float()
	default:
		return domain.ErrEval("SUM over %s value", v.Kind())
	}
	s.seen = true
	return nil
}

func (s *sumState) result() value.Value {
	if !s.seen {
		return value.Null()
	}
	if s.allInt {
		return value.Int(s.i)
	}
	return value.Float(s.f)
}

type avgState struct {
	sum float64
	n   int64
}

func (s *avgState) observe(v value.Value) error {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindInt:
		s.sum += float64(v.Int())
	case value.KindFloat:
		s.sum += v.Float()
	default:
		return domain.ErrEval("AVG over %s value", v.Kind())
	}
	s.n++
	return nil
}

func (s *avgState) result() value.Value {
	if s.n == 0 {
		return value.Null()
	}
	return value.Float(s.sum / float64(s.n))
}

type extremeState struct {
	min  bool
	best value.Value
	seen bool
}

func (s *extremeState) observe(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if !s.seen {
		s.best, s.seen = v, true
		return nil
	}
	c, err := value.Compare(v, s.best)
	if err != nil {
		return domain.ErrEval("%s", err.Error())
	}
	if s.min && c < 0 || !s.min && c > 0 {
		s.best = v
	}
	return nil
}

func (s *extremeState) result() value.Value {
	if !s.seen {
		return value.Null()
	}
	return s.best
}

// encodeRow builds a collision-free string key for a row, used by DISTINCT
// and by group hashing. Kind and length prefixes keep e.g. int 1 and text
// "1" distinct.
func encodeRow(row value.Row) string { return encodeValues(row) }

func encodeValues(vals []value.Value) string {
	var b strings.Builder
	for _, v := range vals {
		s := v.String()
		b.WriteByte(byte('0' + uint8(v.Kind())))
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	return b.String()
}
