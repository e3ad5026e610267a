package plan

import (
	"sqlhild/internal/domain"
	"sqlhild/internal/provider"
	"sqlhild/internal/sql"
	"sqlhild/internal/value"
)

// Build lowers a parsed SELECT into a logical plan, resolving every FROM
// target through the session and computing output schemas bottom-up.
func Build(stmt *sql.SelectStmt, sess *provider.Session) (Node, error) {
	scan, err := buildScan(stmt.From, sess)
	if err != nil {
		return nil, err
	}
	var node Node = scan
	labels := map[string]bool{scan.Label: true}

	for _, j := range stmt.Joins {
		right, err := buildScan(j.Table, sess)
		if err != nil {
			return nil, err
		}
		if labels[right.Label] {
			return nil, domain.ErrPlan("duplicate table name or alias %q", right.Label)
		}
		labels[right.Label] = true

		combined := make(value.Schema, 0, len(node.Schema())+len(right.Out))
		combined = append(combined, node.Schema()...)
		combined = append(combined, right.Out...)

		b := binder{schema: combined}
		on, err := b.bind(j.On)
		if err != nil {
			return nil, err
		}
		if !boolish(on.Kind()) {
			return nil, domain.ErrPlan("JOIN ON predicate must be boolean, not %s", on.Kind())
		}
		node = &Join{Left: node, Right: right, Kind: j.Kind, On: on, Out: combined}
	}

	if stmt.Where != nil {
		b := binder{schema: node.Schema()}
		pred, err := b.bind(stmt.Where)
		if err != nil {
			return nil, err
		}
		if !boolish(pred.Kind()) {
			return nil, domain.ErrPlan("WHERE predicate must be boolean, not %s", pred.Kind())
		}
		if s, ok := node.(*Scan); ok {
			s.Pushdown = extractPushdown(pred, s.Out)
		}
		node = &Filter{Child: node, Pred: pred}
	}

	node, projExprs, out, err := buildProjection(node, stmt)
	if err != nil {
		return nil, err
	}
	node = &Project{Child: node, Exprs: projExprs, Out: out}

	if stmt.Distinct {
		node = &Distinct{Child: node}
	}

	if len(stmt.OrderBy) > 0 {
		keys, err := bindOrderKeys(stmt.OrderBy, node.Schema())
		if err != nil {
			return nil, err
		}
		node = &OrderBy{Child: node, Keys: keys}
	}

	if stmt.Limit != nil {
		node = &Limit{Child: node, Count: stmt.Limit.Count, Offset: stmt.Limit.Offset}
	}

	return node, nil
}

func buildScan(ref sql.TableRef, sess *provider.Session) (*Scan, error) {
	h, err := sess.Resolve(ref.Identifier)
	if err != nil {
		return nil, err
	}
	label := ref.Label()
	return &Scan{
		Identifier: ref.Identifier,
		Label:      label,
		Handle:     h,
		Out:        h.Schema().Qualify(label),
	}, nil
}

// buildProjection plans the SELECT list, inserting an Aggregate node when
// the statement groups or any item contains an aggregate call.
func buildProjection(child Node, stmt *sql.SelectStmt) (Node, []Expr, value.Schema, error) {
	hasAgg := len(stmt.GroupBy) > 0
	for _, item := range stmt.Items {
		if !item.Star && containsAggregate(item.Expr) {
			hasAgg = true
		}
	}

	if hasAgg {
		return buildAggregateProjection(child, stmt)
	}

	b := binder{schema: child.Schema()}
	var exprs []Expr
	var out value.Schema
	for _, item := range stmt.Items {
		if item.Star {
			for i, col := range child.Schema() {
				exprs = append(exprs, &ColumnIdx{Index: i, Name: col.QualifiedName(), ColKind: col.Kind})
				out = append(out, col)
			}
			continue
		}
		e, err := b.bind(item.Expr)
		if err != nil {
			return nil, nil, nil, err
		}
		exprs = append(exprs, e)
		out = append(out, value.Column{Name: item.OutputName(), Kind: e.Kind()})
	}
	return child, exprs, out, nil
}

func buildAggregateProjection(child Node, stmt *sql.SelectStmt) (Node, []Expr, value.Schema, error) {
	b := binder{schema: child.Schema()}

	agg := &Aggregate{Child: child}
	groupPos := map[string]int{} // sql expr text -> position in aggregate output
	for _, g := range stmt.GroupBy {
		bound, err := b.bind(g)
		if err != nil {
			return nil, nil, nil, err
		}
		col := value.Column{Name: g.String(), Kind: bound.Kind()}
		if _, ok := g.(*sql.ColumnRef); ok {
			// Keep the child column's qualifier so qualified references
			// still resolve against the aggregate output.
			col = child.Schema()[bound.(*ColumnIdx).Index]
		}
		groupPos[g.String()] = len(agg.GroupBy)
		agg.GroupBy = append(agg.GroupBy, bound)
		agg.Out = append(agg.Out, col)
	}

	// Collect the distinct aggregate calls across the SELECT list.
	aggPos := map[string]int{} // call text -> position in aggregate output
	for _, item := range stmt.Items {
		if item.Star {
			return nil, nil, nil, domain.ErrPlan("SELECT * cannot be combined with aggregate functions")
		}
		calls, err := collectAggregates(item.Expr)
		if err != nil {
			return nil, nil, nil, err
		}
		for _, call := range calls {
			name := call.String()
			if _, ok := aggPos[name]; ok {
				continue
			}
			ae, err := bindAggregate(&b, call)
			if err != nil {
				return nil, nil, nil, err
			}
			aggPos[name] = len(agg.GroupBy) + len(agg.Aggs)
			agg.Aggs = append(agg.Aggs, ae)
			agg.Out = append(agg.Out, value.Column{Name: ae.Name, Kind: ae.ResultKind})
		}
	}

	ab := aggBinder{out: agg.Out, groupPos: groupPos, aggPos: aggPos}
	var exprs []Expr
	var out value.Schema
	for _, item := range stmt.Items {
		e, err := ab.bind(item.Expr)
		if err != nil {
			return nil, nil, nil, err
		}
		exprs = append(exprs, e)
		out = append(out, value.Column{Name: item.OutputName(), Kind: e.Kind()})
	}
	return agg, exprs, out, nil
}

func bindAggregate(b *binder, call *sql.CallExpr) (AggExpr, error) {
	ae := AggExpr{Fn: call.Name, Star: call.Star, Name: call.String()}
	if call.Star {
		if call.Name != "COUNT" {
			return AggExpr{}, domain.ErrPlan("%s(*) is not a valid aggregate", call.Name)
		}
		ae.ResultKind = value.KindInt
		return ae, nil
	}
	if len(call.Args) != 1 {
		return AggExpr{}, domain.ErrPlan("aggregate %s takes exactly one argument", call.Name)
	}
	arg, err := b.bind(call.Args[0])
	if err != nil {
		return AggExpr{}, err
	}
	if call.Name == "SUM" || call.Name == "AVG" {
		switch arg.Kind() {
		case value.KindInt, value.KindFloat, value.KindNull, value.KindOpaque:
		default:
			return AggExpr{}, domain.ErrPlan("%s is not defined for %s arguments", call.Name, arg.Kind())
		}
	}
	ae.Arg = arg
	ae.ResultKind = aggregateResultKind(call.Name, arg.Kind())
	return ae, nil
}

// collectAggregates gathers aggregate calls in a SELECT item, rejecting
// nested aggregation.
func collectAggregates(e sql.Expr) ([]*sql.CallExpr, error) {
	var out []*sql.CallExpr
	var walk func(e sql.Expr, inAgg bool) error
	walk = func(e sql.Expr, inAgg bool) error {
		switch t := e.(type) {
		case *sql.BinaryExpr:
			if err := walk(t.Left, inAgg); err != nil {
				return err
			}
			return walk(t.Right, inAgg)
		case *sql.UnaryExpr:
			return walk(t.Operand, inAgg)
		case *sql.CallExpr:
			if IsAggregateName(t.Name) {
				if inAgg {
					return domain.ErrPlan("aggregate calls cannot be nested")
				}
				out = append(out, t)
				inAgg = true
			}
			for _, arg := range t.Args {
				if err := walk(arg, inAgg); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(e, false); err != nil {
		return nil, err
	}
	return out, nil
}

func containsAggregate(e sql.Expr) bool {
	switch t := e.(type) {
	case *sql.BinaryExpr:
		return containsAggregate(t.Left) || containsAggregate(t.Right)
	case *sql.UnaryExpr:
		return containsAggregate(t.Operand)
	case *sql.CallExpr:
		if IsAggregateName(t.Name) {
			return true
		}
		for _, arg := range t.Args {
			if containsAggregate(arg) {
				return true
			}
		}
	}
	return false
}

// aggBinder resolves SELECT items over an Aggregate node's output: group
// expressions and aggregate calls map to output positions; any other
// column reference is invalid mixing.
type aggBinder struct {
	out      value.Schema
	groupPos map[string]int
	aggPos   map[string]int
}

func (ab *aggBinder) bind(e sql.Expr) (Expr, error) {
	if pos, ok := ab.groupPos[e.String()]; ok {
		col := ab.out[pos]
		return &ColumnIdx{Index: pos, Name: col.QualifiedName(), ColKind: col.Kind}, nil
	}

	switch t := e.(type) {
	case *sql.Literal:
		return &Literal{Val: t.Val}, nil
	case *sql.ColumnRef:
		matches := ab.out.Lookup(t.Table, t.Name)
		if len(matches) == 1 {
			col := ab.out[matches[0]]
			return &ColumnIdx{Index: matches[0], Name: col.QualifiedName(), ColKind: col.Kind}, nil
		}
		return nil, domain.ErrPlan("column %q must appear in the GROUP BY clause or be used in an aggregate function", t.String())
	case *sql.CallExpr:
		if IsAggregateName(t.Name) {
			pos, ok := ab.aggPos[t.String()]
			if !ok {
				return nil, domain.ErrPlan("aggregate %s is not available here", t.String())
			}
			col := ab.out[pos]
			return &ColumnIdx{Index: pos, Name: col.Name, ColKind: col.Kind}, nil
		}
		args := make([]Expr, len(t.Args))
		for i, a := range t.Args {
			bound, err := ab.bind(a)
			if err != nil {
				return nil, err
			}
			args[i] = bound
		}
		return typeCall(t.Name, args)
	case *sql.BinaryExpr:
		left, err := ab.bind(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := ab.bind(t.Right)
		if err != nil {
			return nil, err
		}
		return typeBinary(t.Op, left, right)
	case *sql.UnaryExpr:
		operand, err := ab.bind(t.Operand)
		if err != nil {
			return nil, err
		}
		return typeUnary(t.Op, operand)
	}
	return nil, domain.ErrPlan("unsupported expression %q in aggregate query", e.String())
}

func bindOrderKeys(keys []sql.OrderKey, schema value.Schema) ([]SortKey, error) {
	b := binder{schema: schema}
	var out []SortKey
	for _, k := range keys {
		// ORDER BY resolves against the output columns, so aliases and
		// aggregate results are addressable by name.
		var bound Expr
		if byName := matchOutputColumn(k.Expr, schema); byName != nil {
			bound = byName
		} else {
			e, err := b.bind(k.Expr)
			if err != nil {
				return nil, err
			}
			bound = e
		}
		out = append(out, SortKey{Expr: bound, Desc: k.Desc})
	}
	return out, nil
}

// matchOutputColumn matches a non-column ORDER BY expression (an alias is
// already a ColumnRef; think ORDER BY COUNT(*)) textually against output
// column names.
func matchOutputColumn(e sql.Expr, schema value.Schema) Expr {
	if _, ok := e.(*sql.ColumnRef); ok {
		return nil
	}
	text := e.String()
	for i, col := range schema {
		if col.Name == text {
			return &ColumnIdx{Index: i, Name: col.Name, ColKind: col.Kind}
		}
	}
	return nil
}

// extractPushdown pulls `column op literal` conjuncts out of a bound
// predicate over the scan's own schema.
func extractPushdown(pred Expr, schema value.Schema) provider.Pushdown {
	var pd provider.Pushdown
	var walk func(e Expr)
	walk = func(e Expr) {
		bin, ok := e.(*Binary)
		if !ok {
			return
		}
		if bin.Op == sql.OpAnd {
			walk(bin.Left)
			walk(bin.Right)
			return
		}
		if !bin.Op.IsComparison() {
			return
		}
		if f, ok := simpleFilter(bin.Left, bin.Op, bin.Right, schema, false); ok {
			pd = append(pd, f)
		} else if f, ok := simpleFilter(bin.Right, bin.Op, bin.Left, schema, true); ok {
			pd = append(pd, f)
		}
	}
	walk(pred)
	return pd
}

func simpleFilter(col Expr, op sql.BinaryOp, lit Expr, schema value.Schema, flipped bool) (provider.ColumnFilter, bool) {
	ref, ok := col.(*ColumnIdx)
	if !ok {
		return provider.ColumnFilter{}, false
	}
	l, ok := lit.(*Literal)
	if !ok || l.Val.IsNull() {
		return provider.ColumnFilter{}, false
	}
	pop, ok := pushdownOp(op, flipped)
	if !ok {
		return provider.ColumnFilter{}, false
	}
	return provider.ColumnFilter{Column: schema[ref.Index].Name, Op: pop, Value: l.Val}, true
}

func pushdownOp(op sql.BinaryOp, flipped bool) (provider.CompareOp, bool) {
	switch op {
	case sql.OpEq:
		return provider.OpEq, true
	case sql.OpNe:
		return provider.OpNe, true
	case sql.OpLt:
		if flipped {
			return provider.OpGt, true
		}
		return provider.OpLt, true
	case sql.OpLe:
		if flipped {
			return provider.OpGe, true
		}
		return provider.OpLe, true
	case sql.OpGt:
		if flipped {
			return provider.OpLt, true
		}
		return provider.OpGt, true
	case sql.OpGe:
		if flipped {
			return provider.OpLe, true
		}
		return provider.OpGe, true
	}
	return "", false
}

func boolish(k value.Kind) bool {
	return k == value.KindBool || k == value.KindNull || k == value.KindOpaque
}
