package exec

import (
	"context"
	"sort"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query"
	"kotobadb.dev/kotobadb/query/ast"
)

// sortIter accumulates the full input, orders it by Items, then yields
// one row per Next. ORDER BY cannot be lazy over an unsorted stream,
// so this operator (like Group) materializes by necessity.
type sortIter struct {
	input  RowIterator
	items  []ast.OrderByItem
	params map[string]graph.Value

	rows   []Row
	pos    int
	sorted bool
	err    error
}

func (it *sortIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	if !it.sorted {
		for {
			row, ok, err := it.input.Next(ctx)
			if err != nil {
				return nil, false, err
			}
			if !ok {
				break
			}
			it.rows = append(it.rows, row)
		}
		sort.SliceStable(it.rows, func(i, j int) bool {
			return it.less(it.rows[i], it.rows[j])
		})
		it.sorted = true
		if it.err != nil {
			return nil, false, it.err
		}
	}
	if it.pos >= len(it.rows) {
		return nil, false, nil
	}
	row := it.rows[it.pos]
	it.pos++
	return row, true, nil
}

func (it *sortIter) less(a, b Row) bool {
	for _, item := range it.items {
		av, aerr := evalExpr(item.Expr, a, it.params)
		bv, berr := evalExpr(item.Expr, b, it.params)
		if aerr != nil || berr != nil {
			if it.err == nil {
				if aerr != nil {
					it.err = aerr
				} else {
					it.err = berr
				}
			}
			return false
		}
		cmp := compareValues(av, bv)
		if cmp == 0 {
			continue
		}
		if item.Desc {
			return cmp > 0
		}
		return cmp < 0
	}
	return false
}

func compareValues(a, b any) int {
	av, aok := asValue(a)
	bv, bok := asValue(b)
	if !aok || !bok {
		return 0
	}
	if af, aok := asFloat(av); aok {
		if bf, bok := asFloat(bv); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if av.Kind == graph.KindString && bv.Kind == graph.KindString {
		switch {
		case av.Str < bv.Str:
			return -1
		case av.Str > bv.Str:
			return 1
		default:
			return 0
		}
	}
	return 0
}

func (it *sortIter) Close() error { return it.input.Close() }

// groupIter accumulates the full input, partitions it by GroupBy
// (a single implicit partition when GroupBy is empty, e.g. a bare
// `RETURN count(*)`), and evaluates Aggregates once per partition.
type groupIter struct {
	input      RowIterator
	groupBy    []ast.Expr
	aggregates []ast.ReturnItem
	params     map[string]graph.Value

	groups  []Row
	pos     int
	grouped bool
}

func (it *groupIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	if !it.grouped {
		if err := it.run(ctx); err != nil {
			return nil, false, err
		}
		it.grouped = true
	}
	if it.pos >= len(it.groups) {
		return nil, false, nil
	}
	row := it.groups[it.pos]
	it.pos++
	return row, true, nil
}

func (it *groupIter) run(ctx context.Context) error {
	type partition struct {
		key  string
		rows []Row
	}
	order := []string{}
	partitions := map[string]*partition{}

	for {
		row, ok, err := it.input.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key, err := it.groupKey(row)
		if err != nil {
			return err
		}
		p, exists := partitions[key]
		if !exists {
			p = &partition{key: key}
			partitions[key] = p
			order = append(order, key)
		}
		p.rows = append(p.rows, row)
	}

	// With no GROUP BY, an empty input still produces the single
	// implicit partition so aggregates yield their identities
	// (count=0, sum=0) rather than no row at all.
	if len(order) == 0 && len(it.groupBy) == 0 {
		partitions[""] = &partition{}
		order = append(order, "")
	}

	for _, key := range order {
		p := partitions[key]
		out := Row{}
		for _, item := range it.aggregates {
			v, err := it.evalGroupItem(item.Expr, p.rows)
			if err != nil {
				return err
			}
			out[columnName(item)] = v
		}
		it.groups = append(it.groups, out)
	}
	return nil
}

func (it *groupIter) groupKey(row Row) (string, error) {
	key := ""
	for _, expr := range it.groupBy {
		v, err := evalExpr(expr, row, it.params)
		if err != nil {
			return "", err
		}
		val, ok := asValue(v)
		if !ok {
			return "", query.NewTypeMismatchError("GROUP BY expression does not evaluate to a scalar value")
		}
		s, _ := val.IndexableString()
		key += s + "\x1f"
	}
	return key, nil
}

func (it *groupIter) evalGroupItem(expr ast.Expr, rows []Row) (any, error) {
	if call, ok := expr.(*ast.FuncCall); ok {
		if agg, ok := aggregateKind(call.Name); ok {
			return computeAggregate(agg, call, rows, it.params)
		}
	}
	if len(rows) == 0 {
		return graph.Null(), nil
	}
	return evalExpr(expr, rows[0], it.params)
}

func (it *groupIter) Close() error { return it.input.Close() }

func aggregateKind(name string) (string, bool) {
	switch name {
	case "count", "sum", "avg", "min", "max":
		return name, true
	default:
		return "", false
	}
}

func computeAggregate(kind string, call *ast.FuncCall, rows []Row, params map[string]graph.Value) (any, error) {
	if kind == "count" {
		if call.Star {
			return graph.IntValue(int64(len(rows))), nil
		}
		var n int64
		for _, row := range rows {
			v, err := evalExpr(call.Args[0], row, params)
			if err != nil {
				return nil, err
			}
			if val, ok := asValue(v); !ok || val.Kind != graph.KindNull {
				n++
			}
		}
		return graph.IntValue(n), nil
	}

	if len(call.Args) != 1 {
		return nil, query.NewTypeMismatchError("%s() takes exactly one argument", kind)
	}
	var (
		sum      float64
		n        int64
		min, max float64
		haveMin  bool
		allInts  = true
	)
	for _, row := range rows {
		v, err := evalExpr(call.Args[0], row, params)
		if err != nil {
			return nil, err
		}
		val, ok := asValue(v)
		if !ok || val.Kind == graph.KindNull {
			continue
		}
		f, ok := asFloat(val)
		if !ok {
			return nil, query.NewTypeMismatchError("%s() requires numeric operands", kind)
		}
		if val.Kind != graph.KindInt {
			allInts = false
		}
		sum += f
		n++
		if !haveMin || f < min {
			min = f
			haveMin = true
		}
		if f > max || n == 1 {
			max = f
		}
	}
	numeric := func(f float64) graph.Value {
		if allInts {
			return graph.IntValue(int64(f))
		}
		return graph.FloatValue(f)
	}
	switch kind {
	case "sum":
		return numeric(sum), nil
	case "avg":
		if n == 0 {
			return graph.Null(), nil
		}
		return graph.FloatValue(sum / float64(n)), nil
	case "min":
		if n == 0 {
			return graph.Null(), nil
		}
		return numeric(min), nil
	case "max":
		if n == 0 {
			return graph.Null(), nil
		}
		return numeric(max), nil
	default:
		return graph.Null(), nil
	}
}
