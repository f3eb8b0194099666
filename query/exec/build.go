package exec

import (
	"context"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query"
	"kotobadb.dev/kotobadb/query/planner/physical"
)

// Build compiles a physical plan into its root RowIterator, ready to
// be pulled via Next until exhausted.
func Build(ctx context.Context, op physical.Op, store *graph.Store, params map[string]graph.Value) (RowIterator, error) {
	return build(ctx, op, store, params)
}

func build(ctx context.Context, op physical.Op, store *graph.Store, params map[string]graph.Value) (RowIterator, error) {
	switch n := op.(type) {
	case *physical.NodeScan:
		return newNodeScanIter(ctx, store, n, params)

	case *physical.Filter:
		input, err := build(ctx, n.Input, store, params)
		if err != nil {
			return nil, err
		}
		return &filterIter{input: input, predicate: n.Predicate, params: params}, nil

	case *physical.Expand:
		input, err := build(ctx, n.Input, store, params)
		if err != nil {
			return nil, err
		}
		return &expandIter{input: input, store: store, pattern: n.Pattern, fromVar: n.FromVar, toVar: n.ToVar}, nil

	case *physical.Join:
		left, err := build(ctx, n.Left, store, params)
		if err != nil {
			return nil, err
		}
		switch n.Strategy {
		case physical.StrategyHash:
			return newHashJoinIter(ctx, left, n.Right, store, n.Condition, params)
		default:
			return &nestedLoopJoinIter{left: left, rightOp: n.Right, store: store, condition: n.Condition, params: params}, nil
		}

	case *physical.Project:
		input, err := build(ctx, n.Input, store, params)
		if err != nil {
			return nil, err
		}
		return newProjectIter(input, n.Items, params), nil

	case *physical.Distinct:
		input, err := build(ctx, n.Input, store, params)
		if err != nil {
			return nil, err
		}
		return &distinctIter{input: input, columns: resultColumns(n.Input)}, nil

	case *physical.Sort:
		input, err := build(ctx, n.Input, store, params)
		if err != nil {
			return nil, err
		}
		return &sortIter{input: input, items: n.Items, params: params}, nil

	case *physical.Group:
		input, err := build(ctx, n.Input, store, params)
		if err != nil {
			return nil, err
		}
		return &groupIter{input: input, groupBy: n.GroupBy, aggregates: n.Aggregates, params: params}, nil

	case *physical.Limit:
		input, err := build(ctx, n.Input, store, params)
		if err != nil {
			return nil, err
		}
		return &limitIter{input: input, n: n.N}, nil

	default:
		return nil, query.NewTypeMismatchError("unsupported physical operator %T", op)
	}
}

// resultColumns recovers the declared result column names beneath a
// Distinct node, which always sits directly above a Project or Group
// in the trees Build produces.
func resultColumns(op physical.Op) []string {
	switch n := op.(type) {
	case *physical.Project:
		columns := make([]string, len(n.Items))
		for i, item := range n.Items {
			columns[i] = columnName(item)
		}
		return columns
	case *physical.Group:
		columns := make([]string, len(n.Aggregates))
		for i, item := range n.Aggregates {
			columns[i] = columnName(item)
		}
		return columns
	default:
		return nil
	}
}

// Columns returns the result column names of a physical plan: the
// projection (or aggregation) column list found beneath any trailing
// Limit/Sort/Distinct wrappers.
func Columns(op physical.Op) []string {
	for {
		switch n := op.(type) {
		case *physical.Limit:
			op = n.Input
		case *physical.Sort:
			op = n.Input
		case *physical.Distinct:
			op = n.Input
		case *physical.Project:
			columns := make([]string, len(n.Items))
			for i, item := range n.Items {
				columns[i] = columnName(item)
			}
			return columns
		case *physical.Group:
			columns := make([]string, len(n.Aggregates))
			for i, item := range n.Aggregates {
				columns[i] = columnName(item)
			}
			return columns
		default:
			return nil
		}
	}
}
