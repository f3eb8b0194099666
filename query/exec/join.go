package exec

import (
	"context"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query"
	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/query/planner/physical"
)

// nestedLoopJoinIter rebuilds a fresh iterator over rightOp for every
// left row, since a RowIterator is single-pass; this trades repeated
// scan cost for not needing either side fully materialized; only
// HashJoin's build side buffers.
type nestedLoopJoinIter struct {
	left      RowIterator
	rightOp   physical.Op
	store     *graph.Store
	condition ast.Expr
	params    map[string]graph.Value

	leftRow Row
	right   RowIterator
}

func (it *nestedLoopJoinIter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		if it.right == nil {
			row, ok, err := it.left.Next(ctx)
			if err != nil || !ok {
				return nil, false, err
			}
			it.leftRow = row
			right, err := build(ctx, it.rightOp, it.store, it.params)
			if err != nil {
				return nil, false, err
			}
			it.right = right
		}

		rrow, ok, err := it.right.Next(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			it.right.Close()
			it.right = nil
			continue
		}
		merged := mergeRows(it.leftRow, rrow)
		if it.condition == nil {
			return merged, true, nil
		}
		keep, err := evalPredicate(it.condition, merged, it.params)
		if err != nil {
			return nil, false, err
		}
		if keep {
			return merged, true, nil
		}
	}
}

func (it *nestedLoopJoinIter) Close() error {
	if it.right != nil {
		it.right.Close()
	}
	return it.left.Close()
}

// hashJoinIter eagerly materializes the right side into a hash table
// keyed by the join condition's right-hand expression, then lazily
// probes it one left row at a time.
type hashJoinIter struct {
	left       RowIterator
	buckets    map[string][]Row
	leftExpr   ast.Expr
	condition  ast.Expr
	params     map[string]graph.Value

	leftRow Row
	matches []Row
	pos     int
}

func newHashJoinIter(ctx context.Context, left RowIterator, rightOp physical.Op, store *graph.Store, condition ast.Expr, params map[string]graph.Value) (*hashJoinIter, error) {
	right, err := build(ctx, rightOp, store, params)
	if err != nil {
		return nil, err
	}
	defer right.Close()

	leftExpr, rightExpr, ok := splitEqualityCondition(condition)
	if !ok {
		return nil, query.NewTypeMismatchError("hash join requires an equality condition")
	}

	buckets := map[string][]Row{}
	for {
		row, ok, err := right.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		key, err := rowKey(rightExpr, row, params)
		if err != nil {
			return nil, err
		}
		buckets[key] = append(buckets[key], row)
	}
	return &hashJoinIter{left: left, buckets: buckets, leftExpr: leftExpr, condition: condition, params: params}, nil
}

func (it *hashJoinIter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		if it.pos < len(it.matches) {
			rrow := it.matches[it.pos]
			it.pos++
			merged := mergeRows(it.leftRow, rrow)
			keep, err := evalPredicate(it.condition, merged, it.params)
			if err != nil {
				return nil, false, err
			}
			if keep {
				return merged, true, nil
			}
			continue
		}

		row, ok, err := it.left.Next(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		key, err := rowKey(it.leftExpr, row, it.params)
		if err != nil {
			return nil, false, err
		}
		it.leftRow = row
		it.matches = it.buckets[key]
		it.pos = 0
	}
}

func (it *hashJoinIter) Close() error { return it.left.Close() }

func mergeRows(a, b Row) Row {
	out := a.clone()
	for k, v := range b {
		out[k] = v
	}
	return out
}

// splitEqualityCondition reports a top-level `a = b` condition's two
// sides in written order. The hash join evaluates the left side against
// left-input rows and the right side against right-input rows; it does
// not try the swapped assignment.
func splitEqualityCondition(condition ast.Expr) (left, right ast.Expr, ok bool) {
	bin, ok := condition.(*ast.BinaryExpr)
	if !ok || bin.Op != ast.OpEq {
		return nil, nil, false
	}
	return bin.Left, bin.Right, true
}

func rowKey(expr ast.Expr, row Row, params map[string]graph.Value) (string, error) {
	v, err := evalExpr(expr, row, params)
	if err != nil {
		return "", err
	}
	val, ok := asValue(v)
	if !ok {
		return "", query.NewTypeMismatchError("join key does not evaluate to a scalar value")
	}
	s, _ := val.IndexableString()
	return s, nil
}
