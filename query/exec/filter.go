package exec

import (
	"context"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query/ast"
)

// filterIter pulls from Input until a row satisfies Predicate.
type filterIter struct {
	input     RowIterator
	predicate ast.Expr
	params    map[string]graph.Value
}

func (it *filterIter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		row, ok, err := it.input.Next(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		keep, err := evalPredicate(it.predicate, row, it.params)
		if err != nil {
			return nil, false, err
		}
		if keep {
			return row, true, nil
		}
	}
}

func (it *filterIter) Close() error { return it.input.Close() }
