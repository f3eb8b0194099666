// Package exec implements the L6 query executor: a tree of lazy,
// pull-based RowIterator operators walking a physical plan. Only Sort,
// Group, Distinct and HashJoin's build side materialize; everything
// else advances one row per Next.
package exec

import (
	"context"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/query"
)

// RowIterator is the executor's pull-based cursor. Next advances
// exactly one row at a time, so LIMIT and context cancellation can cut
// a query short without draining the rest of the plan.
type RowIterator interface {
	Next(ctx context.Context) (Row, bool, error)
	Close() error
}

// checkDeadline reports a query-kind common.Error once ctx has been
// cancelled or its deadline has passed; every operator's Next calls
// this first.
func checkDeadline(ctx context.Context) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return common.Wrap(common.KindQuery, "exec", query.NewTimeoutError())
	default:
		return common.Wrap(common.KindQuery, "exec", query.NewCancelledError())
	}
}
