package physical

import (
	"context"
	"fmt"

	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/query/planner/logical"
)

// maxDPJoinInputs bounds the join inputs the DP search explores
// exhaustively; above this count planning falls back to the
// ascending-cardinality greedy order.
const maxDPJoinInputs = 6

// hashJoinMemoryBudgetRows is the row-count threshold above which a
// join's build side is considered too large to hash in memory, so
// NestedLoopJoin is chosen instead. The planner always uses this fixed
// row count; the `query.hash_join_memory_budget` config value (a byte
// count) is validated at load time but not passed to the planner.
const hashJoinMemoryBudgetRows = 50_000

// joinInput is one leaf (or already-planned subtree) awaiting
// placement in a join order, carrying its estimated row count.
type joinInput struct {
	op          Op
	cardinality int64
}

// Plan converts a logical operator tree into a physical one: scan
// strategy selection (NodeScan vs. IndexScan), join strategy selection
// (NestedLoopJoin vs. HashJoin) and ordering, all driven by catalog
// statistics.
func Plan(ctx context.Context, op logical.Op, catalog Catalog) (Op, error) {
	switch n := op.(type) {
	case *logical.NodeScan:
		return planScan(ctx, n, catalog)

	case *logical.Filter:
		input, err := Plan(ctx, n.Input, catalog)
		if err != nil {
			return nil, err
		}
		// Fold an equality filter directly above a full scan on an
		// indexed property into an IndexScan, eliminating the filter.
		if scan, ok := input.(*NodeScan); ok && scan.Strategy == ScanFull {
			if prop, value, ok := equalityOnVariable(n.Predicate, scan.Variable); ok {
				if has, _ := catalog.HasIndex(ctx, labelOf(scan.Labels), prop); has {
					scan.Strategy = ScanIndex
					scan.IndexProperty = prop
					scan.IndexValue = value
					return scan, nil
				}
			}
		}
		return &Filter{Input: input, Predicate: n.Predicate}, nil

	case *logical.Expand:
		input, err := Plan(ctx, n.Input, catalog)
		if err != nil {
			return nil, err
		}
		return &Expand{Input: input, Pattern: n.Pattern, FromVar: n.FromVar, ToVar: n.ToVar}, nil

	case *logical.Join:
		return planJoinChain(ctx, n, catalog)

	case *logical.Project:
		input, err := Plan(ctx, n.Input, catalog)
		if err != nil {
			return nil, err
		}
		return &Project{Input: input, Items: n.Items}, nil

	case *logical.Distinct:
		input, err := Plan(ctx, n.Input, catalog)
		if err != nil {
			return nil, err
		}
		return &Distinct{Input: input}, nil

	case *logical.Sort:
		input, err := Plan(ctx, n.Input, catalog)
		if err != nil {
			return nil, err
		}
		return &Sort{Input: input, Items: n.Items}, nil

	case *logical.Group:
		input, err := Plan(ctx, n.Input, catalog)
		if err != nil {
			return nil, err
		}
		return &Group{Input: input, GroupBy: n.GroupBy, Aggregates: n.Aggregates}, nil

	case *logical.Limit:
		input, err := Plan(ctx, n.Input, catalog)
		if err != nil {
			return nil, err
		}
		return &Limit{Input: input, N: n.N}, nil

	default:
		return nil, fmt.Errorf("physical: unsupported logical operator %T", n)
	}
}

func planScan(ctx context.Context, n *logical.NodeScan, catalog Catalog) (Op, error) {
	card, err := catalog.LabelCardinality(ctx, labelOf(n.Labels))
	if err != nil {
		return nil, err
	}
	return &NodeScan{
		Variable:    n.Variable,
		Labels:      n.Labels,
		Strategy:    ScanFull,
		NeededVars:  n.NeededVars,
		cardinality: card,
	}, nil
}

// planJoinChain flattens a left-deep chain of logical.Join nodes into
// its leaf inputs, estimates each leaf's cardinality, orders them
// (DP when the input count is small enough to explore exhaustively,
// ascending-cardinality greedy otherwise), and rebuilds a left-deep
// physical join tree choosing NestedLoopJoin or HashJoin per step by
// comparing the build (right) side's estimated cardinality against
// hashJoinMemoryBudgetRows.
func planJoinChain(ctx context.Context, root *logical.Join, catalog Catalog) (Op, error) {
	leaves, conditions, err := flattenJoins(ctx, root, catalog)
	if err != nil {
		return nil, err
	}

	if len(leaves) > maxDPJoinInputs {
		sortByCardinality(leaves)
	} else {
		leaves = bestOrderDP(leaves)
	}

	acc := leaves[0]
	for i := 1; i < len(leaves); i++ {
		right := leaves[i]
		strategy := StrategyHash
		if right.cardinality > hashJoinMemoryBudgetRows {
			strategy = StrategyNestedLoop
		}
		var cond ast.Expr
		if i-1 < len(conditions) {
			cond = conditions[i-1]
		}
		acc = joinInput{
			op:          &Join{Left: acc.op, Right: right.op, Condition: cond, Strategy: strategy},
			cardinality: acc.cardinality * right.cardinality,
		}
	}
	return acc.op, nil
}

func flattenJoins(ctx context.Context, op logical.Op, catalog Catalog) ([]joinInput, []ast.Expr, error) {
	join, ok := op.(*logical.Join)
	if !ok {
		planned, err := Plan(ctx, op, catalog)
		if err != nil {
			return nil, nil, err
		}
		return []joinInput{{op: planned, cardinality: estimateCardinality(planned)}}, nil, nil
	}
	leftLeaves, leftConds, err := flattenJoins(ctx, join.Left, catalog)
	if err != nil {
		return nil, nil, err
	}
	rightLeaves, rightConds, err := flattenJoins(ctx, join.Right, catalog)
	if err != nil {
		return nil, nil, err
	}
	leaves := make([]joinInput, 0, len(leftLeaves)+len(rightLeaves))
	leaves = append(leaves, leftLeaves...)
	leaves = append(leaves, rightLeaves...)

	conds := make([]ast.Expr, 0, len(leftConds)+1+len(rightConds))
	conds = append(conds, leftConds...)
	conds = append(conds, join.Condition)
	conds = append(conds, rightConds...)
	return leaves, conds, nil
}

// bestOrderDP explores every permutation of the join inputs when the
// count is small, minimizing the sum of intermediate-result
// cardinalities — a direct, small-N dynamic-programming join-order
// search.
func bestOrderDP(leaves []joinInput) []joinInput {
	if len(leaves) <= 1 {
		return leaves
	}
	best := append([]joinInput(nil), leaves...)
	bestCost := chainCost(best)
	permute(leaves, 0, func(order []joinInput) {
		if cost := chainCost(order); cost < bestCost {
			bestCost = cost
			best = append([]joinInput(nil), order...)
		}
	})
	return best
}

func chainCost(order []joinInput) int64 {
	if len(order) == 0 {
		return 0
	}
	running := order[0].cardinality
	var total int64
	for i := 1; i < len(order); i++ {
		running *= order[i].cardinality
		total += running
	}
	return total
}

func permute(items []joinInput, k int, visit func([]joinInput)) {
	if k == len(items) {
		visit(items)
		return
	}
	for i := k; i < len(items); i++ {
		items[k], items[i] = items[i], items[k]
		permute(items, k+1, visit)
		items[k], items[i] = items[i], items[k]
	}
}

func estimateCardinality(op Op) int64 {
	switch n := op.(type) {
	case *NodeScan:
		return n.cardinality
	case *Filter:
		return estimateCardinality(n.Input)
	default:
		return 1
	}
}

func labelOf(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

// equalityOnVariable reports whether predicate is `variable.prop = <literal>`
// (in either operand order), returning the property name and the value
// expression when so.
func equalityOnVariable(predicate ast.Expr, variable string) (string, ast.Expr, bool) {
	bin, ok := predicate.(*ast.BinaryExpr)
	if !ok || bin.Op != ast.OpEq {
		return "", nil, false
	}
	if prop, ok := propertyOf(bin.Left, variable); ok {
		return prop, bin.Right, true
	}
	if prop, ok := propertyOf(bin.Right, variable); ok {
		return prop, bin.Left, true
	}
	return "", nil, false
}

func propertyOf(expr ast.Expr, variable string) (string, bool) {
	pa, ok := expr.(*ast.PropertyAccess)
	if !ok {
		return "", false
	}
	ident, ok := pa.Target.(*ast.Ident)
	if !ok || ident.Name != variable {
		return "", false
	}
	return pa.Property, true
}
