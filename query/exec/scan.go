package exec

import (
	"context"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/query/planner/physical"
)

// nodeScanIter pulls one vertex at a time from a pre-fetched candidate
// list, binding it to Variable. Building the full candidate slice up
// front is unavoidable given graph.Store.ScanVertices/LookupByProperty
// return slices rather than a streaming cursor; laziness here means
// the slice is walked one element per Next rather than materialized
// into a full row set before downstream operators run.
type nodeScanIter struct {
	variable   string
	labels     []string
	candidates []graph.Vertex
	pos        int
}

func newNodeScanIter(ctx context.Context, store *graph.Store, n *physical.NodeScan, params map[string]graph.Value) (*nodeScanIter, error) {
	it := &nodeScanIter{variable: n.Variable, labels: n.Labels}

	if n.Strategy == physical.ScanIndex {
		value, ok := literalIndexValue(n.IndexValue, params)
		if !ok {
			// A non-literal index value (e.g. an unbound param) falls
			// back to a full scan rather than failing the plan.
			return newFullScan(ctx, store, it)
		}
		ids, err := store.LookupByProperty(ctx, n.IndexProperty, value)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			v, ok, err := store.GetVertex(ctx, id)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if it.matchesLabel(v) {
				it.candidates = append(it.candidates, v)
			}
		}
		return it, nil
	}
	return newFullScan(ctx, store, it)
}

func newFullScan(ctx context.Context, store *graph.Store, it *nodeScanIter) (*nodeScanIter, error) {
	vertices, err := store.ScanVertices(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range vertices {
		if it.matchesLabel(v) {
			it.candidates = append(it.candidates, v)
		}
	}
	return it, nil
}

func (it *nodeScanIter) matchesLabel(v graph.Vertex) bool {
	if len(it.labels) == 0 {
		return true
	}
	for _, l := range it.labels {
		if l == v.Label {
			return true
		}
	}
	return false
}

func (it *nodeScanIter) Next(ctx context.Context) (Row, bool, error) {
	if err := checkDeadline(ctx); err != nil {
		return nil, false, err
	}
	if it.pos >= len(it.candidates) {
		return nil, false, nil
	}
	v := it.candidates[it.pos]
	it.pos++
	return Row{it.variable: &v}, true, nil
}

func (it *nodeScanIter) Close() error { return nil }

// literalIndexValue renders a folded literal or bound parameter as the
// indexable string LookupByProperty expects.
func literalIndexValue(expr ast.Expr, params map[string]graph.Value) (string, bool) {
	var v graph.Value
	switch e := expr.(type) {
	case *ast.Literal:
		v = e.Value
	case *ast.Param:
		val, ok := params[e.Name]
		if !ok {
			return "", false
		}
		v = val
	default:
		return "", false
	}
	return v.IndexableString()
}
