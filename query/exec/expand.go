package exec

import (
	"context"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query/ast"
)

// expandIter walks Pattern's edge from each input row's FromVar
// binding, producing one output row per reachable endpoint. A fixed
// (non-variable-length) pattern walks exactly one hop; a
// variable-length pattern (`*min..max`) performs a bounded breadth-
// first walk and binds Pattern.Variable to the full []graph.Edge path
// when named; a path of exactly one edge binds that *graph.Edge instead.
type expandIter struct {
	input   RowIterator
	store   *graph.Store
	pattern *ast.EdgePattern
	fromVar string
	toVar   string

	baseRow Row
	results []expandResult
	pos     int
}

type expandResult struct {
	path []graph.Edge
	to   graph.Vertex
}

func (it *expandIter) Next(ctx context.Context) (Row, bool, error) {
	for {
		if err := checkDeadline(ctx); err != nil {
			return nil, false, err
		}
		if it.pos < len(it.results) {
			r := it.results[it.pos]
			it.pos++
			out := it.baseRow.clone()
			v := r.to
			out[it.toVar] = &v
			if it.pattern.Variable != "" {
				if len(r.path) == 1 {
					e := r.path[0]
					out[it.pattern.Variable] = &e
				} else {
					out[it.pattern.Variable] = r.path
				}
			}
			return out, true, nil
		}

		row, ok, err := it.input.Next(ctx)
		if err != nil || !ok {
			return nil, false, err
		}
		from, ok := row[it.fromVar].(*graph.Vertex)
		if !ok {
			continue
		}
		results, err := it.walk(ctx, from.ID)
		if err != nil {
			return nil, false, err
		}
		it.baseRow = row
		it.results = results
		it.pos = 0
	}
}

// walk performs a bounded breadth-first traversal from startID,
// collecting every path whose length falls within the pattern's
// [min,max] hop range (both 1 for a fixed-length edge step).
func (it *expandIter) walk(ctx context.Context, startID string) ([]expandResult, error) {
	minHops, maxHops := 1, 1
	if it.pattern.VariableLength {
		minHops, maxHops = it.pattern.MinHops, it.pattern.MaxHops
		if minHops < 1 {
			minHops = 1
		}
	}

	type frontierEntry struct {
		vertexID string
		path     []graph.Edge
		visited  map[string]bool
	}
	frontier := []frontierEntry{{vertexID: startID, visited: map[string]bool{startID: true}}}
	var results []expandResult

	for hop := 1; hop <= maxHops; hop++ {
		var next []frontierEntry
		for _, f := range frontier {
			edges, err := it.edgesFrom(ctx, f.vertexID)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				endpoint := e.To
				if endpoint == f.vertexID {
					endpoint = e.From
				}
				// A path never revisits a vertex within the same
				// match, so walking back along the edge just taken
				// (or any longer cycle) is pruned, not emitted.
				if f.visited[endpoint] {
					continue
				}
				path := append(append([]graph.Edge(nil), f.path...), e)
				if hop >= minHops {
					v, ok, err := it.store.GetVertex(ctx, endpoint)
					if err != nil {
						return nil, err
					}
					if ok {
						results = append(results, expandResult{path: path, to: v})
					}
				}
				visited := make(map[string]bool, len(f.visited)+1)
				for k := range f.visited {
					visited[k] = true
				}
				visited[endpoint] = true
				next = append(next, frontierEntry{vertexID: endpoint, path: path, visited: visited})
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return results, nil
}

func (it *expandIter) edgesFrom(ctx context.Context, vertexID string) ([]graph.Edge, error) {
	label := ""
	if len(it.pattern.Labels) == 1 {
		label = it.pattern.Labels[0]
	}

	var edges []graph.Edge
	switch it.pattern.Direction {
	case ast.DirOut:
		out, err := it.store.Expand(ctx, vertexID, true, label)
		if err != nil {
			return nil, err
		}
		edges = out
	case ast.DirIn:
		in, err := it.store.Expand(ctx, vertexID, false, label)
		if err != nil {
			return nil, err
		}
		edges = in
	default:
		out, err := it.store.Expand(ctx, vertexID, true, label)
		if err != nil {
			return nil, err
		}
		in, err := it.store.Expand(ctx, vertexID, false, label)
		if err != nil {
			return nil, err
		}
		edges = append(out, in...)
	}

	if len(it.pattern.Labels) <= 1 {
		return edges, nil
	}
	filtered := edges[:0]
	for _, e := range edges {
		for _, l := range it.pattern.Labels {
			if e.Label == l {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered, nil
}

func (it *expandIter) Close() error { return it.input.Close() }
