package graph

import (
	"context"
	"fmt"
)

// TraverseOptions bounds a variable-length path traversal: MaxHops caps depth, Label restricts which edge
// label to follow, Outgoing selects direction. AllowRevisit permits a
// path to pass through the same vertex more than once; off by default,
// since MaxHops alone then bounds cyclic walks.
type TraverseOptions struct {
	MaxHops      int
	Label        string
	Outgoing     bool
	AllowRevisit bool
}

// Path is one discovered route from the start vertex, as the
// alternating vertex/edge IDs visited.
type Path struct {
	Vertices []string
	Edges    []string
}

// Traverse performs a bounded breadth-first walk from start,
// repeatedly calling Expand. Unless AllowRevisit is set, a path that
// would revisit one of its own vertices is pruned, so cycles in the
// live graph are walked once, never looped.
func (s *Store) Traverse(ctx context.Context, start string, opts TraverseOptions) ([]Path, error) {
	if opts.MaxHops <= 0 {
		opts.MaxHops = 1
	}
	type frontierEntry struct {
		path Path
		seen map[string]bool
	}
	initial := frontierEntry{
		path: Path{Vertices: []string{start}},
		seen: map[string]bool{start: true},
	}
	frontier := []frontierEntry{initial}
	var results []Path

	for hop := 0; hop < opts.MaxHops; hop++ {
		var next []frontierEntry
		for _, f := range frontier {
			current := f.path.Vertices[len(f.path.Vertices)-1]
			edges, err := s.Expand(ctx, current, opts.Outgoing, opts.Label)
			if err != nil {
				return nil, fmt.Errorf("traverse expand at %s: %w", current, err)
			}
			for _, e := range edges {
				endpoint := e.To
				if !opts.Outgoing {
					endpoint = e.From
				}
				if !opts.AllowRevisit && f.seen[endpoint] {
					continue // reject cycles rather than loop forever
				}
				seenCopy := make(map[string]bool, len(f.seen)+1)
				for k := range f.seen {
					seenCopy[k] = true
				}
				seenCopy[endpoint] = true

				newPath := Path{
					Vertices: append(append([]string{}, f.path.Vertices...), endpoint),
					Edges:    append(append([]string{}, f.path.Edges...), e.ID),
				}
				results = append(results, newPath)
				next = append(next, frontierEntry{path: newPath, seen: seenCopy})
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return results, nil
}
