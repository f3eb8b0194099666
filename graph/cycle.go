package graph

import "fmt"

// DependencyGraph is the minimal shape cycle detection and
// topological sort need: a node ID and the IDs it depends on. It is
// generic over any string-keyed node so both transaction causal-parent
// DAGs (txlog) and
// schema-dependency graphs can reuse the same walk.
type DependencyGraph interface {
	// Dependencies returns the IDs that id directly depends on.
	Dependencies(id string) ([]string, error)
}

// WouldCreateCycle reports whether adding an edge from id to
// dependency would introduce a cycle, by checking whether dependency
// can already reach id through existing edges.
func WouldCreateCycle(g DependencyGraph, id, dependency string) (bool, error) {
	if id == dependency {
		return true, nil
	}
	visited := make(map[string]bool)
	return reaches(g, dependency, id, visited)
}

func reaches(g DependencyGraph, from, target string, visited map[string]bool) (bool, error) {
	if from == target {
		return true, nil
	}
	if visited[from] {
		return false, nil
	}
	visited[from] = true

	deps, err := g.Dependencies(from)
	if err != nil {
		return false, nil // unknown node: cannot reach anything further
	}
	for _, d := range deps {
		ok, err := reaches(g, d, target, visited)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// TopologicalSort orders nodeIDs so that every node appears after all
// of its dependencies, via Kahn's algorithm. Returns an error naming
// the unorderable remainder if a cycle is present.
func TopologicalSort(g DependencyGraph, nodeIDs []string) ([]string, error) {
	inDegree := make(map[string]int, len(nodeIDs))
	dependents := make(map[string][]string)
	nodeSet := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		inDegree[id] = 0
		nodeSet[id] = true
	}
	for _, id := range nodeIDs {
		deps, err := g.Dependencies(id)
		if err != nil {
			return nil, err
		}
		for _, d := range deps {
			if !nodeSet[d] {
				continue // dependency outside this node set, ignore
			}
			dependents[d] = append(dependents[d], id)
			inDegree[id]++
		}
	}

	var queue []string
	for _, id := range nodeIDs {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var order []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, dep := range dependents[n] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(nodeIDs) {
		return nil, fmt.Errorf("cycle detected: only %d of %d nodes are orderable", len(order), len(nodeIDs))
	}
	return order, nil
}
