// Package physical turns a logical operator tree into a physical plan:
// NodeScan vs. IndexScan, NestedLoopJoin vs. HashJoin, and a bounded
// cost-based join order. Cost estimation consults a pluggable Catalog
// rather than a
// single storage-backed implementation.
package physical

import (
	"context"
	"sort"

	"kotobadb.dev/kotobadb/graph"
)

// Catalog supplies the statistics the cost model needs: per-label
// cardinalities, per-property selectivities, and index availability.
type Catalog interface {
	LabelCardinality(ctx context.Context, label string) (int64, error)
	PropertySelectivity(ctx context.Context, label, property string) (float64, error)
	HasIndex(ctx context.Context, label, property string) (bool, error)
}

// StoreCatalog is the default Catalog, backed directly by a
// graph.Store's scans — adequate for the single-node deployments this
// engine targets; a production catalog would cache these counts
// rather than rescanning per plan.
type StoreCatalog struct {
	Store *graph.Store
}

func NewStoreCatalog(store *graph.Store) *StoreCatalog {
	return &StoreCatalog{Store: store}
}

func (c *StoreCatalog) LabelCardinality(ctx context.Context, label string) (int64, error) {
	vertices, err := c.Store.ScanVertices(ctx)
	if err != nil {
		return 0, err
	}
	if label == "" {
		return int64(len(vertices)), nil
	}
	var n int64
	for _, v := range vertices {
		if v.Label == label {
			n++
		}
	}
	return n, nil
}

// PropertySelectivity estimates the fraction of label-matching
// vertices an equality predicate on property would keep, as one over
// the exact distinct-value count across every matching vertex, or 1.0
// when no matching vertex carries an indexable value for it.
func (c *StoreCatalog) PropertySelectivity(ctx context.Context, label, property string) (float64, error) {
	vertices, err := c.Store.ScanVertices(ctx)
	if err != nil {
		return 0, err
	}
	distinct := map[string]bool{}
	var matching int64
	for _, v := range vertices {
		if label != "" && v.Label != label {
			continue
		}
		matching++
		if val, ok := v.Properties[property]; ok {
			if s, ok := val.IndexableString(); ok {
				distinct[s] = true
			}
		}
	}
	if matching == 0 {
		return 1.0, nil
	}
	if len(distinct) == 0 {
		return 1.0, nil
	}
	return 1.0 / float64(len(distinct)), nil
}

// HasIndex always reports true for a scalar property: graph.Store
// maintains a secondary index entry for every indexable property value
// at write time (writeIndexEntries), independent of whether a CREATE
// INDEX statement was ever issued for it. CREATE INDEX/DROP INDEX only
// record index-definition transactions in the log rather than being a
// precondition for LookupByProperty to work.
func (c *StoreCatalog) HasIndex(ctx context.Context, label, property string) (bool, error) {
	return true, nil
}

// sortByCardinality orders a set of join inputs by ascending estimated
// cardinality, the standard greedy heuristic used when the DP search
// space is too large to explore exhaustively.
func sortByCardinality(items []joinInput) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].cardinality < items[j].cardinality })
}
