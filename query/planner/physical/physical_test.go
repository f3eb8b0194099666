package physical

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/query/parser"
	"kotobadb.dev/kotobadb/query/planner/logical"
)

// fakeCatalog is a Catalog double so these tests don't depend on a
// live graph.Store, mirroring logical's own parser-backed fixtures.
type fakeCatalog struct {
	cardinalities map[string]int64
	indexed       map[string]bool
}

func (c *fakeCatalog) LabelCardinality(ctx context.Context, label string) (int64, error) {
	if n, ok := c.cardinalities[label]; ok {
		return n, nil
	}
	return 1000, nil
}

func (c *fakeCatalog) PropertySelectivity(ctx context.Context, label, property string) (float64, error) {
	return 0.1, nil
}

func (c *fakeCatalog) HasIndex(ctx context.Context, label, property string) (bool, error) {
	return c.indexed[label+"."+property], nil
}

func planQuery(t *testing.T, src string, cat Catalog) Op {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	q, ok := prog.Statements[0].(*ast.Query)
	require.True(t, ok)
	logicalOp, err := logical.Build(q)
	require.NoError(t, err)
	logicalOp = logical.Rewrite(logicalOp)
	physicalOp, err := Plan(context.Background(), logicalOp, cat)
	require.NoError(t, err)
	return physicalOp
}

func TestPlan_FullScanWhenNoIndex(t *testing.T) {
	cat := &fakeCatalog{}
	op := planQuery(t, "MATCH (p:Person) WHERE p.age = 30 RETURN p", cat)

	proj := op.(*Project)
	filter, ok := proj.Input.(*Filter)
	require.True(t, ok, "expected Filter, got %T", proj.Input)
	scan, ok := filter.Input.(*NodeScan)
	require.True(t, ok, "expected NodeScan, got %T", filter.Input)
	assert.Equal(t, ScanFull, scan.Strategy)
}

func TestPlan_IndexScanWhenEqualityOverIndexedProperty(t *testing.T) {
	cat := &fakeCatalog{indexed: map[string]bool{"Person.age": true}}
	op := planQuery(t, "MATCH (p:Person) WHERE p.age = 30 RETURN p", cat)

	proj := op.(*Project)
	scan, ok := proj.Input.(*NodeScan)
	require.True(t, ok, "expected NodeScan, got %T", proj.Input)
	assert.Equal(t, ScanIndex, scan.Strategy)
	assert.Equal(t, "age", scan.IndexProperty)
}

func TestPlan_ExpandChainPreserved(t *testing.T) {
	cat := &fakeCatalog{}
	op := planQuery(t, "MATCH (p:Person)-[:WORKS_AT]->(c:Company) RETURN p, c", cat)

	proj := op.(*Project)
	filter, ok := proj.Input.(*Filter)
	require.True(t, ok)
	expand, ok := filter.Input.(*Expand)
	require.True(t, ok)
	assert.Equal(t, "p", expand.FromVar)
	assert.Equal(t, "c", expand.ToVar)
}

func TestSortByCardinality_OrdersAscending(t *testing.T) {
	items := []joinInput{
		{cardinality: 300},
		{cardinality: 10},
		{cardinality: 50},
	}
	sortByCardinality(items)
	assert.Equal(t, int64(10), items[0].cardinality)
	assert.Equal(t, int64(50), items[1].cardinality)
	assert.Equal(t, int64(300), items[2].cardinality)
}

func TestBestOrderDP_MinimizesIntermediateCardinality(t *testing.T) {
	items := []joinInput{
		{cardinality: 100},
		{cardinality: 2},
		{cardinality: 50},
	}
	ordered := bestOrderDP(items)
	// The cheapest chain starts with the smallest input.
	assert.Equal(t, int64(2), ordered[0].cardinality)
}
