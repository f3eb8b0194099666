package logical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/query/parser"
)

func buildQuery(t *testing.T, src string) *ast.Query {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	q, ok := prog.Statements[0].(*ast.Query)
	require.True(t, ok)
	return q
}

func TestBuild_SimpleScanProject(t *testing.T) {
	q := buildQuery(t, "MATCH (n) RETURN n")
	op, err := Build(q)
	require.NoError(t, err)

	proj, ok := op.(*Project)
	require.True(t, ok)
	_, ok = proj.Input.(*NodeScan)
	assert.True(t, ok)
}

func TestBuild_ExpandChainForRelationship(t *testing.T) {
	q := buildQuery(t, "MATCH (p:Person)-[r:WORKS_AT]->(c:Company) RETURN p, r, c")
	op, err := Build(q)
	require.NoError(t, err)

	proj := op.(*Project)
	filter, ok := proj.Input.(*Filter)
	require.True(t, ok, "expected a label Filter for the expanded node's :Company label")
	expand, ok := filter.Input.(*Expand)
	require.True(t, ok)
	assert.Equal(t, "p", expand.FromVar)
	assert.Equal(t, "c", expand.ToVar)
}

func TestBuild_AggregationProducesGroup(t *testing.T) {
	q := buildQuery(t, "MATCH (n) RETURN count(*) AS total")
	op, err := Build(q)
	require.NoError(t, err)
	_, ok := op.(*Group)
	assert.True(t, ok)
}

func TestPushDownPredicates_MovesFilterBelowExpand(t *testing.T) {
	q := buildQuery(t, "MATCH (p:Person)-[:WORKS_AT]->(c) WHERE p.age > 25 RETURN c")
	op, err := Build(q)
	require.NoError(t, err)
	op = PushDownPredicates(op)

	proj := op.(*Project)
	expand, ok := proj.Input.(*Expand)
	require.True(t, ok, "filter on p.age should have moved below Expand")
	_, ok = expand.Input.(*Filter)
	assert.True(t, ok)
}

func TestFoldConstants_EvaluatesLiteralArithmetic(t *testing.T) {
	q := buildQuery(t, "MATCH (n) WHERE n.age > 20 + 5 RETURN n")
	op, err := Build(q)
	require.NoError(t, err)
	op = FoldConstants(op)

	proj := op.(*Project)
	filter := proj.Input.(*Filter)
	bin := filter.Predicate.(*ast.BinaryExpr)
	lit, ok := bin.Right.(*ast.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(25), lit.Value.Int)
}

func TestPushDownLimit_MovesBelowProject(t *testing.T) {
	q := buildQuery(t, "MATCH (n) RETURN n LIMIT 5")
	op, err := Build(q)
	require.NoError(t, err)
	op = PushDownLimit(op)

	proj, ok := op.(*Project)
	require.True(t, ok)
	limit, ok := proj.Input.(*Limit)
	require.True(t, ok)
	assert.Equal(t, int64(5), limit.N)
}
