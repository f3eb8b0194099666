package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/query/ast"
)

func TestParse_BasicMatchReturn(t *testing.T) {
	prog, err := Parse("MATCH (n) RETURN n")
	require.NoError(t, err)
	require.Len(t, prog.Statements, 1)

	q, ok := prog.Statements[0].(*ast.Query)
	require.True(t, ok)
	assert.Len(t, q.Match.Pattern.Nodes, 1)
	assert.Len(t, q.Return.Items, 1)
}

func TestParse_LabeledPatternWithWhereAndOrder(t *testing.T) {
	src := `MATCH (p:Person) WHERE p.age > 25 RETURN p.name AS name ORDER BY p.age DESC LIMIT 10`
	prog, err := Parse(src)
	require.NoError(t, err)
	q := prog.Statements[0].(*ast.Query)

	assert.Equal(t, []string{"Person"}, q.Match.Pattern.Nodes[0].Labels)
	require.NotNil(t, q.Where)
	require.Len(t, q.Return.Items, 1)
	assert.Equal(t, "name", q.Return.Items[0].Alias)
	require.Len(t, q.OrderBy, 1)
	assert.True(t, q.OrderBy[0].Desc)
	require.NotNil(t, q.Limit)
	assert.Equal(t, int64(10), *q.Limit)
}

func TestParse_RelationshipPatternWithLabelAndDirection(t *testing.T) {
	src := `MATCH (p:Person)-[r:WORKS_AT]->(c:Company) RETURN p, r, c`
	prog, err := Parse(src)
	require.NoError(t, err)
	q := prog.Statements[0].(*ast.Query)

	require.Len(t, q.Match.Pattern.Nodes, 2)
	require.Len(t, q.Match.Pattern.Edges, 1)
	edge := q.Match.Pattern.Edges[0]
	assert.Equal(t, ast.DirOut, edge.Direction)
	assert.Equal(t, []string{"WORKS_AT"}, edge.Labels)
	assert.Equal(t, "r", edge.Variable)
}

func TestParse_VariableLengthPathEitherDirection(t *testing.T) {
	src := `MATCH (a:Person)-[:KNOWS*1..2]-(b:Person) RETURN a.id, b.id`
	prog, err := Parse(src)
	require.NoError(t, err)
	q := prog.Statements[0].(*ast.Query)

	edge := q.Match.Pattern.Edges[0]
	assert.Equal(t, ast.DirEither, edge.Direction)
	assert.True(t, edge.VariableLength)
	assert.Equal(t, 1, edge.MinHops)
	assert.Equal(t, 2, edge.MaxHops)
}

func TestParse_AggregationWithGroupBy(t *testing.T) {
	src := `MATCH (n) RETURN labels(n) AS label, count(*) AS total GROUP BY labels(n)`
	prog, err := Parse(src)
	require.NoError(t, err)
	q := prog.Statements[0].(*ast.Query)

	require.Len(t, q.Return.Items, 2)
	call, ok := q.Return.Items[1].Expr.(*ast.FuncCall)
	require.True(t, ok)
	assert.Equal(t, "count", call.Name)
	assert.True(t, call.Star)
	require.Len(t, q.GroupBy, 1)
}

func TestParse_CreateAndDropDDL(t *testing.T) {
	prog, err := Parse("CREATE GRAPH social; CREATE INDEX idx_name ON Person(name); DROP INDEX idx_name; DROP GRAPH social")
	require.NoError(t, err)
	require.Len(t, prog.Statements, 4)

	_, ok := prog.Statements[0].(*ast.CreateGraph)
	assert.True(t, ok)
	idx, ok := prog.Statements[1].(*ast.CreateIndex)
	require.True(t, ok)
	assert.Equal(t, "Person", idx.Label)
	assert.Equal(t, "name", idx.Property)
	_, ok = prog.Statements[2].(*ast.DropIndex)
	assert.True(t, ok)
	_, ok = prog.Statements[3].(*ast.DropGraph)
	assert.True(t, ok)
}

func TestParse_InsertMultiplePatterns(t *testing.T) {
	src := `INSERT (a:Person {name: "Alice", age: 30}), (b:Person {name: "Bob"}), (a)-[:KNOWS]->(b)`
	prog, err := Parse(src)
	require.NoError(t, err)
	ins, ok := prog.Statements[0].(*ast.InsertStatement)
	require.True(t, ok)
	require.Len(t, ins.Elements, 3)
	assert.Equal(t, "a", ins.Elements[0].Nodes[0].Variable)
	assert.Len(t, ins.Elements[2].Edges, 1)
}

func TestParse_InvalidSyntaxReportsLineAndColumn(t *testing.T) {
	_, err := Parse("MATCH (n RETURN n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1, column 10")
}
