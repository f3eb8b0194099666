package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/graph/schema"
	"kotobadb.dev/kotobadb/security"
	"kotobadb.dev/kotobadb/session"
	"kotobadb.dev/kotobadb/storage"
	"kotobadb.dev/kotobadb/txlog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	backend := storage.NewMemory()
	store := graph.NewStore(backend)
	log := txlog.NewLog(backend, "n1", 1<<50, nil)
	registry := schema.NewRegistry(backend)
	return New(store, log, registry, Options{NodeID: "n1", Author: "tester"})
}

func TestEngine_RoundTripSingleVertex(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	qc := session.New("default")

	outcomes, err := e.Execute(ctx, qc, `INSERT (p:Person {name: "Alice", age: 30})`)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.NotNil(t, outcomes[0].Statement)
	assert.Empty(t, outcomes[0].Statement.RowErrors)
	assert.Len(t, outcomes[0].Statement.CreatedIDs, 1)

	rs, err := e.Query(ctx, qc, `MATCH (p:Person) RETURN p.name, p.age`)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, []string{"p.name", "p.age"}, rs.Columns)
	assert.Equal(t, graph.StringValue("Alice"), rs.Rows[0]["p.name"])
	assert.Equal(t, graph.IntValue(30), rs.Rows[0]["p.age"])
}

func TestEngine_VariableLengthTraversalBothDirections(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	qc := session.New("default")

	_, err := e.Execute(ctx, qc,
		`INSERT (a:Person {num: 1}), (b:Person {num: 2}), (c:Person {num: 3}), (a)-[:KNOWS]->(b), (b)-[:KNOWS]->(c)`)
	require.NoError(t, err)

	rs, err := e.Query(ctx, qc, `MATCH (a)-[:KNOWS*1..2]-(b) RETURN a.num, b.num`)
	require.NoError(t, err)

	var pairs []string
	for _, row := range rs.Rows {
		a := row["a.num"].(graph.Value)
		b := row["b.num"].(graph.Value)
		pairs = append(pairs, fmt.Sprintf("%d-%d", a.Int, b.Int))
	}
	sort.Strings(pairs)
	assert.Equal(t, []string{"1-2", "1-3", "2-1", "2-3", "3-1", "3-2"}, pairs)
}

func TestEngine_PredicatePushdownAndAggregation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	qc := session.New("default")

	for i := 0; i < 200; i++ {
		age := int64(25)
		if i%2 == 0 {
			age = 30
		}
		v := graph.Vertex{Label: "Person", Properties: map[string]graph.Value{
			"name": graph.StringValue(fmt.Sprintf("p%d", i)),
			"age":  graph.IntValue(age),
		}}
		require.NoError(t, e.Store.PutVertex(ctx, v))
	}

	rs, err := e.Query(ctx, qc, `MATCH (p:Person) WHERE p.age = 30 RETURN count(*)`)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, graph.IntValue(100), rs.Rows[0]["count(*)"])

	// The filter must sit inside (IndexScan) or immediately above
	// (Filter on NodeScan) the scan, with Group at the root.
	plan, err := e.Explain(ctx, qc, `MATCH (p:Person) WHERE p.age = 30 RETURN count(*)`)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(plan), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Contains(t, lines[0], "Group")
	assert.True(t,
		strings.Contains(lines[1], "IndexScan") ||
			(strings.Contains(lines[1], "Filter") && strings.Contains(lines[2], "NodeScan")),
		"filter not adjacent to scan:\n%s", plan)
}

func TestEngine_EmptyGraphBoundaries(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	qc := session.New("default")

	rs, err := e.Query(ctx, qc, `MATCH (n) RETURN n`)
	require.NoError(t, err)
	assert.Empty(t, rs.Rows)

	rs, err = e.Query(ctx, qc, `MATCH (n) RETURN count(*), sum(n.x)`)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, graph.IntValue(0), rs.Rows[0]["count(*)"])
	assert.Equal(t, graph.IntValue(0), rs.Rows[0]["sum(n.x)"])
}

func TestEngine_LimitZeroYieldsNoRows(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	qc := session.New("default")

	_, err := e.Execute(ctx, qc, `INSERT (a:Person {num: 1}), (b:Person {num: 2})`)
	require.NoError(t, err)

	rs, err := e.Query(ctx, qc, `MATCH (n:Person) RETURN n.num LIMIT 0`)
	require.NoError(t, err)
	assert.Empty(t, rs.Rows)
}

func TestEngine_QueryRepeatedlyYieldsEqualMultisets(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	qc := session.New("default")

	_, err := e.Execute(ctx, qc, `INSERT (a:Person {num: 1}), (b:Person {num: 2})`)
	require.NoError(t, err)

	first, err := e.Query(ctx, qc, `MATCH (n) RETURN n.num`)
	require.NoError(t, err)
	second, err := e.Query(ctx, qc, `MATCH (n) RETURN n.num`)
	require.NoError(t, err)
	assert.ElementsMatch(t, first.Rows, second.Rows)
}

func TestEngine_PolicyDeniesUnauthorizedPrincipal(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	store := graph.NewStore(backend)
	log := txlog.NewLog(backend, "n1", 1<<50, nil)
	registry := schema.NewRegistry(backend)

	policy := security.NewPolicyServiceWithConfig(security.PolicyEngineConfig{
		Mode:        security.ModeRBACOnly,
		RBACEnabled: true,
		DefaultDeny: true,
	})
	e := New(store, log, registry, Options{Policy: policy, NodeID: "n1"})
	qc := session.New("default")

	_, err := e.Query(ctx, qc, `MATCH (n) RETURN n`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDenied)
}

func TestEngine_LocalBindingsResolveInQueries(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	qc := session.New("default")

	_, err := e.Execute(ctx, qc, `INSERT (a:Person {num: 1}), (b:Person {num: 2})`)
	require.NoError(t, err)

	rs, err := e.Query(ctx, qc, `LOCAL wanted = 2 MATCH (n:Person) WHERE n.num = $wanted RETURN n.num`)
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, graph.IntValue(2), rs.Rows[0]["n.num"])
}

