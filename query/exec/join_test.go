package exec

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/query/ast"
	"kotobadb.dev/kotobadb/query/planner/physical"
	"kotobadb.dev/kotobadb/storage"
)

// joinFixture populates two labels with n vertices each, keyed 0..n-1
// on property k, so an equi-join on k matches exactly one row per key.
func joinFixture(t *testing.T, n int) *graph.Store {
	t.Helper()
	ctx := context.Background()
	store := graph.NewStore(storage.NewMemory())
	for _, label := range []string{"L", "R"} {
		for i := 0; i < n; i++ {
			v := graph.Vertex{Label: label, Properties: map[string]graph.Value{
				"k":    graph.IntValue(int64(i)),
				"side": graph.StringValue(label),
			}}
			require.NoError(t, store.PutVertex(ctx, v))
		}
	}
	return store
}

func equiJoinPlan(strategy physical.JoinStrategy) physical.Op {
	condition := &ast.BinaryExpr{
		Op:    ast.OpEq,
		Left:  &ast.PropertyAccess{Target: &ast.Ident{Name: "a"}, Property: "k"},
		Right: &ast.PropertyAccess{Target: &ast.Ident{Name: "b"}, Property: "k"},
	}
	return &physical.Join{
		Left:      &physical.NodeScan{Variable: "a", Labels: []string{"L"}},
		Right:     &physical.NodeScan{Variable: "b", Labels: []string{"R"}},
		Condition: condition,
		Strategy:  strategy,
	}
}

func drainJoinKeys(t *testing.T, store *graph.Store, plan physical.Op) []string {
	t.Helper()
	ctx := context.Background()
	it, err := Build(ctx, plan, store, nil)
	require.NoError(t, err)
	defer it.Close()

	var keys []string
	for {
		row, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		a := row["a"].(*graph.Vertex)
		b := row["b"].(*graph.Vertex)
		keys = append(keys, fmt.Sprintf("%d=%d", a.Properties["k"].Int, b.Properties["k"].Int))
	}
	sort.Strings(keys)
	return keys
}

func TestHashJoin_MatchesEveryKeyExactlyOnce(t *testing.T) {
	store := joinFixture(t, 50)
	keys := drainJoinKeys(t, store, equiJoinPlan(physical.StrategyHash))
	require.Len(t, keys, 50)
	for i, key := range keys {
		var a, b int
		_, err := fmt.Sscanf(key, "%d=%d", &a, &b)
		require.NoError(t, err)
		assert.Equal(t, a, b, "row %d joined mismatched keys", i)
	}
}

func TestHashJoin_DeterministicAcrossRepeatedRuns(t *testing.T) {
	store := joinFixture(t, 100)
	first := drainJoinKeys(t, store, equiJoinPlan(physical.StrategyHash))
	require.Len(t, first, 100)
	for run := 0; run < 20; run++ {
		again := drainJoinKeys(t, store, equiJoinPlan(physical.StrategyHash))
		require.Equal(t, first, again, "run %d differed", run)
	}
}

func TestNestedLoopJoin_AgreesWithHashJoin(t *testing.T) {
	store := joinFixture(t, 30)
	hash := drainJoinKeys(t, store, equiJoinPlan(physical.StrategyHash))
	nested := drainJoinKeys(t, store, equiJoinPlan(physical.StrategyNestedLoop))
	assert.Equal(t, hash, nested)
}
