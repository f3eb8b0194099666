package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kotobadb.dev/kotobadb/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemory())
}

func TestStore_PutGetVertexRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	v := Vertex{Label: "Person", Properties: map[string]Value{
		"name": StringValue("alice"),
		"age":  IntValue(30),
	}}
	require.NoError(t, s.PutVertex(ctx, v))

	got, ok, err := s.GetVertex(ctx, v.CID().String())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Person", got.Label)
	assert.True(t, got.Properties["name"].Equal(StringValue("alice")))
	assert.True(t, got.Properties["age"].Equal(IntValue(30)))
}

func TestStore_IdenticalVerticesCollapseToSameID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	v1 := Vertex{Label: "Tag", Properties: map[string]Value{"name": StringValue("x")}}
	v2 := Vertex{Label: "Tag", Properties: map[string]Value{"name": StringValue("x")}}
	require.NoError(t, s.PutVertex(ctx, v1))
	require.NoError(t, s.PutVertex(ctx, v2))

	all, err := s.ScanVertices(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_DeleteVertexRemovesIndexEntries(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	v := Vertex{Label: "Person", Properties: map[string]Value{"name": StringValue("bob")}}
	require.NoError(t, s.PutVertex(ctx, v))
	id := v.CID().String()

	ids, err := s.LookupByProperty(ctx, "name", "bob")
	require.NoError(t, err)
	assert.Contains(t, ids, id)

	require.NoError(t, s.DeleteVertex(ctx, id))

	ids, err = s.LookupByProperty(ctx, "name", "bob")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_ExpandFiltersByDirectionAndLabel(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := Vertex{Label: "Person", Properties: map[string]Value{"name": StringValue("a")}}
	b := Vertex{Label: "Person", Properties: map[string]Value{"name": StringValue("b")}}
	require.NoError(t, s.PutVertex(ctx, a))
	require.NoError(t, s.PutVertex(ctx, b))

	e := Edge{Label: "knows", From: a.CID().String(), To: b.CID().String()}
	require.NoError(t, s.PutEdge(ctx, e))

	out, err := s.Expand(ctx, a.CID().String(), true, "knows")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, b.CID().String(), out[0].To)

	none, err := s.Expand(ctx, a.CID().String(), true, "follows")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_TraverseRejectsCycles(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	a := Vertex{Label: "N", Properties: map[string]Value{"name": StringValue("a")}}
	b := Vertex{Label: "N", Properties: map[string]Value{"name": StringValue("b")}}
	require.NoError(t, s.PutVertex(ctx, a))
	require.NoError(t, s.PutVertex(ctx, b))

	require.NoError(t, s.PutEdge(ctx, Edge{Label: "e", From: a.CID().String(), To: b.CID().String()}))
	require.NoError(t, s.PutEdge(ctx, Edge{Label: "e", From: b.CID().String(), To: a.CID().String()}))

	paths, err := s.Traverse(ctx, a.CID().String(), TraverseOptions{MaxHops: 5, Label: "e", Outgoing: true})
	require.NoError(t, err)
	for _, p := range paths {
		seen := map[string]bool{}
		for _, v := range p.Vertices {
			assert.False(t, seen[v], "path revisits vertex %s", v)
			seen[v] = true
		}
	}
}

type mapGraph map[string][]string

func (m mapGraph) Dependencies(id string) ([]string, error) { return m[id], nil }

func TestTopologicalSort_OrdersDependenciesFirst(t *testing.T) {
	g := mapGraph{"c": {"b"}, "b": {"a"}, "a": {}}
	order, err := TopologicalSort(g, []string{"c", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestTopologicalSort_DetectsCycle(t *testing.T) {
	g := mapGraph{"a": {"b"}, "b": {"a"}}
	_, err := TopologicalSort(g, []string{"a", "b"})
	assert.Error(t, err)
}

func TestWouldCreateCycle(t *testing.T) {
	g := mapGraph{"a": {"b"}, "b": {}}
	cycle, err := WouldCreateCycle(g, "b", "a")
	require.NoError(t, err)
	assert.True(t, cycle, "b -> a would close a cycle since a already depends on b")

	noCycle, err := WouldCreateCycle(g, "a", "c")
	require.NoError(t, err)
	assert.False(t, noCycle)
}

func TestLookupByPropertyRange(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemory())

	for i := int64(1); i <= 5; i++ {
		v := Vertex{Label: "Item", Properties: map[string]Value{"rank": IntValue(i)}}
		require.NoError(t, s.PutVertex(ctx, v))
	}

	low, _ := IntValue(2).IndexableString()
	high, _ := IntValue(5).IndexableString()
	ids, err := s.LookupByPropertyRange(ctx, "rank", low, high)
	require.NoError(t, err)
	assert.Len(t, ids, 3) // ranks 2, 3, 4

	all, err := s.LookupByPropertyRange(ctx, "rank", "", "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
