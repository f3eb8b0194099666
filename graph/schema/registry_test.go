package schema

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/storage"
)

func personSchema() *GraphSchema {
	s := New("people", "People", "1.0.0")
	person := NewVertexType("Person")
	person.RequiredProperties = []string{"name"}
	name := NewPropertySchema("name", StringType())
	name.AddConstraint(MinLength(1))
	person.AddProperty(name)
	age := NewPropertySchema("age", IntegerType())
	age.AddConstraint(MinValue(0))
	person.AddProperty(age)
	s.AddVertexType(person)

	company := NewVertexType("Company")
	s.AddVertexType(company)

	worksAt := NewEdgeType("WORKS_AT")
	worksAt.SourceTypes = []string{"Person"}
	worksAt.TargetTypes = []string{"Company"}
	s.AddEdgeType(worksAt)
	return s
}

func TestRegistry_RegisterPersistsByCID(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	r := NewRegistry(backend)

	cid, err := r.Register(ctx, personSchema())
	require.NoError(t, err)
	assert.False(t, cid.IsZero())

	got, ok := r.GetByCID(cid)
	require.True(t, ok)
	assert.Equal(t, "people", got.ID)

	data, ok, err := backend.Get(ctx, storage.SchemaKey(cid.String()))
	require.NoError(t, err)
	require.True(t, ok)
	restored, err := DecodeSchema(data)
	require.NoError(t, err)
	assert.Equal(t, "people", restored.ID)
	// The restored schema's canonical encoding hashes back to its key.
	assert.Equal(t, cid, restored.CID())
}

func TestRegistry_RegisterRejectsInconsistentSchema(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)

	s := New("broken", "Broken", "1")
	edge := NewEdgeType("REL")
	edge.SourceTypes = []string{"Ghost"} // references a missing vertex type
	s.AddEdgeType(edge)

	_, err := r.Register(ctx, s)
	assert.Error(t, err)
}

func TestRegistry_ValidateVertex(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	_, err := r.Register(ctx, personSchema())
	require.NoError(t, err)

	valid := graph.Vertex{ID: "v1", Label: "Person", Properties: map[string]graph.Value{
		"name": graph.StringValue("Ada"),
		"age":  graph.IntValue(36),
	}}
	assert.NoError(t, r.ValidateVertex(valid))

	missing := graph.Vertex{ID: "v2", Label: "Person", Properties: map[string]graph.Value{
		"age": graph.IntValue(36),
	}}
	assert.Error(t, r.ValidateVertex(missing), "missing required property")

	wrongType := graph.Vertex{ID: "v3", Label: "Person", Properties: map[string]graph.Value{
		"name": graph.StringValue("Ada"),
		"age":  graph.StringValue("thirty"),
	}}
	assert.Error(t, r.ValidateVertex(wrongType))

	negative := graph.Vertex{ID: "v4", Label: "Person", Properties: map[string]graph.Value{
		"name": graph.StringValue("Ada"),
		"age":  graph.IntValue(-1),
	}}
	assert.Error(t, r.ValidateVertex(negative))

	unknownLabel := graph.Vertex{ID: "v5", Label: "Asteroid"}
	assert.NoError(t, r.ValidateVertex(unknownLabel), "unschema'd labels pass")
}

func TestRegistry_ValidateEdgeEndpointLabels(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(nil)
	_, err := r.Register(ctx, personSchema())
	require.NoError(t, err)

	e := graph.Edge{ID: "e1", Label: "WORKS_AT", From: "v1", To: "v2"}
	assert.NoError(t, r.ValidateEdge(e, "Person", "Company"))
	assert.Error(t, r.ValidateEdge(e, "Company", "Person"))
}
