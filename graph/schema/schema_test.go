package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphSchema_New(t *testing.T) {
	s := New("test_schema", "Test Schema", "1.0.0")
	assert.Equal(t, "test_schema", s.ID)
	assert.Equal(t, "Test Schema", s.Name)
	assert.Equal(t, "1.0.0", s.Version)
	assert.Empty(t, s.VertexTypes)
	assert.Empty(t, s.EdgeTypes)
}

func TestVertexTypeSchema_AddProperty(t *testing.T) {
	vt := NewVertexType("User")
	vt.Description = "User vertex type"
	vt.AddProperty(NewPropertySchema("name", StringType()))

	assert.Equal(t, "User", vt.Name)
	assert.Len(t, vt.Properties, 1)
	assert.Contains(t, vt.Properties, "name")
}

func TestEdgeTypeSchema_Directionality(t *testing.T) {
	et := NewEdgeType("FRIENDS_WITH")
	et.SourceTypes = []string{"User"}
	et.TargetTypes = []string{"User"}

	assert.Equal(t, "FRIENDS_WITH", et.Name)
	assert.Equal(t, []string{"User"}, et.SourceTypes)
	assert.Equal(t, []string{"User"}, et.TargetTypes)
	assert.True(t, et.Directed)
}

func TestPropertySchema_Constraints(t *testing.T) {
	p := NewPropertySchema("age", IntegerType())
	p.Required = true
	p.AddConstraint(MinValue(0))

	assert.Equal(t, "age", p.Name)
	assert.Equal(t, TypeInteger, p.Type.Kind)
	assert.True(t, p.Required)
	assert.Len(t, p.Constraints, 1)
}

func TestValidateSchema_DefaultIsValid(t *testing.T) {
	v := Default().ValidateSchema()
	assert.True(t, v.IsValid)
	assert.Empty(t, v.Errors)
	assert.Empty(t, v.Warnings)
}

func TestValidateSchema_InvalidEdgeReference(t *testing.T) {
	s := New("invalid_schema", "Invalid Schema", "1.0.0")
	et := NewEdgeType("INVALID_EDGE")
	et.SourceTypes = []string{"NonExistentType"}
	s.AddEdgeType(et)

	v := s.ValidateSchema()
	assert.False(t, v.IsValid)
	assert.NotEmpty(t, v.Errors)
}

func TestValidateSchema_InheritanceFromUnknownType(t *testing.T) {
	s := New("s", "S", "1.0.0")
	vt := NewVertexType("Admin")
	vt.Inherits = []string{"Ghost"}
	s.AddVertexType(vt)

	v := s.ValidateSchema()
	assert.False(t, v.IsValid)
	assert.Equal(t, ErrInheritanceError, v.Errors[0].Type)
}

func TestValidateSchema_DuplicateRequiredProperty(t *testing.T) {
	s := New("s", "S", "1.0.0")
	vt := NewVertexType("User")
	vt.RequiredProperties = []string{"name", "name"}
	s.AddVertexType(vt)

	v := s.ValidateSchema()
	assert.False(t, v.IsValid)
	assert.Equal(t, ErrConstraintViolation, v.Errors[0].Type)
}

func TestGraphSchema_Statistics(t *testing.T) {
	s := New("stats_schema", "Stats Schema", "1.0.0")
	vt := NewVertexType("User")
	vt.AddProperty(NewPropertySchema("name", StringType()))
	s.AddVertexType(vt)

	stats := s.Statistics()
	assert.Equal(t, 1, stats.VertexTypes)
	assert.Equal(t, 0, stats.EdgeTypes)
	assert.Equal(t, 1, stats.TotalProperties)
}
