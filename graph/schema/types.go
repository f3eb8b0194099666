package schema

// PropertyTypeKind discriminates PropertyType's variants, including
// the recursive Array/Map cases.
type PropertyTypeKind int

const (
	TypeString PropertyTypeKind = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeDateTime
	TypeJSON
	TypeArray
	TypeMap
)

// PropertyType describes a property's value type; Array carries an
// Elem (the element type), Map carries Fields (named sub-types).
type PropertyType struct {
	Kind   PropertyTypeKind
	Elem   *PropertyType
	Fields map[string]*PropertyType
}

func StringType() PropertyType   { return PropertyType{Kind: TypeString} }
func IntegerType() PropertyType  { return PropertyType{Kind: TypeInteger} }
func FloatType() PropertyType    { return PropertyType{Kind: TypeFloat} }
func BooleanType() PropertyType  { return PropertyType{Kind: TypeBoolean} }
func DateTimeType() PropertyType { return PropertyType{Kind: TypeDateTime} }
func JSONType() PropertyType     { return PropertyType{Kind: TypeJSON} }
func ArrayType(elem PropertyType) PropertyType {
	return PropertyType{Kind: TypeArray, Elem: &elem}
}
func MapType(fields map[string]*PropertyType) PropertyType {
	return PropertyType{Kind: TypeMap, Fields: fields}
}

// PropertyConstraintKind discriminates PropertyConstraint's variants.
type PropertyConstraintKind int

const (
	ConstraintMinLength PropertyConstraintKind = iota
	ConstraintMaxLength
	ConstraintMinValue
	ConstraintMaxValue
	ConstraintPattern
	ConstraintEnum
	ConstraintCustom
)

// PropertyConstraint is one bound on a property value; only
// the field relevant to Kind is populated.
type PropertyConstraint struct {
	Kind       PropertyConstraintKind
	Length     int
	IntValue   int64
	Pattern    string
	EnumValues []interface{}
	CustomRule string
}

func MinLength(n int) PropertyConstraint { return PropertyConstraint{Kind: ConstraintMinLength, Length: n} }
func MaxLength(n int) PropertyConstraint { return PropertyConstraint{Kind: ConstraintMaxLength, Length: n} }
func MinValue(v int64) PropertyConstraint {
	return PropertyConstraint{Kind: ConstraintMinValue, IntValue: v}
}
func MaxValue(v int64) PropertyConstraint {
	return PropertyConstraint{Kind: ConstraintMaxValue, IntValue: v}
}
func PatternConstraint(p string) PropertyConstraint {
	return PropertyConstraint{Kind: ConstraintPattern, Pattern: p}
}
func EnumConstraint(values ...interface{}) PropertyConstraint {
	return PropertyConstraint{Kind: ConstraintEnum, EnumValues: values}
}
func CustomConstraint(rule string) PropertyConstraint {
	return PropertyConstraint{Kind: ConstraintCustom, CustomRule: rule}
}

// PropertySchema declares a single named property of a type.
type PropertySchema struct {
	Name         string
	Type         PropertyType
	Description  string
	Required     bool
	DefaultValue interface{}
	Constraints  []PropertyConstraint
}

func NewPropertySchema(name string, t PropertyType) *PropertySchema {
	return &PropertySchema{Name: name, Type: t}
}

func (p *PropertySchema) AddConstraint(c PropertyConstraint) { p.Constraints = append(p.Constraints, c) }
func (p *PropertySchema) HasDefaultValue() bool              { return p.DefaultValue != nil }

// VertexTypeSchema declares a vertex label: its properties,
// required-property list, inheritance parents, and constraints.
type VertexTypeSchema struct {
	Name               string
	Description        string
	RequiredProperties []string
	Properties         map[string]*PropertySchema
	Inherits           []string
	Constraints        []SchemaConstraint
}

func NewVertexType(name string) *VertexTypeSchema {
	return &VertexTypeSchema{Name: name, Properties: make(map[string]*PropertySchema)}
}

func (v *VertexTypeSchema) AddProperty(p *PropertySchema) { v.Properties[p.Name] = p }

func (v *VertexTypeSchema) IsPropertyRequired(name string) bool {
	for _, p := range v.RequiredProperties {
		if p == name {
			return true
		}
	}
	return false
}

// EdgeTypeSchema declares an edge label, including the vertex types
// it may connect.
type EdgeTypeSchema struct {
	Name               string
	Description        string
	SourceTypes        []string
	TargetTypes        []string
	RequiredProperties []string
	Properties         map[string]*PropertySchema
	Directed           bool
	Constraints        []SchemaConstraint
}

func NewEdgeType(name string) *EdgeTypeSchema {
	return &EdgeTypeSchema{Name: name, Properties: make(map[string]*PropertySchema), Directed: true}
}

func (e *EdgeTypeSchema) AddProperty(p *PropertySchema) { e.Properties[p.Name] = p }

func (e *EdgeTypeSchema) IsPropertyRequired(name string) bool {
	for _, p := range e.RequiredProperties {
		if p == name {
			return true
		}
	}
	return false
}

// SchemaConstraintKind discriminates SchemaConstraint's variants.
type SchemaConstraintKind int

const (
	ConstraintUniqueProperty SchemaConstraintKind = iota
	ConstraintCardinality
	ConstraintPath
	ConstraintCustomSchema
)

// SchemaConstraint is a label-scoped rule over whole entities rather
// than a single property.
type SchemaConstraint struct {
	Kind        SchemaConstraintKind
	VertexType  string
	Property    string
	EdgeType    string
	MinCard     int
	MaxCard     *int
	Pattern     string
	Description string
	Name        string
	Parameters  map[string]interface{}
}

func UniquePropertyConstraint(vertexType, property string) SchemaConstraint {
	return SchemaConstraint{Kind: ConstraintUniqueProperty, VertexType: vertexType, Property: property}
}

func CardinalityConstraint(edgeType string, min int, max *int) SchemaConstraint {
	return SchemaConstraint{Kind: ConstraintCardinality, EdgeType: edgeType, MinCard: min, MaxCard: max}
}

func PathConstraint(pattern, description string) SchemaConstraint {
	return SchemaConstraint{Kind: ConstraintPath, Pattern: pattern, Description: description}
}

func CustomSchemaConstraint(name string, params map[string]interface{}) SchemaConstraint {
	return SchemaConstraint{Kind: ConstraintCustomSchema, Name: name, Parameters: params}
}
