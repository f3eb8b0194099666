// Package schema implements the L4 schema registry: graph-wide type
// definitions, property constraints, and the tiering hints a schema
// can carry for the hybrid storage layer. Variant-style definitions
// (property types, constraints) are Go structs with explicit kind tags
// so validation can dispatch exhaustively.
package schema

// ObjectStorageProvider names a cold-tier object storage backend.
type ObjectStorageProvider string

const (
	ProviderAWS   ObjectStorageProvider = "aws"
	ProviderGCP   ObjectStorageProvider = "gcp"
	ProviderAzure ObjectStorageProvider = "azure"
	ProviderLocal ObjectStorageProvider = "local"
)

// ObjectStorageConfig configures a graph's cold-tier object storage.
type ObjectStorageConfig struct {
	Provider         ObjectStorageProvider
	Bucket           string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	ServiceAccountKey string
	ClientID         string
	ClientSecret     string
	TenantID         string
	Endpoint         string
	UseSSL           bool
}

// RoutingPolicyKind names which storage/tier.RoutingPolicy a
// HybridStorageConfig selects.
type RoutingPolicyKind string

const (
	RoutingAgeBased  RoutingPolicyKind = "age_based"
	RoutingFrequency RoutingPolicyKind = "access_frequency"
	RoutingSizeBased RoutingPolicyKind = "size_based"
	RoutingManual    RoutingPolicyKind = "manual"
)

// HybridStorageConfig carries the tiering hints a GraphSchema attaches
// to its storage. The hints are stored with the schema only: the
// storage tier is composed from config.StorageConfig, and these fields
// are not read when it is built.
type HybridStorageConfig struct {
	HotBackend                string
	ColdBackend               string
	CacheBackend              string
	CacheSizeLimitBytes       uint64
	ColdMigrationThresholdDays uint64
	EnableAutoTiering         bool
	RoutingPolicy             RoutingPolicyKind
}

// GraphSchema is the top-level schema document for a graph instance.
type GraphSchema struct {
	ID                  string
	Name                string
	Description         string
	Version             string
	VertexTypes         map[string]*VertexTypeSchema
	EdgeTypes           map[string]*EdgeTypeSchema
	Constraints         []SchemaConstraint
	ObjectStorageConfig *ObjectStorageConfig
	HybridStorageConfig *HybridStorageConfig
	Metadata            map[string]interface{}
}

// New creates an empty schema.
func New(id, name, version string) *GraphSchema {
	return &GraphSchema{
		ID:          id,
		Name:        name,
		Version:     version,
		VertexTypes: make(map[string]*VertexTypeSchema),
		EdgeTypes:   make(map[string]*EdgeTypeSchema),
		Metadata:    make(map[string]interface{}),
	}
}

// Default returns the built-in default schema.
func Default() *GraphSchema {
	return New("default", "Default Graph Schema", "1.0.0")
}

func (s *GraphSchema) AddVertexType(vt *VertexTypeSchema) { s.VertexTypes[vt.Name] = vt }
func (s *GraphSchema) AddEdgeType(et *EdgeTypeSchema)     { s.EdgeTypes[et.Name] = et }

func (s *GraphSchema) GetVertexType(name string) (*VertexTypeSchema, bool) {
	vt, ok := s.VertexTypes[name]
	return vt, ok
}

func (s *GraphSchema) GetEdgeType(name string) (*EdgeTypeSchema, bool) {
	et, ok := s.EdgeTypes[name]
	return et, ok
}

func (s *GraphSchema) RemoveVertexType(name string) (*VertexTypeSchema, bool) {
	vt, ok := s.VertexTypes[name]
	delete(s.VertexTypes, name)
	return vt, ok
}

func (s *GraphSchema) RemoveEdgeType(name string) (*EdgeTypeSchema, bool) {
	et, ok := s.EdgeTypes[name]
	delete(s.EdgeTypes, name)
	return et, ok
}

func (s *GraphSchema) VertexTypeNames() []string {
	out := make([]string, 0, len(s.VertexTypes))
	for name := range s.VertexTypes {
		out = append(out, name)
	}
	return out
}

func (s *GraphSchema) EdgeTypeNames() []string {
	out := make([]string, 0, len(s.EdgeTypes))
	for name := range s.EdgeTypes {
		out = append(out, name)
	}
	return out
}

func (s *GraphSchema) HasVertexType(name string) bool { _, ok := s.VertexTypes[name]; return ok }
func (s *GraphSchema) HasEdgeType(name string) bool   { _, ok := s.EdgeTypes[name]; return ok }

func (s *GraphSchema) SetObjectStorageConfig(c ObjectStorageConfig) { s.ObjectStorageConfig = &c }
func (s *GraphSchema) HasObjectStorageConfig() bool                { return s.ObjectStorageConfig != nil }

func (s *GraphSchema) SetHybridStorageConfig(c HybridStorageConfig) { s.HybridStorageConfig = &c }
func (s *GraphSchema) HasHybridStorageConfig() bool                { return s.HybridStorageConfig != nil }

// Statistics summarizes a schema's size for listings and logs.
type Statistics struct {
	VertexTypes     int
	EdgeTypes       int
	Constraints     int
	TotalProperties int
}

func (s *GraphSchema) Statistics() Statistics {
	total := 0
	for _, vt := range s.VertexTypes {
		total += len(vt.Properties)
	}
	for _, et := range s.EdgeTypes {
		total += len(et.Properties)
	}
	return Statistics{
		VertexTypes:     len(s.VertexTypes),
		EdgeTypes:       len(s.EdgeTypes),
		Constraints:     len(s.Constraints),
		TotalProperties: total,
	}
}
