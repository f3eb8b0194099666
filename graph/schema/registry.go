package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/storage"
)

// Backend is the narrow storage contract the registry needs to persist
// schemas. Schemas are keyed by their CID and never overwritten, so
// evolution always produces a new key.
type Backend interface {
	Put(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
}

// Registry holds the schemas known to an engine instance and validates
// entities against them on the write path. It is stateless beyond the
// schemas it holds; durability is delegated to the storage backend.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*GraphSchema // by schema ID
	byCID   map[common.CID]*GraphSchema
	backend Backend
}

// NewRegistry creates a registry. backend may be nil for purely
// in-memory use (tests, ephemeral engines).
func NewRegistry(backend Backend) *Registry {
	return &Registry{
		schemas: make(map[string]*GraphSchema),
		byCID:   make(map[common.CID]*GraphSchema),
		backend: backend,
	}
}

// CID computes the content identifier of a schema's canonical
// encoding: sorted type names, sorted property names, fixed-width
// numerics.
func (s *GraphSchema) CID() common.CID {
	enc := common.NewEncoder()
	enc.String(s.ID).String(s.Name).String(s.Version)
	names := s.VertexTypeNames()
	sort.Strings(names)
	enc.Uint64(uint64(len(names)))
	for _, n := range names {
		vt := s.VertexTypes[n]
		enc.String(n)
		encodeTypeProps(enc, vt.Properties, vt.RequiredProperties)
	}
	names = s.EdgeTypeNames()
	sort.Strings(names)
	enc.Uint64(uint64(len(names)))
	for _, n := range names {
		et := s.EdgeTypes[n]
		enc.String(n).Bool(et.Directed)
		encodeStrings(enc, et.SourceTypes)
		encodeStrings(enc, et.TargetTypes)
		encodeTypeProps(enc, et.Properties, et.RequiredProperties)
	}
	return enc.CID()
}

func encodeStrings(enc *common.Encoder, ss []string) {
	sorted := append([]string(nil), ss...)
	sort.Strings(sorted)
	enc.Uint64(uint64(len(sorted)))
	for _, s := range sorted {
		enc.String(s)
	}
}

func encodeTypeProps(enc *common.Encoder, props map[string]*PropertySchema, required []string) {
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)
	enc.Uint64(uint64(len(names)))
	for _, n := range names {
		p := props[n]
		enc.String(n).Uint64(uint64(p.Type.Kind)).Bool(p.Required)
		enc.Uint64(uint64(len(p.Constraints)))
	}
	encodeStrings(enc, required)
}

// Register validates the schema's internal consistency, persists it
// under its CID, and makes its types available for lookups. A schema
// whose consistency check fails is rejected whole.
func (r *Registry) Register(ctx context.Context, s *GraphSchema) (common.CID, error) {
	result := s.ValidateSchema()
	if !result.IsValid {
		return common.CID{}, common.Wrap(common.KindSchema, "register",
			fmt.Errorf("schema %q failed validation: %s", s.ID, result.Errors[0].Message))
	}
	cid := s.CID()

	r.mu.Lock()
	r.schemas[s.ID] = s
	r.byCID[cid] = s
	r.mu.Unlock()

	if r.backend != nil {
		data, err := encodeSchema(s)
		if err != nil {
			return common.CID{}, common.Wrap(common.KindSchema, "register", err)
		}
		// Never overwrite: identical content hashes to the same key,
		// so a re-put of the same schema is a no-op in effect.
		if err := r.backend.Put(ctx, storage.SchemaKey(cid.String()), data); err != nil {
			return common.CID{}, err
		}
	}
	return cid, nil
}

// Get returns the schema registered under id.
func (r *Registry) Get(id string) (*GraphSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[id]
	return s, ok
}

// GetByCID returns the schema whose canonical encoding hashes to cid.
func (r *Registry) GetByCID(cid common.CID) (*GraphSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byCID[cid]
	return s, ok
}

// lookupVertexType searches registered schemas for a vertex label.
func (r *Registry) lookupVertexType(label string) (*VertexTypeSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.schemas {
		if vt, ok := s.GetVertexType(label); ok {
			return vt, true
		}
	}
	return nil, false
}

func (r *Registry) lookupEdgeType(label string) (*EdgeTypeSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.schemas {
		if et, ok := s.GetEdgeType(label); ok {
			return et, true
		}
	}
	return nil, false
}

// ValidateVertex checks v against the registered schema for its label.
// A label with no registered schema passes: schemas are opt-in per
// label, not mandatory graph-wide.
func (r *Registry) ValidateVertex(v graph.Vertex) error {
	vt, ok := r.lookupVertexType(v.Label)
	if !ok {
		return nil
	}
	for _, req := range vt.RequiredProperties {
		if _, ok := v.Properties[req]; !ok {
			return common.Wrap(common.KindSchema, "validate-vertex",
				fmt.Errorf("vertex %s: missing required property %q for label %q", v.ID, req, v.Label))
		}
	}
	for name, val := range v.Properties {
		ps, ok := vt.Properties[name]
		if !ok {
			continue
		}
		if err := checkPropertyValue(ps, val); err != nil {
			return common.Wrap(common.KindSchema, "validate-vertex",
				fmt.Errorf("vertex %s, property %q: %w", v.ID, name, err))
		}
	}
	return nil
}

// ValidateEdge checks e and its resolved endpoint labels against the
// registered schema for e's label.
func (r *Registry) ValidateEdge(e graph.Edge, sourceLabel, targetLabel string) error {
	et, ok := r.lookupEdgeType(e.Label)
	if !ok {
		return nil
	}
	if len(et.SourceTypes) > 0 && !containsString(et.SourceTypes, sourceLabel) {
		return common.Wrap(common.KindSchema, "validate-edge",
			fmt.Errorf("edge %s: source label %q not allowed for edge type %q", e.ID, sourceLabel, e.Label))
	}
	if len(et.TargetTypes) > 0 && !containsString(et.TargetTypes, targetLabel) {
		return common.Wrap(common.KindSchema, "validate-edge",
			fmt.Errorf("edge %s: target label %q not allowed for edge type %q", e.ID, targetLabel, e.Label))
	}
	for _, req := range et.RequiredProperties {
		if _, ok := e.Properties[req]; !ok {
			return common.Wrap(common.KindSchema, "validate-edge",
				fmt.Errorf("edge %s: missing required property %q for label %q", e.ID, req, e.Label))
		}
	}
	for name, val := range e.Properties {
		ps, ok := et.Properties[name]
		if !ok {
			continue
		}
		if err := checkPropertyValue(ps, val); err != nil {
			return common.Wrap(common.KindSchema, "validate-edge",
				fmt.Errorf("edge %s, property %q: %w", e.ID, name, err))
		}
	}
	return nil
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

// checkPropertyValue enforces a property's declared type and each of
// its constraints against a concrete value.
func checkPropertyValue(ps *PropertySchema, val graph.Value) error {
	if err := checkValueType(ps.Type, val); err != nil {
		return err
	}
	for _, c := range ps.Constraints {
		if err := checkConstraint(c, val); err != nil {
			return err
		}
	}
	return nil
}

func checkValueType(t PropertyType, val graph.Value) error {
	if val.Kind == graph.KindNull {
		return nil
	}
	switch t.Kind {
	case TypeString:
		if val.Kind != graph.KindString {
			return fmt.Errorf("expected string, got %s", val.Kind)
		}
	case TypeInteger:
		if val.Kind != graph.KindInt {
			return fmt.Errorf("expected integer, got %s", val.Kind)
		}
	case TypeFloat:
		if val.Kind != graph.KindFloat && val.Kind != graph.KindInt {
			return fmt.Errorf("expected float, got %s", val.Kind)
		}
	case TypeBoolean:
		if val.Kind != graph.KindBool {
			return fmt.Errorf("expected boolean, got %s", val.Kind)
		}
	case TypeDateTime:
		if val.Kind != graph.KindDateTime {
			return fmt.Errorf("expected datetime, got %s", val.Kind)
		}
	case TypeArray:
		if val.Kind != graph.KindArray {
			return fmt.Errorf("expected array, got %s", val.Kind)
		}
		if t.Elem != nil {
			for i, elem := range val.Array {
				if err := checkValueType(*t.Elem, elem); err != nil {
					return fmt.Errorf("element %d: %w", i, err)
				}
			}
		}
	case TypeMap:
		if val.Kind != graph.KindMap {
			return fmt.Errorf("expected map, got %s", val.Kind)
		}
	case TypeJSON:
		// JSON accepts any value kind.
	}
	return nil
}

func checkConstraint(c PropertyConstraint, val graph.Value) error {
	switch c.Kind {
	case ConstraintMinLength:
		if val.Kind == graph.KindString && len(val.Str) < c.Length {
			return fmt.Errorf("length %d below minimum %d", len(val.Str), c.Length)
		}
	case ConstraintMaxLength:
		if val.Kind == graph.KindString && len(val.Str) > c.Length {
			return fmt.Errorf("length %d above maximum %d", len(val.Str), c.Length)
		}
	case ConstraintMinValue:
		if n, ok := numericValue(val); ok && n < float64(c.IntValue) {
			return fmt.Errorf("value %v below minimum %d", n, c.IntValue)
		}
	case ConstraintMaxValue:
		if n, ok := numericValue(val); ok && n > float64(c.IntValue) {
			return fmt.Errorf("value %v above maximum %d", n, c.IntValue)
		}
	case ConstraintPattern:
		if val.Kind == graph.KindString {
			re, err := regexp.Compile(c.Pattern)
			if err != nil {
				return fmt.Errorf("invalid pattern %q: %w", c.Pattern, err)
			}
			if !re.MatchString(val.Str) {
				return fmt.Errorf("value %q does not match pattern %q", val.Str, c.Pattern)
			}
		}
	case ConstraintEnum:
		for _, allowed := range c.EnumValues {
			if fmt.Sprint(allowed) == val.String() {
				return nil
			}
		}
		return fmt.Errorf("value %s not in allowed set", val.String())
	case ConstraintCustom:
		// Custom rules are named hooks resolved by the host; the
		// registry records them but does not evaluate them.
	}
	return nil
}

// encodeSchema serializes a schema for persistence. JSON is fine
// here: the storage key is the CID of the canonical encoding, not of
// these bytes, so JSON's map-order nondeterminism cannot shift the
// key.
func encodeSchema(s *GraphSchema) ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSchema restores a schema persisted by Register.
func DecodeSchema(data []byte) (*GraphSchema, error) {
	var s GraphSchema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func numericValue(v graph.Value) (float64, bool) {
	switch v.Kind {
	case graph.KindInt:
		return float64(v.Int), true
	case graph.KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}
