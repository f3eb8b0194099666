// Package graph implements the L2 graph projection layer: Vertex and
// Edge views materialized over the L0/L1 key-value tiers, with
// secondary-index maintenance and traversal.
package graph

import (
	"fmt"
	"sort"
	"time"
)

// Kind identifies which variant of the Value sum type is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDateTime
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDateTime:
		return "datetime"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is the tagged-union property value type: every
// vertex/edge property is one of these eight variants. Go has no
// native sum type, so Kind discriminates which field is meaningful.
type Value struct {
	Kind     Kind
	Bool     bool
	Int      int64
	Float    float64
	Str      string
	DateTime time.Time
	Array    []Value
	Map      map[string]Value
}

func Null() Value                    { return Value{Kind: KindNull} }
func BoolValue(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value         { return Value{Kind: KindInt, Int: i} }
func FloatValue(f float64) Value     { return Value{Kind: KindFloat, Float: f} }
func StringValue(s string) Value     { return Value{Kind: KindString, Str: s} }
func TimeValue(t time.Time) Value    { return Value{Kind: KindDateTime, DateTime: t} }
func ArrayValue(vs []Value) Value    { return Value{Kind: KindArray, Array: vs} }
func MapValue(m map[string]Value) Value { return Value{Kind: KindMap, Map: m} }

// String renders a Value for logging/debugging, not for wire encoding.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.Str
	case KindDateTime:
		return v.DateTime.Format(time.RFC3339Nano)
	case KindArray:
		return fmt.Sprintf("%v", v.Array)
	case KindMap:
		return fmt.Sprintf("%v", v.Map)
	default:
		return "<unknown>"
	}
}

// Equal reports deep equality between two Values, used by index
// maintenance to detect unchanged properties and by the query executor
// for equality predicates.
func (v Value) Equal(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == other.Bool
	case KindInt:
		return v.Int == other.Int
	case KindFloat:
		return v.Float == other.Float
	case KindString:
		return v.Str == other.Str
	case KindDateTime:
		return v.DateTime.Equal(other.DateTime)
	case KindArray:
		if len(v.Array) != len(other.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(other.Array[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, mv := range v.Map {
			ov, ok := other.Map[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IndexableString renders a Value as the canonical string used inside
// a secondary-index key (storage.IndexKey); only scalar kinds are
// indexable, so Null, Array and Map values report false and get no
// index entry.
func (v Value) IndexableString() (string, bool) {
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%t", v.Bool), true
	case KindInt:
		return fmt.Sprintf("%020d", v.Int), true // zero-padded for lexicographic ordering
	case KindFloat:
		return fmt.Sprintf("%020.10f", v.Float), true
	case KindString:
		return v.Str, true
	case KindDateTime:
		return v.DateTime.UTC().Format(time.RFC3339Nano), true
	default:
		return "", false
	}
}

// sortedKeys returns a map's keys in deterministic order, used
// whenever property maps must be iterated reproducibly (index
// maintenance, canonical encoding).
func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FromInterface converts a decoded-JSON value (string, float64, bool,
// nil, []interface{}, map[string]interface{}) into a Value, the bridge
// from HTTP request parameters to typed query parameters. A JSON
// number with no fractional part becomes an Int so equality against
// integer properties behaves as written.
func FromInterface(raw interface{}) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return BoolValue(t)
	case string:
		return StringValue(t)
	case int:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t))
		}
		return FloatValue(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = FromInterface(e)
		}
		return ArrayValue(items)
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = FromInterface(e)
		}
		return MapValue(m)
	default:
		return Null()
	}
}

// Interface converts a Value back to a plain JSON-friendly form.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindDateTime:
		return v.DateTime.Format(time.RFC3339Nano)
	case KindArray:
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.Map))
		for k, e := range v.Map {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}
