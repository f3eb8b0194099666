package graph

import "time"

// toWireProps converts the typed Value map into the plain
// interface{} map JSON encoding needs, preserving enough tag
// information (via a small wrapper) to round-trip Kind on decode.
func toWireProps(props map[string]Value) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = toWireValue(v)
	}
	return out
}

func toWireValue(v Value) map[string]interface{} {
	switch v.Kind {
	case KindNull:
		return map[string]interface{}{"k": "null"}
	case KindBool:
		return map[string]interface{}{"k": "bool", "v": v.Bool}
	case KindInt:
		return map[string]interface{}{"k": "int", "v": v.Int}
	case KindFloat:
		return map[string]interface{}{"k": "float", "v": v.Float}
	case KindString:
		return map[string]interface{}{"k": "string", "v": v.Str}
	case KindDateTime:
		return map[string]interface{}{"k": "datetime", "v": v.DateTime.Format(time.RFC3339Nano)}
	case KindArray:
		arr := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			arr[i] = toWireValue(e)
		}
		return map[string]interface{}{"k": "array", "v": arr}
	case KindMap:
		m := make(map[string]interface{}, len(v.Map))
		for k, e := range v.Map {
			m[k] = toWireValue(e)
		}
		return map[string]interface{}{"k": "map", "v": m}
	default:
		return map[string]interface{}{"k": "null"}
	}
}

func fromWireProps(raw map[string]interface{}) map[string]Value {
	out := make(map[string]Value, len(raw))
	for k, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out[k] = fromWireValue(m)
		}
	}
	return out
}

func fromWireValue(raw map[string]interface{}) Value {
	kind, _ := raw["k"].(string)
	switch kind {
	case "bool":
		b, _ := raw["v"].(bool)
		return BoolValue(b)
	case "int":
		f, _ := raw["v"].(float64)
		return IntValue(int64(f))
	case "float":
		f, _ := raw["v"].(float64)
		return FloatValue(f)
	case "string":
		s, _ := raw["v"].(string)
		return StringValue(s)
	case "datetime":
		s, _ := raw["v"].(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return Null()
		}
		return TimeValue(t)
	case "array":
		arr, _ := raw["v"].([]interface{})
		vals := make([]Value, 0, len(arr))
		for _, e := range arr {
			if m, ok := e.(map[string]interface{}); ok {
				vals = append(vals, fromWireValue(m))
			}
		}
		return ArrayValue(vals)
	case "map":
		m, _ := raw["v"].(map[string]interface{})
		out := make(map[string]Value, len(m))
		for k, e := range m {
			if em, ok := e.(map[string]interface{}); ok {
				out[k] = fromWireValue(em)
			}
		}
		return MapValue(out)
	default:
		return Null()
	}
}
