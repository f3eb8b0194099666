package graph

import "kotobadb.dev/kotobadb/common"

// Vertex is a content-addressed node: its ID is the CID of its
// canonical encoding (label + sorted properties), so two vertices with
// identical labels and properties collapse to the same ID.
type Vertex struct {
	ID         string
	Label      string
	Properties map[string]Value
}

// Edge is a content-addressed directed relationship between two
// vertex IDs, carrying its own label and properties.
type Edge struct {
	ID         string
	Label      string
	From       string
	To         string
	Properties map[string]Value
}

// CID computes the vertex's content address from its label and
// properties via the canonical encoder, so identical vertices always
// hash identically regardless of property insertion order.
func (v Vertex) CID() common.CID {
	enc := common.NewEncoder()
	enc.String(v.Label)
	enc.StringMap(encodeProps(v.Properties))
	return enc.CID()
}

// CID computes the edge's content address from its endpoints, label,
// and properties.
func (e Edge) CID() common.CID {
	enc := common.NewEncoder()
	enc.String(e.From)
	enc.String(e.To)
	enc.String(e.Label)
	enc.StringMap(encodeProps(e.Properties))
	return enc.CID()
}

// encodeProps flattens a property map into the string-keyed form
// common.Encoder.StringMap expects, rendering each Value through its
// debug String() form. This is sufficient for content-addressing
// purposes since StringMap already sorts keys and hashes the full
// byte sequence; it is not used for query-time equality (Value.Equal
// handles that precisely, including numeric/NaN edge cases).
func encodeProps(props map[string]Value) map[string]string {
	out := make(map[string]string, len(props))
	for _, k := range sortedKeys(props) {
		out[k] = props[k].String()
	}
	return out
}
