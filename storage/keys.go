package storage

import "bytes"

// Tag prefixes for the canonical storage key layout.
const (
	TagVertex      = "V:"
	TagEdge        = "E:"
	TagIndex       = "IX:"
	TagTransaction = "TX:"
	TagSchema      = "SC:"
	TagCheckpoint  = "CK:"
)

// VertexKey builds the storage key for a vertex id.
func VertexKey(id string) []byte {
	return []byte(TagVertex + id)
}

// EdgeKey builds the storage key for an edge id.
func EdgeKey(id string) []byte {
	return []byte(TagEdge + id)
}

// IndexKey builds a secondary index key of the form
// IX:<property>:<value>:<id>, supporting both equality lookup (exact
// key match) and ordered range scans (prefix up to the value).
func IndexKey(property, value, id string) []byte {
	return []byte(TagIndex + property + ":" + value + ":" + id)
}

// IndexPrefix builds the scan prefix for all entries of a given
// property (optionally narrowed to a value), used for equality lookup
// and range scans over IX: keys.
func IndexPrefix(property string, value string) []byte {
	if value == "" {
		return []byte(TagIndex + property + ":")
	}
	return []byte(TagIndex + property + ":" + value + ":")
}

// TransactionKey builds the storage key for a transaction by its
// canonical hex-encoded TxRef.
func TransactionKey(txRef string) []byte {
	return []byte(TagTransaction + txRef)
}

// SchemaKey builds the storage key for a schema by its CID.
func SchemaKey(cid string) []byte {
	return []byte(TagSchema + cid)
}

// CheckpointKey builds the storage key for a replay checkpoint.
func CheckpointKey(id string) []byte {
	return []byte(TagCheckpoint + id)
}

// HasPrefix reports whether key carries the given tag prefix.
func HasPrefix(key []byte, prefix string) bool {
	return bytes.HasPrefix(key, []byte(prefix))
}

// IndexValueOf extracts the indexed value from an index key of the
// form IX:<property>:<value>:<id>, reporting false if the key is not
// an index entry for property.
func IndexValueOf(key []byte, property string) (string, bool) {
	prefix := TagIndex + property + ":"
	s := string(key)
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	rest := s[len(prefix):]
	// value and id are separated by the last ':'; values may themselves
	// contain ':' but ids never do (hex CIDs).
	for i := len(rest) - 1; i >= 0; i-- {
		if rest[i] == ':' {
			return rest[:i], true
		}
	}
	return "", false
}
