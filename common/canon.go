package common

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sort"
)

// CID is a content identifier: the SHA-256 digest of an entity's
// canonical serialization.
type CID [32]byte

func (c CID) String() string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(c)*2)
	for i, b := range c {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

// IsZero reports whether c is the zero CID (used to represent
// "not yet hashed").
func (c CID) IsZero() bool {
	return c == CID{}
}

// Encoder builds a canonical, deterministic byte encoding of a value:
// sorted map keys, fixed-width numeric encoding, length-prefixed
// strings and byte slices. Two semantically equal values always
// produce identical bytes, which is the property CIDs depend on; this
// is deliberately not encoding/json, whose map key order and number
// formatting are not guaranteed stable across versions.
type Encoder struct {
	buf []byte
}

func NewEncoder() *Encoder { return &Encoder{} }

func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) CID() CID { return sha256.Sum256(e.buf) }

func (e *Encoder) Uint64(v uint64) *Encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *Encoder) Int64(v int64) *Encoder {
	return e.Uint64(uint64(v))
}

func (e *Encoder) Float64(v float64) *Encoder {
	return e.Uint64(math.Float64bits(v))
}

func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
	return e
}

func (e *Encoder) ByteString(v []byte) *Encoder {
	e.Uint64(uint64(len(v)))
	e.buf = append(e.buf, v...)
	return e
}

func (e *Encoder) String(v string) *Encoder {
	return e.ByteString([]byte(v))
}

// StringMap appends a map's entries in sorted-key order so the
// encoding is independent of Go's randomized map iteration.
func (e *Encoder) StringMap(m map[string]string) *Encoder {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.Uint64(uint64(len(keys)))
	for _, k := range keys {
		e.String(k)
		e.String(m[k])
	}
	return e
}
