// Package storage implements the L0 key-value store: a uniform
// byte-keyed put/get/delete/scan contract over interchangeable
// backends (in-memory, persistent, remote). Storage keys carry a short
// tag prefix identifying the entity kind they hold (V: vertex, E:
// edge, IX: index, TX: transaction, CK: checkpoint); scans are
// prefix-bounded and return entries in ascending byte-lexicographic
// order.
package storage

import (
	"context"
	"errors"

	"kotobadb.dev/kotobadb/common"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// ErrBackendUnavailable is returned when a backend cannot service a
// request (connection loss, remote timeout, disk full). It surfaces
// through the hybrid tier as a degraded-tier signal rather than a
// silent data loss.
var ErrBackendUnavailable = errors.New("storage: backend unavailable")

// Capabilities describes backend-imposed limits, used by callers (in
// particular the hybrid tier and schema registry) to decide routing
// and validation without hardcoding per-backend assumptions.
type Capabilities struct {
	MaxKeySize   int  // 0 means unbounded
	MaxValueSize int  // 0 means unbounded
	SupportsTTL  bool
}

// Entry is a single (key, value) pair returned by a scan.
type Entry struct {
	Key   []byte
	Value []byte
}

// Iterator walks scan results in ascending byte-lexicographic key
// order. Callers must call Close when done, even after an error.
type Iterator interface {
	Next() bool
	Entry() Entry
	Err() error
	Close() error
}

// Backend is the L0 contract. All three provided implementations
// (Memory, Bolt, Remote) satisfy it; callers depend only on this
// interface, never on a concrete backend.
type Backend interface {
	Put(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Delete(ctx context.Context, key []byte) error
	Scan(ctx context.Context, prefix []byte) (Iterator, error)
	Capabilities() Capabilities
	Close() error
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return common.Wrap(common.KindStorage, op, err)
}
