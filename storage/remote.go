package storage

import (
	"context"
	"sync"
)

// RemoteClient is the narrow operation set a network-backed L0
// backend delegates to. It is deliberately protocol-agnostic: the
// engine never assumes gRPC, HTTP, or a specific wire format, only
// that the remote service can perform these four operations.
type RemoteClient interface {
	Put(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Delete(ctx context.Context, key []byte) error
	// Scan returns entries with the given prefix in ascending
	// byte-lexicographic order; ordering is the remote service's
	// responsibility to honor.
	Scan(ctx context.Context, prefix []byte) ([]Entry, error)
	Close() error
}

// Remote adapts a RemoteClient to the Backend contract, translating
// connection failures into ErrBackendUnavailable so the hybrid tier
// can apply its fail-open/fail-closed policy uniformly across
// backends.
type Remote struct {
	mu     sync.Mutex
	client RemoteClient
	caps   Capabilities
}

// NewRemote wraps client as a Backend. caps describes limits the
// remote service advertises (size/TTL), used by callers such as the
// schema registry's hybrid storage hints.
func NewRemote(client RemoteClient, caps Capabilities) *Remote {
	return &Remote{client: client, caps: caps}
}

func (r *Remote) Put(ctx context.Context, key, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.client.Put(ctx, key, value); err != nil {
		return wrapErr("put", ErrBackendUnavailable)
	}
	return nil
}

func (r *Remote) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok, err := r.client.Get(ctx, key)
	if err != nil {
		return nil, false, wrapErr("get", ErrBackendUnavailable)
	}
	return v, ok, nil
}

func (r *Remote) Delete(ctx context.Context, key []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.client.Delete(ctx, key); err != nil {
		return wrapErr("delete", ErrBackendUnavailable)
	}
	return nil
}

func (r *Remote) Scan(ctx context.Context, prefix []byte) (Iterator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, err := r.client.Scan(ctx, prefix)
	if err != nil {
		return nil, wrapErr("scan", ErrBackendUnavailable)
	}
	return &sliceIterator{entries: entries, pos: -1}, nil
}

func (r *Remote) Capabilities() Capabilities { return r.caps }

func (r *Remote) Close() error {
	return r.client.Close()
}
