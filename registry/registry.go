// Package registry maintains the named storage-backend factories the
// engine composes its hybrid tier from. Tier composition is
// declarative — configuration names a hot backend, a cold backend and
// an optional cache — and this registry resolves those names into
// constructed backends, each carrying a capability descriptor callers
// can query before routing data to it.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"kotobadb.dev/kotobadb/storage"
)

// Factory constructs a backend from backend-specific options (e.g.
// the bolt file path, the remote base URL).
type Factory func(opts map[string]string) (storage.Backend, error)

// Descriptor describes a registered backend kind: its capabilities
// and which options its factory understands.
type Descriptor struct {
	Name         string
	Description  string
	Capabilities storage.Capabilities
	Options      []string
}

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	desc      map[string]Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		desc:      make(map[string]Descriptor),
	}
}

// Register adds a backend kind. Re-registering a name replaces the
// previous factory.
func (r *Registry) Register(desc Descriptor, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[desc.Name] = factory
	r.desc[desc.Name] = desc
}

// Open constructs a backend by registered name.
func (r *Registry) Open(name string, opts map[string]string) (storage.Backend, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("registry: unknown backend %q (registered: %v)", name, r.Names())
	}
	return factory(opts)
}

// Describe returns a backend kind's descriptor.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.desc[name]
	return d, ok
}

// Names lists registered backend names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindByCapability returns the names of backends whose descriptor
// satisfies the predicate, e.g. "supports TTL" when composing a cache
// tier.
func (r *Registry) FindByCapability(match func(storage.Capabilities) bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, d := range r.desc {
		if match(d.Capabilities) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Default returns a registry pre-loaded with the built-in backends.
// The remote backend is not registered here since it needs a live
// client; hosts register it themselves when configured.
func Default() *Registry {
	r := New()
	r.Register(Descriptor{
		Name:        "memory",
		Description: "ordered in-memory map, non-durable",
	}, func(map[string]string) (storage.Backend, error) {
		return storage.NewMemory(), nil
	})
	r.Register(Descriptor{
		Name:        "bolt",
		Description: "persistent bbolt-backed store",
		Options:     []string{"path"},
	}, func(opts map[string]string) (storage.Backend, error) {
		path := opts["path"]
		if path == "" {
			path = "kotobadb.db"
		}
		return storage.OpenBolt(path)
	})
	return r
}
