package tier

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// AgeBasedPolicy demotes keys to Cold once they have gone unaccessed
// for longer than maxAge. Accesses are tracked in a plain map guarded
// by a mutex; the background migrator (migrator.go) periodically walks
// the hot tier and asks this policy whether each key should move.
type AgeBasedPolicy struct {
	mu         sync.Mutex
	lastAccess map[string]time.Time
	maxAge     time.Duration
	now        func() time.Time
}

// NewAgeBasedPolicy builds a policy that demotes keys idle longer than
// maxAge.
func NewAgeBasedPolicy(maxAge time.Duration) *AgeBasedPolicy {
	return &AgeBasedPolicy{
		lastAccess: make(map[string]time.Time),
		maxAge:     maxAge,
		now:        time.Now,
	}
}

func (p *AgeBasedPolicy) Route(key []byte, meta AccessMeta) Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.lastAccess[string(key)]
	if !ok {
		return Hot
	}
	if p.now().Sub(t) > p.maxAge {
		return Cold
	}
	return Hot
}

func (p *AgeBasedPolicy) OnAccess(key []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastAccess[string(key)] = p.now()
}

// FrequencyBasedPolicy keeps the N most-recently-used keys hot via an
// LRU cache from github.com/hashicorp/golang-lru/v2 as the recency
// tracker; eviction from the LRU is the demotion signal.
type FrequencyBasedPolicy struct {
	mu  sync.Mutex
	lru *lru.Cache[string, struct{}]
}

// NewFrequencyBasedPolicy builds a policy backed by an LRU of the
// given capacity: keys present in the LRU are Hot, evicted keys route
// to Cold on their next Route call.
func NewFrequencyBasedPolicy(capacity int) (*FrequencyBasedPolicy, error) {
	c, err := lru.New[string, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &FrequencyBasedPolicy{lru: c}, nil
}

func (p *FrequencyBasedPolicy) Route(key []byte, meta AccessMeta) Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lru.Contains(string(key)) {
		return Hot
	}
	return Cold
}

func (p *FrequencyBasedPolicy) OnAccess(key []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lru.Add(string(key), struct{}{})
}

// SizeBasedPolicy routes values larger than threshold straight to
// Cold, on the assumption that large blobs (vertex/edge payloads with
// big property maps) are colder by nature and shouldn't crowd the hot
// tier. The threshold comes from the caller (the CLI passes
// config.StorageConfig.SizeThresholdBytes).
type SizeBasedPolicy struct {
	threshold int
}

func NewSizeBasedPolicy(thresholdBytes int) *SizeBasedPolicy {
	return &SizeBasedPolicy{threshold: thresholdBytes}
}

func (p *SizeBasedPolicy) Route(key []byte, meta AccessMeta) Target {
	if meta.ValueSize > p.threshold {
		return Cold
	}
	return Hot
}

func (p *SizeBasedPolicy) OnAccess(key []byte) {}

// ManualPolicy routes purely by an explicit, caller-supplied key-set:
// keys present in cold are always Cold, everything else is Hot. Used
// by operators pinning specific vertex/edge types to cold storage via
// configuration rather than inferred heuristics.
type ManualPolicy struct {
	mu   sync.RWMutex
	cold map[string]struct{}
}

func NewManualPolicy(coldKeys ...string) *ManualPolicy {
	m := &ManualPolicy{cold: make(map[string]struct{}, len(coldKeys))}
	for _, k := range coldKeys {
		m.cold[k] = struct{}{}
	}
	return m
}

func (p *ManualPolicy) Route(key []byte, meta AccessMeta) Target {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.cold[string(key)]; ok {
		return Cold
	}
	return Hot
}

func (p *ManualPolicy) OnAccess(key []byte) {}

// Pin marks key as belonging in Cold regardless of other signals.
func (p *ManualPolicy) Pin(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cold[key] = struct{}{}
}
