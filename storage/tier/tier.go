// Package tier implements the L1 hybrid tiering layer: routing of
// keys across a hot store, a cold store, and an optional cache, by a
// pluggable routing policy. Configuration names the backends; they are
// resolved and composed at construction.
package tier

import (
	"bytes"
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/storage"
)

// Target names which sub-store a key should be routed to.
type Target int

const (
	Hot Target = iota
	Cold
)

// AccessMeta carries the information a RoutingPolicy needs to decide
// placement: how large the value is and when the key was last
// touched.
type AccessMeta struct {
	ValueSize  int
	LastAccess time.Time
	AccessCount int
}

// RoutingPolicy decides, for a key about to be written or promoted,
// which tier it belongs in.
type RoutingPolicy interface {
	Route(key []byte, meta AccessMeta) Target
	// OnAccess records an access for policies that track recency or
	// frequency (AgeBased, FrequencyBased); a no-op for SizeBased and
	// Manual.
	OnAccess(key []byte)
}

// CacheBackend is the optional fast-path in front of hot/cold,
// typically Redis-backed (storage/tier/redis_cache.go).
type CacheBackend interface {
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Set(ctx context.Context, key, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key []byte) error
	// DeletePrefix invalidates every cached key sharing prefix, used
	// on transaction commit to drop entries whose keys overlap the
	// write-set's prefix ranges.
	DeletePrefix(ctx context.Context, prefix []byte) error
}

// Tier composes hot, cold, and an optional cache behind the Backend
// contract, so callers above L1 never know tiering exists.
type Tier struct {
	hot, cold storage.Backend
	cache     CacheBackend
	policy    RoutingPolicy
	log       *logrus.Entry
}

// New constructs a Tier. cache may be nil, meaning no cache tier is
// configured.
func New(hot, cold storage.Backend, cache CacheBackend, policy RoutingPolicy) *Tier {
	return &Tier{
		hot:    hot,
		cold:   cold,
		cache:  cache,
		policy: policy,
		log:    logrus.WithField("component", "tier"),
	}
}

// Put always writes to hot; a background migrator later demotes cold
// candidates per policy (see migrator.go). Writes fail closed: a
// backend error is returned, never swallowed.
func (t *Tier) Put(ctx context.Context, key, value []byte) error {
	if err := t.hot.Put(ctx, key, value); err != nil {
		return common.Wrap(common.KindStorage, "tier-put", err)
	}
	// Drop any cached copy so the next read sees the committed value;
	// the cache repopulates on read, never on write.
	if t.cache != nil {
		if err := t.cache.Delete(ctx, key); err != nil {
			t.log.WithError(err).Warn("cache invalidation on write failed")
		}
	}
	t.policy.OnAccess(key)
	return nil
}

// Get consults cache, then hot, then cold, promoting cold hits to hot
// per policy. A tier's unavailability degrades gracefully: the read
// fails open to the next tier rather than aborting, and is logged at
// Warn.
func (t *Tier) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if t.cache != nil {
		if v, ok, err := t.cache.Get(ctx, key); err == nil && ok {
			return v, true, nil
		} else if err != nil {
			t.log.WithError(err).Warn("cache tier unavailable, falling through to hot")
		}
	}

	v, ok, err := t.hot.Get(ctx, key)
	if err != nil {
		t.log.WithError(err).Warn("hot tier unavailable, falling through to cold")
	} else if ok {
		t.fillCache(ctx, key, v)
		t.policy.OnAccess(key)
		return v, true, nil
	}

	v, ok, err = t.cold.Get(ctx, key)
	if err != nil {
		return nil, false, common.Wrap(common.KindStorage, "tier-get", storage.ErrBackendUnavailable)
	}
	if ok && t.policy.Route(key, AccessMeta{ValueSize: len(v)}) == Hot {
		// Promote: best-effort, a promotion failure does not fail the read.
		if err := t.hot.Put(ctx, key, v); err != nil {
			t.log.WithError(err).Warn("promotion to hot tier failed")
		}
	}
	if ok {
		t.fillCache(ctx, key, v)
	}
	t.policy.OnAccess(key)
	return v, ok, nil
}

// fillCache populates the cache on a successful read, best-effort.
func (t *Tier) fillCache(ctx context.Context, key, value []byte) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Set(ctx, key, value, cacheTTL); err != nil {
		t.log.WithError(err).Warn("cache fill failed")
	}
}

// cacheTTL bounds staleness from out-of-band cold-tier changes; reads
// of committed writes are already kept coherent by write-path
// invalidation.
const cacheTTL = 5 * time.Minute

func (t *Tier) Delete(ctx context.Context, key []byte) error {
	errHot := t.hot.Delete(ctx, key)
	errCold := t.cold.Delete(ctx, key)
	if t.cache != nil {
		_ = t.cache.Delete(ctx, key)
	}
	if errHot != nil {
		return common.Wrap(common.KindStorage, "tier-delete", errHot)
	}
	if errCold != nil {
		return common.Wrap(common.KindStorage, "tier-delete", errCold)
	}
	return nil
}

// InvalidateWriteSet drops cache entries overlapping a committed
// transaction's write-set prefixes, so the cache never serves stale
// reads for committed writes.
func (t *Tier) InvalidateWriteSet(ctx context.Context, prefixes [][]byte) {
	if t.cache == nil {
		return
	}
	for _, p := range prefixes {
		if err := t.cache.DeletePrefix(ctx, p); err != nil {
			t.log.WithError(err).Warn("cache invalidation failed")
		}
	}
}

// Scan merges hot and cold entries under prefix in ascending key
// order; when both tiers hold a key, the hot entry wins since writes
// land there first. Scans bypass the cache, which only serves
// point reads.
func (t *Tier) Scan(ctx context.Context, prefix []byte) (storage.Iterator, error) {
	hotIt, err := t.hot.Scan(ctx, prefix)
	if err != nil {
		t.log.WithError(err).Warn("hot tier scan unavailable, serving cold only")
		hotIt = nil
	}
	coldIt, err := t.cold.Scan(ctx, prefix)
	if err != nil {
		if hotIt == nil {
			return nil, common.Wrap(common.KindStorage, "tier-scan", storage.ErrBackendUnavailable)
		}
		t.log.WithError(err).Warn("cold tier scan unavailable, serving hot only")
		coldIt = nil
	}
	return newMergeIterator(hotIt, coldIt), nil
}

// Capabilities reports the intersection of the two tiers' limits: a
// value must fit in whichever tier the policy routes it to, so the
// tighter bound governs.
func (t *Tier) Capabilities() storage.Capabilities {
	hot, cold := t.hot.Capabilities(), t.cold.Capabilities()
	caps := storage.Capabilities{SupportsTTL: hot.SupportsTTL && cold.SupportsTTL}
	caps.MaxKeySize = minNonZero(hot.MaxKeySize, cold.MaxKeySize)
	caps.MaxValueSize = minNonZero(hot.MaxValueSize, cold.MaxValueSize)
	return caps
}

func minNonZero(a, b int) int {
	switch {
	case a == 0:
		return b
	case b == 0:
		return a
	case a < b:
		return a
	default:
		return b
	}
}

// Close closes both tiers.
func (t *Tier) Close() error {
	errHot := t.hot.Close()
	errCold := t.cold.Close()
	if errHot != nil {
		return errHot
	}
	return errCold
}

// mergeIterator interleaves two ordered iterators, preferring the
// primary (hot) side on equal keys.
type mergeIterator struct {
	primary, secondary storage.Iterator
	pHas, sHas         bool
	started            bool
	current            storage.Entry
	err                error
}

func newMergeIterator(primary, secondary storage.Iterator) *mergeIterator {
	return &mergeIterator{primary: primary, secondary: secondary}
}

func (m *mergeIterator) advancePrimary() {
	if m.primary != nil {
		m.pHas = m.primary.Next()
	}
}

func (m *mergeIterator) advanceSecondary() {
	if m.secondary != nil {
		m.sHas = m.secondary.Next()
	}
}

func (m *mergeIterator) Next() bool {
	if !m.started {
		m.started = true
		m.advancePrimary()
		m.advanceSecondary()
	}
	for {
		switch {
		case !m.pHas && !m.sHas:
			return false
		case m.pHas && !m.sHas:
			m.current = m.primary.Entry()
			m.advancePrimary()
			return true
		case !m.pHas && m.sHas:
			m.current = m.secondary.Entry()
			m.advanceSecondary()
			return true
		}

		pk, sk := m.primary.Entry().Key, m.secondary.Entry().Key
		switch cmp := bytes.Compare(pk, sk); {
		case cmp < 0:
			m.current = m.primary.Entry()
			m.advancePrimary()
			return true
		case cmp > 0:
			m.current = m.secondary.Entry()
			m.advanceSecondary()
			return true
		default:
			// Same key in both tiers: hot wins, cold entry skipped.
			m.current = m.primary.Entry()
			m.advancePrimary()
			m.advanceSecondary()
			return true
		}
	}
}

func (m *mergeIterator) Entry() storage.Entry { return m.current }

func (m *mergeIterator) Err() error {
	if m.primary != nil {
		if err := m.primary.Err(); err != nil {
			return err
		}
	}
	if m.secondary != nil {
		return m.secondary.Err()
	}
	return nil
}

func (m *mergeIterator) Close() error {
	if m.primary != nil {
		m.primary.Close()
	}
	if m.secondary != nil {
		m.secondary.Close()
	}
	return nil
}
