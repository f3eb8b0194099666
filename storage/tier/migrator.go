package tier

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Migrator periodically walks the hot tier's keyspace and demotes
// entries the routing policy now classifies Cold, freeing the hot
// store for actively-used data. A ticker-driven loop with context
// cancellation.
type Migrator struct {
	tier     *Tier
	interval time.Duration
	log      *logrus.Entry
}

// NewMigrator builds a background demotion loop for t, scanning every
// interval.
func NewMigrator(t *Tier, interval time.Duration) *Migrator {
	return &Migrator{tier: t, interval: interval, log: logrus.WithField("component", "tier-migrator")}
}

// Run blocks, ticking until ctx is cancelled. Intended to be launched
// via `go migrator.Run(ctx)` from the service's startup path.
func (m *Migrator) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.sweep(ctx); err != nil {
				m.log.WithError(err).Warn("migration sweep failed")
			}
		}
	}
}

// sweep scans the hot tier and demotes any key the policy now routes
// to Cold, writing it to cold storage before removing it from hot so
// a crash mid-migration never loses data (write-then-delete, not
// delete-then-write).
func (m *Migrator) sweep(ctx context.Context) error {
	it, err := m.tier.hot.Scan(ctx, nil)
	if err != nil {
		return err
	}
	defer it.Close()

	var demoted int
	var demotedBytes uint64
	for it.Next() {
		e := it.Entry()
		if m.tier.policy.Route(e.Key, AccessMeta{ValueSize: len(e.Value)}) != Cold {
			continue
		}
		if err := m.tier.cold.Put(ctx, e.Key, e.Value); err != nil {
			m.log.WithError(err).WithField("key", string(e.Key)).Warn("demotion write to cold failed, skipping")
			continue
		}
		if err := m.tier.hot.Delete(ctx, e.Key); err != nil {
			m.log.WithError(err).WithField("key", string(e.Key)).Warn("demotion delete from hot failed")
			continue
		}
		demoted++
		demotedBytes += uint64(len(e.Value))
	}
	if err := it.Err(); err != nil {
		return err
	}
	if demoted > 0 {
		m.log.WithFields(logrus.Fields{
			"count": demoted,
			"bytes": humanize.Bytes(demotedBytes),
		}).Info("demoted keys to cold tier")
	}
	return nil
}
