package graph

import (
	"context"

	"github.com/sirupsen/logrus"
	"kotobadb.dev/kotobadb/storage"
)

// writeIndexEntries creates an IX: entry for every indexable scalar
// property, so equality and range queries over that property can scan
// a narrow prefix instead of every vertex.
func (s *Store) writeIndexEntries(ctx context.Context, id string, props map[string]Value) error {
	for _, prop := range sortedKeys(props) {
		strVal, ok := props[prop].IndexableString()
		if !ok {
			continue
		}
		key := storage.IndexKey(prop, strVal, id)
		if err := s.backend.Put(ctx, key, []byte(id)); err != nil {
			return err
		}
	}
	return nil
}

// removeIndexEntries drops the index entries for a vertex's current
// properties, used before overwrite or on delete. Errors are logged,
// not propagated: a stray index entry is a performance defect (a
// false-positive candidate the executor re-verifies), not a
// correctness one.
func (s *Store) removeIndexEntries(ctx context.Context, id string, props map[string]Value) {
	for _, prop := range sortedKeys(props) {
		strVal, ok := props[prop].IndexableString()
		if !ok {
			continue
		}
		key := storage.IndexKey(prop, strVal, id)
		if err := s.backend.Delete(ctx, key); err != nil {
			logrus.WithError(err).WithField("key", string(key)).Warn("stale index entry removal failed")
		}
	}
}

// LookupByProperty returns vertex IDs whose prop equals value, via the
// secondary index prefix rather than a full scan.
func (s *Store) LookupByProperty(ctx context.Context, prop, value string) ([]string, error) {
	prefix := storage.IndexPrefix(prop, value)
	it, err := s.backend.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var ids []string
	for it.Next() {
		ids = append(ids, string(it.Entry().Value))
	}
	return ids, it.Err()
}

// LookupByPropertyRange returns vertex IDs whose prop's indexed string
// form lies in [low, high), walking the property's index range in
// ascending order. Numeric values index zero-padded, so their
// lexicographic order is their numeric order.
func (s *Store) LookupByPropertyRange(ctx context.Context, prop, low, high string) ([]string, error) {
	prefix := storage.IndexPrefix(prop, "")
	it, err := s.backend.Scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var ids []string
	for it.Next() {
		entry := it.Entry()
		value, ok := storage.IndexValueOf(entry.Key, prop)
		if !ok {
			continue
		}
		if value < low {
			continue
		}
		if high != "" && value >= high {
			break
		}
		ids = append(ids, string(entry.Value))
	}
	return ids, it.Err()
}
