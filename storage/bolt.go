package storage

import (
	"bytes"
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// defaultBucket is the single bbolt bucket all keys live under. The
// engine's own tag-prefix convention (V:, E:, IX:, TX:, CK:) already
// partitions the keyspace, so a second bucket layer would only
// duplicate that partitioning.
var defaultBucket = []byte("kotobadb")

// Bolt is the persistent L0 backend, backed by go.etcd.io/bbolt. The
// contract is raw put/get/delete/scan
// over a single bucket; so CIDs hash the caller's exact bytes rather
// than a JSON re-encoding.
type Bolt struct {
	db *bolt.DB
}

// OpenBolt opens (creating if absent) a bbolt database file at path
// and ensures the default bucket exists.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, wrapErr("open", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(defaultBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, wrapErr("create-bucket", err)
	}
	return &Bolt{db: db}, nil
}

func (b *Bolt) Put(ctx context.Context, key, value []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(defaultBucket).Put(key, value)
	})
	return wrapErr("put", err)
}

func (b *Bolt) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(defaultBucket).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, wrapErr("get", err)
	}
	return out, out != nil, nil
}

func (b *Bolt) Delete(ctx context.Context, key []byte) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(defaultBucket).Delete(key)
	})
	return wrapErr("delete", err)
}

func (b *Bolt) Scan(ctx context.Context, prefix []byte) (Iterator, error) {
	var entries []Entry
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(defaultBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			entries = append(entries, Entry{
				Key:   append([]byte(nil), k...),
				Value: append([]byte(nil), v...),
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("scan", err)
	}
	// bbolt cursors already yield ascending byte order, so entries
	// need no further sort.
	return &sliceIterator{entries: entries, pos: -1}, nil
}

func (b *Bolt) Capabilities() Capabilities {
	return Capabilities{SupportsTTL: false, MaxKeySize: 32768}
}

func (b *Bolt) Close() error {
	if err := b.db.Close(); err != nil {
		return wrapErr("close", err)
	}
	return nil
}

func (b *Bolt) String() string {
	return fmt.Sprintf("Bolt(%s)", b.db.Path())
}
