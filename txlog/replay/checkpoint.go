package replay

import (
	"context"
	"encoding/json"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/storage"
	"kotobadb.dev/kotobadb/txlog"
)

// Checkpoint records a point replay can resume from.
type Checkpoint struct {
	CheckpointID string
	TxRef        txlog.TxRef
	Available    []string // State's available DefRef keys, flattened for persistence
	Timestamp    uint64
	Metadata     map[string]interface{}
}

func NewCheckpoint(id string, txRef txlog.TxRef, state *State, timestamp uint64) Checkpoint {
	keys := make([]string, 0, len(state.available))
	for k := range state.available {
		keys = append(keys, k)
	}
	return Checkpoint{CheckpointID: id, TxRef: txRef, Available: keys, Timestamp: timestamp, Metadata: state.Metadata}
}

func (c Checkpoint) WithMetadata(key string, value interface{}) Checkpoint {
	if c.Metadata == nil {
		c.Metadata = make(map[string]interface{})
	}
	c.Metadata[key] = value
	return c
}

// ToState rebuilds a State from a persisted checkpoint.
func (c Checkpoint) ToState() *State {
	s := NewState()
	for _, k := range c.Available {
		s.available[k] = true
	}
	for k, v := range c.Metadata {
		s.Metadata[k] = v
	}
	return s
}

// Backend is the narrow storage contract CheckpointStore needs.
type Backend interface {
	Put(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Delete(ctx context.Context, key []byte) error
	Scan(ctx context.Context, prefix []byte) (storage.Iterator, error)
}

// CheckpointStore persists at most maxCheckpoints entries under
// storage's CK: key prefix, evicting the oldest by timestamp once the
// limit is exceeded. Checkpoints are kept durable via L0 rather than
// an in-memory map, since they must survive a process restart to be
// useful for resuming replay.
type CheckpointStore struct {
	backend        Backend
	maxCheckpoints int
}

func NewCheckpointStore(backend Backend, maxCheckpoints int) *CheckpointStore {
	return &CheckpointStore{backend: backend, maxCheckpoints: maxCheckpoints}
}

func (cs *CheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return common.Wrap(common.KindStorage, "save-checkpoint", err)
	}
	if err := cs.backend.Put(ctx, storage.CheckpointKey(cp.CheckpointID), data); err != nil {
		return common.Wrap(common.KindStorage, "save-checkpoint", err)
	}
	return cs.evictOldest(ctx)
}

func (cs *CheckpointStore) Load(ctx context.Context, id string) (Checkpoint, bool, error) {
	data, ok, err := cs.backend.Get(ctx, storage.CheckpointKey(id))
	if err != nil {
		return Checkpoint{}, false, common.Wrap(common.KindStorage, "load-checkpoint", err)
	}
	if !ok {
		return Checkpoint{}, false, nil
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, common.Wrap(common.KindStorage, "load-checkpoint", err)
	}
	return cp, true, nil
}

func (cs *CheckpointStore) List(ctx context.Context) ([]string, error) {
	it, err := cs.backend.Scan(ctx, []byte(storage.TagCheckpoint))
	if err != nil {
		return nil, common.Wrap(common.KindStorage, "list-checkpoints", err)
	}
	defer it.Close()

	var ids []string
	for it.Next() {
		ids = append(ids, string(it.Entry().Key[len(storage.TagCheckpoint):]))
	}
	return ids, it.Err()
}

func (cs *CheckpointStore) Remove(ctx context.Context, id string) error {
	return common.Wrap(common.KindStorage, "remove-checkpoint", cs.backend.Delete(ctx, storage.CheckpointKey(id)))
}

func (cs *CheckpointStore) evictOldest(ctx context.Context) error {
	ids, err := cs.List(ctx)
	if err != nil {
		return err
	}
	if len(ids) <= cs.maxCheckpoints {
		return nil
	}

	var oldestID string
	var oldestTS uint64
	first := true
	for _, id := range ids {
		cp, ok, err := cs.Load(ctx, id)
		if err != nil || !ok {
			continue
		}
		if first || cp.Timestamp < oldestTS {
			oldestID, oldestTS = id, cp.Timestamp
			first = false
		}
	}
	if oldestID != "" {
		return cs.Remove(ctx, oldestID)
	}
	return nil
}
