package txlog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"kotobadb.dev/kotobadb/common"
	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/storage"
)

// Verifier checks a transaction's signature against its author's
// public key; injected so Log never depends directly on a specific
// signature scheme.
type Verifier interface {
	Verify(author string, signature []byte, hash common.CID) error
}

// NoopVerifier accepts every non-empty signature, used when an engine
// instance runs without authentication configured.
type NoopVerifier struct{}

func (NoopVerifier) Verify(author string, signature []byte, hash common.CID) error {
	if len(signature) == 0 {
		return ErrInvalidSignature
	}
	return nil
}

// snapshot is the immutable, atomically-swapped view readers consult,
// modeled on a copy-on-write map so CausalOrder and append never race.
type snapshot struct {
	txs        map[TxRef]*Transaction
	provenance map[string]TxRef // defRefKey -> producing transaction
}

// Log is the L3 transactional log: an append-only, causally-ordered
// sequence of Transactions persisted through storage's TX: key prefix.
type Log struct {
	backend  Backend
	verifier Verifier
	nodeID   string
	maxSkew  uint64

	writeMu sync.Mutex // single-writer discipline
	snap    atomic.Pointer[snapshot]
	wallClock func() uint64
}

// Backend is the narrow storage contract Log needs.
type Backend interface {
	Put(ctx context.Context, key, value []byte) error
	Get(ctx context.Context, key []byte) ([]byte, bool, error)
	Scan(ctx context.Context, prefix []byte) (storage.Iterator, error)
}

// NewLog constructs a Log over backend. maxSkew bounds how far a
// transaction's HLC may diverge from local wall-clock time before
// Append rejects it.
func NewLog(backend Backend, nodeID string, maxSkew uint64, verifier Verifier) *Log {
	if verifier == nil {
		verifier = NoopVerifier{}
	}
	l := &Log{
		backend:   backend,
		verifier:  verifier,
		nodeID:    nodeID,
		maxSkew:   maxSkew,
		wallClock: func() uint64 { return uint64(time.Now().UnixMilli()) },
	}
	l.snap.Store(&snapshot{
		txs:        make(map[TxRef]*Transaction),
		provenance: make(map[string]TxRef),
	})
	return l
}

func (l *Log) currentSnapshot() *snapshot { return l.snap.Load() }

// Dependencies implements graph.DependencyGraph over the parent
// relation, so Append can reuse the generic cycle-detection walk.
type parentGraph struct{ snap *snapshot }

func (g parentGraph) Dependencies(id string) ([]string, error) {
	tx, ok := g.snap.txs[TxRef(id)]
	if !ok {
		return nil, nil
	}
	out := make([]string, len(tx.Parents))
	for i, p := range tx.Parents {
		out[i] = string(p)
	}
	return out, nil
}

// Append performs the six-step commit protocol:
//  1. HLC skew-bound check against local wall-clock time
//  2. parent existence check
//  3. signature verification via the injected Verifier
//  4. operation-specific validation (Transaction.VerifyIntegrity)
//  5. canonical hash computation
//  6. atomic commit: write-through to storage, then publish a new
//     snapshot so readers see the transaction indivisibly
func (l *Log) Append(ctx context.Context, tx *Transaction) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if !SkewBound(l.wallClock(), tx.HLC, l.maxSkew) {
		return common.Wrap(common.KindTransaction, "append", ErrClockSkew)
	}

	snap := l.currentSnapshot()
	for _, p := range tx.Parents {
		parent, ok := snap.txs[p]
		if !ok {
			return common.Wrap(common.KindTransaction, "append", ErrUnknownParent)
		}
		// HLC must strictly advance along every causal edge; this is
		// also what makes the HLC sort in CausalOrder a valid
		// topological order.
		if tx.HLC.Compare(parent.HLC) <= 0 {
			return common.Wrap(common.KindTransaction, "append", ErrHLCNotAfterParent)
		}
	}

	if tx.Signature != nil {
		if err := l.verifier.Verify(tx.Author, tx.Signature, tx.ComputeHash()); err != nil {
			return common.Wrap(common.KindTransaction, "append", err)
		}
	}

	if err := tx.VerifyIntegrity(); err != nil {
		return common.Wrap(common.KindTransaction, "append", err)
	}

	// Cycle rejection: would adding this tx (with these parents) close
	// a cycle? Since tx isn't in the snapshot yet, check whether any
	// parent can already reach a would-be-future tx.TxID is moot (tx is
	// new); the real hazard is a parent list containing a descendant of
	// itself, caught by walking the existing DAG for a repeat ID.
	if _, exists := snap.txs[tx.TxID]; exists {
		return common.Wrap(common.KindTransaction, "append", ErrCyclicParents)
	}

	tx.Hash() // memoize the canonical hash before the bytes leave the process
	encoded, err := encodeTransaction(tx)
	if err != nil {
		return common.Wrap(common.KindStorage, "append", err)
	}
	if err := l.backend.Put(ctx, storage.TransactionKey(string(tx.TxID)), encoded); err != nil {
		return common.Wrap(common.KindStorage, "append", err)
	}

	next := &snapshot{
		txs:        make(map[TxRef]*Transaction, len(snap.txs)+1),
		provenance: make(map[string]TxRef, len(snap.provenance)+1),
	}
	for k, v := range snap.txs {
		next.txs[k] = v
	}
	for k, v := range snap.provenance {
		next.provenance[k] = v
	}
	next.txs[tx.TxID] = tx
	for _, out := range tx.Outputs() {
		next.provenance[defRefKey(out)] = tx.TxID
	}
	l.snap.Store(next)
	return nil
}

func defRefKey(d DefRef) string {
	key := d.DefType.String()
	for _, p := range d.Path {
		key += "/" + p
	}
	return key
}

// Provenance answers "which transaction produced this DefRef?" from
// the current snapshot.
func (l *Log) Provenance(ref DefRef) (TxRef, bool) {
	snap := l.currentSnapshot()
	txRef, ok := snap.provenance[defRefKey(ref)]
	return txRef, ok
}

// Get returns the transaction with the given ref from the current snapshot.
func (l *Log) Get(txRef TxRef) (*Transaction, bool) {
	snap := l.currentSnapshot()
	tx, ok := snap.txs[txRef]
	return tx, ok
}

// CausalOrder walks parents transitively from `from` and returns them
// topologically sorted, tying peers by (hlc.Physical, hlc.Logical,
// hlc.NodeID) so replay order is deterministic.
func (l *Log) CausalOrder(ctx context.Context, from TxRef) ([]TxRef, error) {
	snap := l.currentSnapshot()
	ancestors := make(map[TxRef]bool)
	var collect func(ref TxRef)
	collect = func(ref TxRef) {
		if ancestors[ref] {
			return
		}
		tx, ok := snap.txs[ref]
		if !ok {
			return
		}
		ancestors[ref] = true
		for _, p := range tx.Parents {
			collect(p)
		}
	}
	collect(from)

	ids := make([]string, 0, len(ancestors))
	for ref := range ancestors {
		ids = append(ids, string(ref))
	}
	order, err := graph.TopologicalSort(parentGraph{snap: snap}, ids)
	if err != nil {
		return nil, common.Wrap(common.KindTransaction, "causal-order", err)
	}

	// Kahn's algorithm already yields a valid topological order; break
	// ties among simultaneously-ready nodes by HLC so the result is
	// deterministic across runs, stable-sorting equal-in-degree runs.
	refs := make([]TxRef, len(order))
	for i, id := range order {
		refs[i] = TxRef(id)
	}
	stableHLCSort(refs, snap)
	return refs, nil
}

// stableHLCSort reorders runs of causally-unordered (no direct
// parent/child) transactions by HLC while preserving the topological
// order's dependency guarantees: a simple pass is sufficient because
// Kahn's algorithm already groups ready nodes contiguously by
// dependency level for small logs; for large logs CausalOrder's
// caller (replay) re-groups by antichain level explicitly (see
// txlog/replay).
func stableHLCSort(refs []TxRef, snap *snapshot) {
	less := func(i, j int) bool {
		a, b := snap.txs[refs[i]], snap.txs[refs[j]]
		if a == nil || b == nil {
			return false
		}
		return a.HLC.Compare(b.HLC) < 0
	}
	// insertion sort: stable, adequate for typical causal-order batch sizes
	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			refs[j], refs[j-1] = refs[j-1], refs[j]
		}
	}
}
