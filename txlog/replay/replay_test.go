package replay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"kotobadb.dev/kotobadb/storage"
	"kotobadb.dev/kotobadb/txlog"
)

func regOp(ref txlog.DefRef) txlog.Operation {
	return txlog.Operation{Kind: txlog.OpDefinitionRegistration, DefRefValue: ref, DefinitionType: txlog.DefinitionTypeKind}
}

func buildLog(t *testing.T) *txlog.Log {
	t.Helper()
	log := txlog.NewLog(storage.NewMemory(), "n1", 1<<50, nil)

	genesis := txlog.NewTransaction("genesis", txlog.NewHLC("n1", 1), nil, "alice",
		regOp(txlog.NewDefRef([]string{"a"}, txlog.DefTypeType)))
	genesis.WithSignature([]byte("sig"))
	require.NoError(t, log.Append(context.Background(), genesis))

	child := txlog.NewTransaction("child", txlog.NewHLC("n1", 2), []txlog.TxRef{"genesis"}, "alice",
		regOp(txlog.NewDefRef([]string{"b"}, txlog.DefTypeType)))
	child.WithSignature([]byte("sig"))
	require.NoError(t, log.Append(context.Background(), child))

	return log
}

func TestManager_ReplayFromAppliesInCausalOrder(t *testing.T) {
	ctx := context.Background()
	log := buildLog(t)
	m := NewManager()

	replayed, err := m.ReplayFrom(ctx, log, "child")
	require.NoError(t, err)
	require.Len(t, replayed, 2)
	assert.Equal(t, txlog.TxRef("genesis"), replayed[0].TxID)
	assert.Equal(t, txlog.TxRef("child"), replayed[1].TxID)
	assert.Equal(t, 2, m.Stats.SuccessfulReplays)
}

func TestManager_ReplayFromStopsOnMissingDependency(t *testing.T) {
	ctx := context.Background()
	log := txlog.NewLog(storage.NewMemory(), "n1", 1<<50, nil)
	m := NewManager()
	m.Config.StopOnFailure = true

	dangling := txlog.NewTransaction("orphan", txlog.NewHLC("n1", 1), nil, "alice", txlog.Operation{
		Kind:        txlog.OpWitnessValidation,
		WitnessRefs: []txlog.DefRef{txlog.NewDefRef([]string{"missing"}, txlog.DefTypeType)},
		ValidationResult: true,
	})
	dangling.WithSignature([]byte("sig"))
	require.NoError(t, log.Append(ctx, dangling))

	_, err := m.ReplayFrom(ctx, log, "orphan")
	assert.Error(t, err)
}

func TestManager_ReplayParallelGroupsIndependentLevels(t *testing.T) {
	ctx := context.Background()
	log := buildLog(t)
	m := NewManager()

	result, err := m.ReplayParallel(ctx, log, "child")
	require.NoError(t, err)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, 1.0, result.SuccessRate)
}

// buildDiamond appends genesis -> {a, b} -> c, where a and b are
// causally unordered peers and c depends on definitions both produce.
func buildDiamond(t *testing.T) *txlog.Log {
	t.Helper()
	ctx := context.Background()
	log := txlog.NewLog(storage.NewMemory(), "n1", 1<<50, nil)

	genesis := txlog.NewTransaction("tG", txlog.NewHLC("n1", 1), nil, "alice",
		regOp(txlog.NewDefRef([]string{"g"}, txlog.DefTypeType)))
	require.NoError(t, log.Append(ctx, genesis))

	a := txlog.NewTransaction("tA", txlog.NewHLC("n1", 2), []txlog.TxRef{"tG"}, "alice",
		regOp(txlog.NewDefRef([]string{"a"}, txlog.DefTypeType)))
	require.NoError(t, log.Append(ctx, a))

	b := txlog.NewTransaction("tB", txlog.NewHLC("n2", 2), []txlog.TxRef{"tG"}, "bob",
		regOp(txlog.NewDefRef([]string{"b"}, txlog.DefTypeType)))
	require.NoError(t, log.Append(ctx, b))

	c := txlog.NewTransaction("tC", txlog.NewHLC("n1", 3), []txlog.TxRef{"tA", "tB"}, "alice", txlog.Operation{
		Kind:             txlog.OpWitnessValidation,
		WitnessRefs:      []txlog.DefRef{txlog.NewDefRef([]string{"a"}, txlog.DefTypeType), txlog.NewDefRef([]string{"b"}, txlog.DefTypeType)},
		ValidationResult: true,
	})
	require.NoError(t, log.Append(ctx, c))
	return log
}

func TestReplay_DiamondParallelMatchesSequential(t *testing.T) {
	ctx := context.Background()
	log := buildDiamond(t)

	seq := NewManager()
	seqTxs, err := seq.ReplayFrom(ctx, log, "tC")
	require.NoError(t, err)
	require.Len(t, seqTxs, 4)
	require.Equal(t, 4, seq.Stats.SuccessfulReplays)

	par := NewManager()
	par.Config.EnableParallel = true
	result, err := par.ReplayParallel(ctx, log, "tC")
	require.NoError(t, err)
	require.Len(t, result.Results, 4)
	assert.Equal(t, 1.0, result.SuccessRate)

	// tC must execute strictly after both tA and tB in both modes.
	order, err := log.CausalOrder(ctx, "tC")
	require.NoError(t, err)
	posOf := func(ref txlog.TxRef) int {
		for i, r := range order {
			if r == ref {
				return i
			}
		}
		return -1
	}
	assert.Equal(t, 0, posOf("tG"))
	assert.Greater(t, posOf("tC"), posOf("tA"))
	assert.Greater(t, posOf("tC"), posOf("tB"))
}

func TestCheckpointStore_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	cs := NewCheckpointStore(storage.NewMemory(), 10)

	state := NewState()
	state.AddDefRef(txlog.NewDefRef([]string{"a"}, txlog.DefTypeType))
	cp := NewCheckpoint("cp1", "tx1", state, 100)

	require.NoError(t, cs.Save(ctx, cp))
	loaded, ok, err := cs.Load(ctx, "cp1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cp.TxRef, loaded.TxRef)
	assert.True(t, loaded.ToState().HasDefRef(txlog.NewDefRef([]string{"a"}, txlog.DefTypeType)))
}

func TestCheckpointStore_EvictsOldestWhenOverLimit(t *testing.T) {
	ctx := context.Background()
	cs := NewCheckpointStore(storage.NewMemory(), 2)
	state := NewState()

	require.NoError(t, cs.Save(ctx, NewCheckpoint("cp1", "tx1", state, 1)))
	require.NoError(t, cs.Save(ctx, NewCheckpoint("cp2", "tx2", state, 2)))
	require.NoError(t, cs.Save(ctx, NewCheckpoint("cp3", "tx3", state, 3)))

	ids, err := cs.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	_, ok, err := cs.Load(ctx, "cp1")
	require.NoError(t, err)
	assert.False(t, ok, "oldest checkpoint should have been evicted")
}
