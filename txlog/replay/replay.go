package replay

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"kotobadb.dev/kotobadb/txlog"
)

// Result records the outcome of replaying a single transaction.
type Result struct {
	Success       bool
	Error         string
	ExecutionTime time.Duration
	Outputs       []txlog.DefRef
}

// Config tunes replay behavior; zero value means sequential,
// fail-fast off.
type Config struct {
	StopOnFailure    bool
	EnableParallel   bool
	MaxConcurrent    int
	EnableValidation bool
	DetailedLogging  bool
}

func DefaultConfig() Config {
	return Config{EnableParallel: true, MaxConcurrent: 10, EnableValidation: true}
}

// Stats aggregates outcomes across a replay pass.
type Stats struct {
	TotalReplays          int
	SuccessfulReplays     int
	FailedReplays         int
	TotalTransactions     int
	AvgTimePerTransaction time.Duration
	SuccessRate           float64
}

func (s *Stats) updateSuccess() {
	s.TotalReplays++
	s.SuccessfulReplays++
	s.updateSuccessRate()
}

func (s *Stats) updateFailure() {
	s.TotalReplays++
	s.FailedReplays++
	s.updateSuccessRate()
}

func (s *Stats) updateSuccessRate() {
	if s.TotalReplays > 0 {
		s.SuccessRate = float64(s.SuccessfulReplays) / float64(s.TotalReplays)
	}
}

func (s *Stats) AddTransactions(n int) { s.TotalTransactions += n }

// Source is the narrow view of a txlog.Log replay needs: causal
// ordering and lookup by ref.
type Source interface {
	CausalOrder(ctx context.Context, from txlog.TxRef) ([]txlog.TxRef, error)
	Get(ref txlog.TxRef) (*txlog.Transaction, bool)
}

// Manager drives replay over a Source.
type Manager struct {
	Config Config
	Stats  Stats
}

func NewManager() *Manager {
	return &Manager{Config: DefaultConfig()}
}

// ReplayFrom walks the causal order from fromTx sequentially, applying
// each transaction's operation to a freshly-built State.
func (m *Manager) ReplayFrom(ctx context.Context, source Source, fromTx txlog.TxRef) ([]*txlog.Transaction, error) {
	order, err := source.CausalOrder(ctx, fromTx)
	if err != nil {
		return nil, err
	}

	var replayed []*txlog.Transaction
	state := NewState()

	for _, ref := range order {
		tx, ok := source.Get(ref)
		if !ok {
			continue
		}
		result := m.replayTransaction(tx, state)
		if result.Success {
			for _, out := range result.Outputs {
				state.AddDefRef(out)
			}
			replayed = append(replayed, tx)
			m.Stats.updateSuccess()
		} else {
			m.Stats.updateFailure()
			if m.Config.StopOnFailure {
				return nil, fmt.Errorf("replay failed at transaction %s: %s", tx.TxID, result.Error)
			}
		}
	}
	return replayed, nil
}

// replayTransaction validates and applies a single transaction.
func (m *Manager) replayTransaction(tx *txlog.Transaction, state *State) Result {
	start := time.Now()

	if err := tx.VerifyIntegrity(); err != nil {
		return Result{Success: false, Error: err.Error(), ExecutionTime: time.Since(start)}
	}

	for _, dep := range tx.Dependencies() {
		if !state.HasDefRef(dep) {
			return Result{
				Success:       false,
				Error:         fmt.Sprintf("missing dependency: %s", defRefKey(dep)),
				ExecutionTime: time.Since(start),
			}
		}
	}

	outputs, err := executeOperation(tx.Operation, state)
	if err != nil {
		return Result{Success: false, Error: err.Error(), ExecutionTime: time.Since(start)}
	}

	return Result{Success: true, ExecutionTime: time.Since(start), Outputs: outputs}
}

// executeOperation applies one Operation's effect to state.
func executeOperation(op txlog.Operation, state *State) ([]txlog.DefRef, error) {
	switch op.Kind {
	case txlog.OpGraphTransformation:
		return []txlog.DefRef{op.OutputRef}, nil

	case txlog.OpSchemaMigration:
		if !state.HasDefRef(op.FromSchema) {
			return nil, fmt.Errorf("source schema not found")
		}
		if !state.HasDefRef(op.ToSchema) {
			return nil, fmt.Errorf("target schema not found")
		}
		return []txlog.DefRef{op.ToSchema}, nil

	case txlog.OpDefinitionRegistration:
		return []txlog.DefRef{op.DefRefValue}, nil

	case txlog.OpWitnessValidation:
		for _, w := range op.WitnessRefs {
			if !state.HasDefRef(w) {
				return nil, fmt.Errorf("witness not found: %s", defRefKey(w))
			}
		}
		if !op.ValidationResult {
			return nil, fmt.Errorf("witness validation failed")
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown operation kind")
	}
}

// ParallelResult is the outcome of a level-parallel replay pass.
type ParallelResult struct {
	Results     []Result
	TotalTime   time.Duration
	SuccessRate float64
}

// ReplayParallel groups the causal order into dependency-level
// antichains (groupByDependencyLevel) and executes each level's
// transactions concurrently via errgroup, bounded by
// Config.MaxConcurrent.
func (m *Manager) ReplayParallel(ctx context.Context, source Source, fromTx txlog.TxRef) (*ParallelResult, error) {
	start := time.Now()
	order, err := source.CausalOrder(ctx, fromTx)
	if err != nil {
		return nil, err
	}

	levels := groupByDependencyLevel(source, order)

	var results []Result
	state := NewState()
	// State mutation must stay single-threaded even though transaction
	// execution within a level can run concurrently, so each level's
	// results are collected before being folded into state.
	for _, level := range levels {
		levelResults, err := m.executeLevelParallel(ctx, source, level, state)
		if err != nil {
			return nil, err
		}
		results = append(results, levelResults...)

		if m.Config.StopOnFailure {
			for _, r := range results {
				if !r.Success {
					return nil, fmt.Errorf("parallel replay failed: %s", r.Error)
				}
			}
		}
	}

	return &ParallelResult{
		Results:     results,
		TotalTime:   time.Since(start),
		SuccessRate: computeSuccessRate(results),
	}, nil
}

// groupByDependencyLevel partitions tx_order into antichains: a
// transaction joins the current level only if every dependency it
// needs was produced by a transaction already assigned to an earlier
// level; otherwise a new level opens. Provenance is tracked directly
// via state lookups (outputs are
// recorded into a running "produced" set as each transaction is
// assigned a level).
func groupByDependencyLevel(source Source, order []txlog.TxRef) [][]txlog.TxRef {
	var levels [][]txlog.TxRef
	var current []txlog.TxRef
	processed := make(map[txlog.TxRef]bool)
	producedBy := make(map[string]txlog.TxRef)

	for _, ref := range order {
		tx, ok := source.Get(ref)
		if !ok {
			continue
		}
		canAdd := true
		for _, dep := range tx.Dependencies() {
			if producer, ok := producedBy[defRefKey(dep)]; ok {
				if !processed[producer] {
					canAdd = false
					break
				}
			}
		}

		if !canAdd && len(current) > 0 {
			for _, r := range current {
				processed[r] = true
			}
			levels = append(levels, current)
			current = nil
		}
		current = append(current, ref)
		for _, out := range tx.Outputs() {
			producedBy[defRefKey(out)] = ref
		}
	}
	if len(current) > 0 {
		levels = append(levels, current)
	}
	return levels
}

func (m *Manager) executeLevelParallel(ctx context.Context, source Source, level []txlog.TxRef, state *State) ([]Result, error) {
	results := make([]Result, len(level))
	g, _ := errgroup.WithContext(ctx)
	maxConcurrent := m.Config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	g.SetLimit(maxConcurrent)

	for i, ref := range level {
		i, ref := i, ref
		g.Go(func() error {
			tx, ok := source.Get(ref)
			if !ok {
				results[i] = Result{Success: false, Error: "transaction not found"}
				return nil
			}
			results[i] = m.replayTransaction(tx, state)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Fold this level's outputs into state sequentially, after all of
	// the level's reads have completed, so concurrent replayTransaction
	// calls never observe a partially-updated state from their own level.
	for _, r := range results {
		for _, out := range r.Outputs {
			state.AddDefRef(out)
		}
	}
	return results, nil
}

func computeSuccessRate(results []Result) float64 {
	if len(results) == 0 {
		return 1.0
	}
	success := 0
	for _, r := range results {
		if r.Success {
			success++
		}
	}
	return float64(success) / float64(len(results))
}
