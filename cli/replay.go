package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"kotobadb.dev/kotobadb/txlog"
	"kotobadb.dev/kotobadb/txlog/replay"
)

var replayParallel bool

var replayCmd = &cobra.Command{
	Use:   "replay <tx-ref>",
	Short: "replay the causal history of a transaction",
	Long: `Walk the causal history of the given transaction in topological
order and re-execute every operation against a fresh accumulator
state, reporting per-transaction outcomes and the aggregate success
rate. Parallel mode executes causally-independent transactions
concurrently by dependency level.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayParallel, "parallel", false, "execute independent transactions concurrently")
}

func runReplay(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	stack, err := assemble(c, false)
	if err != nil {
		return err
	}
	defer stack.Tier.Close()

	manager := replay.NewManager()
	manager.Config.StopOnFailure = c.Replay.StopOnFailure
	manager.Config.EnableParallel = replayParallel || c.Replay.EnableParallel
	manager.Config.MaxConcurrent = c.Replay.MaxConcurrent
	manager.Config.EnableValidation = c.Replay.EnableValidation

	from := txlog.TxRef(args[0])
	if manager.Config.EnableParallel {
		result, err := manager.ReplayParallel(cmd.Context(), stack.Log, from)
		if err != nil {
			return err
		}
		for i, r := range result.Results {
			status := "ok"
			if !r.Success {
				status = "FAILED: " + r.Error
			}
			fmt.Printf("%4d  %s  (%s)\n", i+1, status, r.ExecutionTime)
		}
		fmt.Printf("replayed %d transactions, success rate %.2f\n", len(result.Results), result.SuccessRate)
		return nil
	}

	replayed, err := manager.ReplayFrom(cmd.Context(), stack.Log, from)
	if err != nil {
		return err
	}
	fmt.Printf("replayed %d transactions, %d succeeded, %d failed\n",
		len(replayed), manager.Stats.SuccessfulReplays, manager.Stats.FailedReplays)
	return nil
}
