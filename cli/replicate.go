package cli

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"kotobadb.dev/kotobadb/queue"
	"kotobadb.dev/kotobadb/txlog"
)

var replicateNode string

var replicateCmd = &cobra.Command{
	Use:   "replicate",
	Short: "consume and apply replicated transactions for this node",
	Long: `Run the replication consumer: subscribe to this node's replication
queue, decode each delivered transaction, and append it to the local
log. Runs until SIGINT/SIGTERM. Deliveries that fail to apply are
rejected back to the queue for redelivery, up to the broker's
redelivery policy.`,
	RunE: runReplicate,
}

func init() {
	replicateCmd.Flags().StringVar(&replicateNode, "node", "", "node identity to consume for (defaults to node_id)")
}

func runReplicate(cmd *cobra.Command, args []string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	stack, err := assemble(c, false)
	if err != nil {
		return err
	}
	defer stack.Tier.Close()

	node := replicateNode
	if node == "" {
		node = c.NodeID
	}

	svc, err := queue.NewRabbitMQService(queue.RabbitConfig{URL: c.Replication.AMQPURL})
	if err != nil {
		return exitWith(ExitInternal, err)
	}
	defer svc.Close()

	deliveries, err := svc.Consume(node)
	if err != nil {
		return exitWith(ExitInternal, err)
	}

	stack.Logger.WithField("node", node).Info("replication consumer started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			stack.Logger.Info("replication consumer stopping")
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				stack.Logger.Warn("delivery channel closed")
				return nil
			}
			var item queue.ReplicationItem
			if err := json.Unmarshal(delivery.Body, &item); err != nil {
				stack.Logger.WithError(err).Error("undecodable replication item dropped")
				delivery.Nack(false, false)
				continue
			}
			tx, err := txlog.DecodeTransaction(item.Payload)
			if err != nil {
				stack.Logger.WithError(err).WithField("tx", item.TxID).Error("undecodable transaction dropped")
				delivery.Nack(false, false)
				continue
			}
			if err := stack.Log.Append(cmd.Context(), tx); err != nil {
				stack.Logger.WithError(err).WithField("tx", item.TxID).Warn("apply failed, requeueing")
				delivery.Nack(false, true)
				continue
			}
			delivery.Ack(false)
		}
	}
}
