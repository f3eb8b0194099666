// Package queue implements the replication transport: committed
// transactions are fanned out to replica nodes over RabbitMQ, with
// per-node retry queues and a manager that monitors replica health.
//
// Features:
//   - RabbitMQ connection management
//   - Durable per-replica queues with JSON-serialized operations
//   - Bounded retry with exponential backoff
//   - Node-failure detection and partition redistribution
//   - Clean resource cleanup
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// ReplicationItem is one operation queued for delivery to a replica.
type ReplicationItem struct {
	ID         string    `json:"id"`
	TxID       string    `json:"tx_id"`
	TargetNode string    `json:"target_node"`
	Payload    []byte    `json:"payload"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Publisher delivers replication items to a transport. The manager
// depends only on this interface, so tests substitute mocks without
// touching the manager. The redis subpackage's Queue does not
// implement this interface.
type Publisher interface {
	// Publish delivers one item to the target node's queue.
	Publish(item ReplicationItem) error

	// QueueDepth reports how many items await delivery for a node.
	QueueDepth(node string) (int, error)

	// Close closes the transport.
	Close() error
}

// RabbitConfig configures the AMQP transport.
type RabbitConfig struct {
	URL         string
	QueuePrefix string // per-node queues are named <prefix>.<node>
}

// RabbitMQService publishes replication items to durable per-node
// RabbitMQ queues.
type RabbitMQService struct {
	connection AMQPConnection
	channel    AMQPChannel
	config     RabbitConfig
}

// NewRabbitMQService connects to RabbitMQ and opens the publishing
// channel. Queues are declared lazily per target node on first
// publish.
func NewRabbitMQService(config RabbitConfig) (*RabbitMQService, error) {
	return NewRabbitMQServiceWithDialer(config, &RealAMQPDialer{})
}

// NewRabbitMQServiceWithDialer allows injecting a custom dialer for
// testing.
func NewRabbitMQServiceWithDialer(config RabbitConfig, dialer AMQPDialer) (*RabbitMQService, error) {
	conn, err := dialer.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return &RabbitMQService{connection: conn, channel: ch, config: config}, nil
}

func (r *RabbitMQService) queueName(node string) string {
	prefix := r.config.QueuePrefix
	if prefix == "" {
		prefix = "kotobadb.replication"
	}
	return prefix + "." + node
}

// Publish serializes the item to JSON and delivers it to the target
// node's durable queue, declaring the queue if this is the first
// delivery to that node.
func (r *RabbitMQService) Publish(item ReplicationItem) error {
	name := r.queueName(item.TargetNode)
	if _, err := r.channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to serialize replication item: %w", err)
	}
	err = r.channel.Publish("", name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish replication item: %w", err)
	}
	return nil
}

// QueueDepth reports the number of undelivered items for a node.
func (r *RabbitMQService) QueueDepth(node string) (int, error) {
	q, err := r.channel.QueueInspect(r.queueName(node))
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}
	return q.Messages, nil
}

// Consume opens a delivery stream for a node's queue, used by replica
// processes applying replicated operations.
func (r *RabbitMQService) Consume(node string) (<-chan amqp.Delivery, error) {
	name := r.queueName(node)
	if _, err := r.channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	deliveries, err := r.channel.Consume(name, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}
	return deliveries, nil
}

// Close closes the channel and connection.
func (r *RabbitMQService) Close() error {
	var firstErr error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if r.connection != nil {
		if err := r.connection.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
