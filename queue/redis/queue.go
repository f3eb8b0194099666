// Package redis provides a Redis-backed replication queue, an
// alternative transport to the AMQP service for deployments that
// already run Redis for the cache tier. It offers blocking dequeue and
// in-flight tracking so a crashed replica's items can be re-queued.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue handles replication queue operations using Redis.
type Queue struct {
	client *redis.Client
	ctx    context.Context
	prefix string // Key prefix for queue keys
}

// Item is one replication operation awaiting delivery to a replica.
type Item struct {
	ID         string    `json:"id"`
	TxID       string    `json:"txID"`
	TargetNode string    `json:"targetNode"`
	Payload    []byte    `json:"payload"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
	RetryCount int       `json:"retryCount"`
}

// Config configures the Redis queue
type Config struct {
	RedisURL  string // Redis URL (defaults to KOTOBADB_REDIS_URL or redis://localhost:6379/0)
	KeyPrefix string // Key prefix for queue keys (defaults to "kotobadb:replication:")
}

// NewQueue creates a new Redis queue client
func NewQueue(ctx context.Context, config Config) (*Queue, error) {
	redisURL := config.RedisURL
	if redisURL == "" {
		redisURL = os.Getenv("KOTOBADB_REDIS_URL")
	}
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "kotobadb:replication:"
	}

	return &Queue{
		client: client,
		ctx:    ctx,
		prefix: prefix,
	}, nil
}

// Close closes the Redis connection
func (q *Queue) Close() error {
	return q.client.Close()
}

// Enqueue adds an item to the target node's queue
func (q *Queue) Enqueue(item Item) error {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	queueKey := fmt.Sprintf("%s%s", q.prefix, item.TargetNode)
	return q.client.RPush(q.ctx, queueKey, string(itemJSON)).Err()
}

// Dequeue removes and returns the next item for a node (blocking)
func (q *Queue) Dequeue(node string, timeout time.Duration) (*Item, error) {
	queueKey := fmt.Sprintf("%s%s", q.prefix, node)

	// Use a fresh context with timeout for each dequeue operation so a
	// cancelled init-time context never poisons later calls
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := q.client.BLPop(ctx, timeout, queueKey).Result()
	if err == redis.Nil {
		return nil, nil // Timeout, no item available
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) < 2 {
		return nil, nil // No item
	}

	var item Item
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}

	return &item, nil
}

// MarkProcessing records an item as in flight with a deadline. The
// item body is kept in a hash alongside the deadline set so an
// expired item can be re-queued intact.
func (q *Queue) MarkProcessing(item Item, deadline time.Time) error {
	itemJSON, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	if err := q.client.HSet(q.ctx, q.prefix+"inflight", item.ID, string(itemJSON)).Err(); err != nil {
		return err
	}
	return q.client.ZAdd(q.ctx, q.prefix+"processing", redis.Z{
		Score:  float64(deadline.Unix()),
		Member: item.ID,
	}).Err()
}

// CompleteItem removes an item from the in-flight records
func (q *Queue) CompleteItem(itemID string) error {
	if err := q.client.HDel(q.ctx, q.prefix+"inflight", itemID).Err(); err != nil {
		return err
	}
	return q.client.ZRem(q.ctx, q.prefix+"processing", itemID).Err()
}

// FailItem removes an item from the in-flight records and optionally
// re-enqueues it with an incremented retry count
func (q *Queue) FailItem(item Item, requeue bool) error {
	if err := q.CompleteItem(item.ID); err != nil {
		return err
	}

	if requeue {
		item.RetryCount++
		item.EnqueuedAt = time.Now()
		return q.Enqueue(item)
	}

	return nil
}

// GetQueueDepth returns the number of items queued for a node
func (q *Queue) GetQueueDepth(node string) (int, error) {
	queueKey := fmt.Sprintf("%s%s", q.prefix, node)
	depth, err := q.client.LLen(q.ctx, queueKey).Result()
	if err != nil {
		return 0, err
	}
	return int(depth), nil
}

// IsProcessing checks if an item is currently in flight
func (q *Queue) IsProcessing(itemID string) (bool, error) {
	score, err := q.client.ZScore(q.ctx, q.prefix+"processing", itemID).Result()
	if err == redis.Nil {
		return false, nil // Not in processing set
	}
	if err != nil {
		return false, err
	}
	return score > 0, nil
}

// ReclaimExpired re-queues every in-flight item whose deadline has
// passed, the recovery path for replicas that died mid-apply. Returns
// the number of reclaimed items.
func (q *Queue) ReclaimExpired() (int, error) {
	now := fmt.Sprintf("%d", time.Now().Unix())
	expired, err := q.client.ZRangeByScore(q.ctx, q.prefix+"processing", &redis.ZRangeBy{
		Min: "0",
		Max: now,
	}).Result()
	if err != nil {
		return 0, err
	}
	reclaimed := 0
	for _, id := range expired {
		raw, err := q.client.HGet(q.ctx, q.prefix+"inflight", id).Result()
		if err == redis.Nil {
			// Deadline entry with no body; just drop the marker.
			if err := q.client.ZRem(q.ctx, q.prefix+"processing", id).Err(); err != nil {
				return reclaimed, err
			}
			continue
		}
		if err != nil {
			return reclaimed, err
		}
		var item Item
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return reclaimed, fmt.Errorf("failed to unmarshal in-flight item: %w", err)
		}
		if err := q.FailItem(item, true); err != nil {
			return reclaimed, err
		}
		reclaimed++
	}
	return reclaimed, nil
}
