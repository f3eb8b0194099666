package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"kotobadb.dev/kotobadb/common"
)

// ManagerConfig tunes the replication manager's intervals and limits.
type ManagerConfig struct {
	Factor             int
	MaxRetries         int
	StatusInterval     time.Duration
	QueueInterval      time.Duration
	FullSyncInterval   time.Duration
	NodeFailureTimeout time.Duration
}

// NodeStatus tracks one replica's liveness.
type NodeStatus struct {
	NodeID   string
	Healthy  bool
	LastSeen time.Time
}

// Health is the manager's report to the monitoring side-channel.
type Health struct {
	TotalQueuedOperations int
	FailedNodes           []string
	PendingRetries        int
}

// Manager fans committed operations out to replica nodes. Three
// loops run concurrently: a status monitor marking nodes failed when
// they miss their heartbeat window, a queue processor draining the
// pending-retry list, and a sync scheduler that periodically logs a
// debug-level full-sync line for every healthy node.
type Manager struct {
	config    ManagerConfig
	publisher Publisher
	logger    *logrus.Entry

	mu      sync.Mutex
	nodes   map[string]*NodeStatus
	pending []ReplicationItem // items awaiting retry
}

// NewManager creates a replication manager over a transport.
func NewManager(config ManagerConfig, publisher Publisher, logger *logrus.Logger) *Manager {
	return &Manager{
		config:    config,
		publisher: publisher,
		logger:    logger.WithField("component", "replication"),
		nodes:     make(map[string]*NodeStatus),
	}
}

// AddNode registers a replica target.
func (m *Manager) AddNode(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[nodeID] = &NodeStatus{NodeID: nodeID, Healthy: true, LastSeen: time.Now()}
}

// Heartbeat records that a replica answered.
func (m *Manager) Heartbeat(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.nodes[nodeID]; ok {
		n.Healthy = true
		n.LastSeen = time.Now()
	}
}

// Replicate queues payload for delivery to every healthy replica, up
// to the configured replication factor. Publish failures enqueue the
// item for retry rather than failing the caller's commit; replication
// is asynchronous by design.
func (m *Manager) Replicate(txID string, payload []byte) {
	m.mu.Lock()
	targets := make([]string, 0, len(m.nodes))
	for id, n := range m.nodes {
		if n.Healthy {
			targets = append(targets, id)
		}
		if len(targets) == m.config.Factor {
			break
		}
	}
	m.mu.Unlock()

	for _, node := range targets {
		item := ReplicationItem{
			ID:         uuid.NewString(),
			TxID:       txID,
			TargetNode: node,
			Payload:    payload,
			EnqueuedAt: time.Now(),
		}
		if err := m.publisher.Publish(item); err != nil {
			m.logger.WithFields(logrus.Fields{"node": node, "tx": txID}).
				WithError(err).Warn("publish failed, queueing for retry")
			m.enqueueRetry(item)
		}
	}
}

func (m *Manager) enqueueRetry(item ReplicationItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, item)
}

// Run starts the status-monitor, queue-processor and sync-scheduler
// loops and blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.statusMonitor(ctx) })
	g.Go(func() error { return m.queueProcessor(ctx) })
	g.Go(func() error { return m.syncScheduler(ctx) })
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return common.Wrap(common.KindReplication, "run", err)
	}
	return nil
}

// statusMonitor marks nodes failed once they exceed the failure
// timeout without a heartbeat, and redistributes their queued items.
func (m *Manager) statusMonitor(ctx context.Context) error {
	ticker := time.NewTicker(m.config.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.checkNodeFailures()
		}
	}
}

func (m *Manager) checkNodeFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-m.config.NodeFailureTimeout)
	for _, n := range m.nodes {
		if n.Healthy && n.LastSeen.Before(cutoff) {
			n.Healthy = false
			m.logger.WithField("node", n.NodeID).Warn("replica marked failed")
			m.redistributeLocked(n.NodeID)
		}
	}
}

// redistributeLocked reassigns a failed node's pending items to the
// first healthy replica. Caller holds m.mu.
func (m *Manager) redistributeLocked(failedNode string) {
	var replacement string
	for id, n := range m.nodes {
		if n.Healthy && id != failedNode {
			replacement = id
			break
		}
	}
	if replacement == "" {
		return // nothing healthy to take over; items stay queued
	}
	for i := range m.pending {
		if m.pending[i].TargetNode == failedNode {
			m.pending[i].TargetNode = replacement
		}
	}
}

// queueProcessor retries pending items with exponential backoff,
// dropping an item once it exhausts MaxRetries.
func (m *Manager) queueProcessor(ctx context.Context) error {
	ticker := time.NewTicker(m.config.QueueInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.drainPending(ctx)
		}
	}
}

func (m *Manager) drainPending(ctx context.Context) {
	m.mu.Lock()
	items := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, item := range items {
		if ctx.Err() != nil {
			m.enqueueRetry(item)
			return
		}
		item.Attempts++
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			return struct{}{}, m.publisher.Publish(item)
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(2))
		if err == nil {
			continue
		}
		if item.Attempts >= m.config.MaxRetries {
			m.logger.WithFields(logrus.Fields{"tx": item.TxID, "node": item.TargetNode}).
				WithError(err).Error("replication item dropped after max retries")
			continue
		}
		m.enqueueRetry(item)
	}
}

// syncScheduler periodically logs a debug-level full-sync line for
// every healthy node. It only logs: nothing is published to the
// replica.
func (m *Manager) syncScheduler(ctx context.Context) error {
	ticker := time.NewTicker(m.config.FullSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.mu.Lock()
			for _, n := range m.nodes {
				if n.Healthy {
					m.logger.WithField("node", n.NodeID).Debug("scheduling full sync")
				}
			}
			m.mu.Unlock()
		}
	}
}

// Health reports queue depth and failed nodes for the monitoring
// aggregator.
func (m *Manager) Health() Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := Health{PendingRetries: len(m.pending)}
	for id, n := range m.nodes {
		if !n.Healthy {
			h.FailedNodes = append(h.FailedNodes, id)
			continue
		}
		if depth, err := m.publisher.QueueDepth(id); err == nil {
			h.TotalQueuedOperations += depth
		}
	}
	return h
}
