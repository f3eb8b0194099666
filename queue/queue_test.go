package queue

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItem(node string) ReplicationItem {
	return ReplicationItem{
		ID:         "item-1",
		TxID:       "tx-1",
		TargetNode: node,
		Payload:    []byte(`{"op":"insert"}`),
		EnqueuedAt: time.Now(),
	}
}

func TestNewRabbitMQService_DialFailure(t *testing.T) {
	tests := []struct {
		name   string
		dialer *MockAMQPDialer
	}{
		{
			name:   "DialError",
			dialer: NewMockAMQPDialerWithError(errors.New("connection refused")),
		},
		{
			name:   "ChannelError",
			dialer: SetupMockDialerWithChannelError(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRabbitMQServiceWithDialer(RabbitConfig{URL: "amqp://localhost"}, tt.dialer)
			assert.Error(t, err)
		})
	}
}

func TestRabbitMQService_PublishDeclaresPerNodeQueue(t *testing.T) {
	dialer, channel, _ := SetupMockDialerForTest()
	svc, err := NewRabbitMQServiceWithDialer(RabbitConfig{URL: "amqp://localhost"}, dialer)
	require.NoError(t, err)

	require.NoError(t, svc.Publish(testItem("replica-2")))

	assert.True(t, channel.QueueDeclareCalled)
	assert.Equal(t, "kotobadb.replication.replica-2", channel.LastQueueName)
	require.Len(t, channel.PublishedMessages, 1)

	var published ReplicationItem
	require.NoError(t, json.Unmarshal(channel.PublishedMessages[0].Body, &published))
	assert.Equal(t, "tx-1", published.TxID)
	assert.Equal(t, "replica-2", published.TargetNode)
}

func TestRabbitMQService_PublishErrorPropagates(t *testing.T) {
	dialer, channel, _ := SetupMockDialerForTest()
	channel.PublishErr = errors.New("channel closed")
	svc, err := NewRabbitMQServiceWithDialer(RabbitConfig{URL: "amqp://localhost"}, dialer)
	require.NoError(t, err)

	assert.Error(t, svc.Publish(testItem("replica-1")))
}

func TestRabbitMQService_QueueDeclareErrorPropagates(t *testing.T) {
	dialer, _ := SetupMockDialerWithQueueError()
	svc, err := NewRabbitMQServiceWithDialer(RabbitConfig{URL: "amqp://localhost"}, dialer)
	require.NoError(t, err)

	assert.Error(t, svc.Publish(testItem("replica-1")))
}

func TestRabbitMQService_Close(t *testing.T) {
	dialer, channel, conn := SetupMockDialerForTest()
	svc, err := NewRabbitMQServiceWithDialer(RabbitConfig{URL: "amqp://localhost"}, dialer)
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	assert.True(t, channel.CloseCalled)
	assert.True(t, conn.CloseCalled)
}

// failingPublisher fails a configurable number of publishes before
// succeeding, exercising the manager's retry path.
type failingPublisher struct {
	failuresLeft int
	published    []ReplicationItem
}

func (p *failingPublisher) Publish(item ReplicationItem) error {
	if p.failuresLeft > 0 {
		p.failuresLeft--
		return errors.New("transport down")
	}
	p.published = append(p.published, item)
	return nil
}

func (p *failingPublisher) QueueDepth(string) (int, error) { return len(p.published), nil }
func (p *failingPublisher) Close() error                   { return nil }

func managerConfig() ManagerConfig {
	return ManagerConfig{
		Factor:             2,
		MaxRetries:         3,
		StatusInterval:     10 * time.Millisecond,
		QueueInterval:      10 * time.Millisecond,
		FullSyncInterval:   time.Minute,
		NodeFailureTimeout: 50 * time.Millisecond,
	}
}

func TestManager_ReplicateFansOutToHealthyNodes(t *testing.T) {
	pub := &failingPublisher{}
	m := NewManager(managerConfig(), pub, logrus.New())
	m.AddNode("replica-1")
	m.AddNode("replica-2")

	m.Replicate("tx-9", []byte("payload"))
	assert.Len(t, pub.published, 2)
	for _, item := range pub.published {
		assert.Equal(t, "tx-9", item.TxID)
	}
}

func TestManager_PublishFailureQueuesForRetry(t *testing.T) {
	pub := &failingPublisher{failuresLeft: 10}
	m := NewManager(managerConfig(), pub, logrus.New())
	m.AddNode("replica-1")

	m.Replicate("tx-1", []byte("payload"))
	assert.Empty(t, pub.published)
	assert.Equal(t, 1, m.Health().PendingRetries)
}

func TestManager_NodeFailureRedistributesPending(t *testing.T) {
	pub := &failingPublisher{failuresLeft: 100}
	m := NewManager(managerConfig(), pub, logrus.New())
	m.AddNode("replica-1")
	m.AddNode("replica-2")

	m.Replicate("tx-1", []byte("payload"))

	// Only replica-1 goes stale; replica-2 keeps heartbeating.
	m.mu.Lock()
	m.nodes["replica-1"].LastSeen = time.Now().Add(-time.Minute)
	m.mu.Unlock()
	m.Heartbeat("replica-2")
	m.checkNodeFailures()

	health := m.Health()
	assert.Equal(t, []string{"replica-1"}, health.FailedNodes)
	m.mu.Lock()
	for _, item := range m.pending {
		assert.Equal(t, "replica-2", item.TargetNode)
	}
	m.mu.Unlock()
}
