//go:build integration

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRabbitMQContainer starts a RabbitMQ container for testing
func setupRabbitMQContainer(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-management-alpine",
		ExposedPorts: []string{"5672/tcp"},
		Env: map[string]string{
			"RABBITMQ_DEFAULT_USER": "guest",
			"RABBITMQ_DEFAULT_PASS": "guest",
		},
		WaitingFor: wait.ForLog("Server startup complete").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start RabbitMQ container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	url := fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
	cleanup := func() {
		_ = container.Terminate(ctx)
	}
	return url, cleanup
}

func TestRabbitMQService_PublishConsumeRoundTrip(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	svc, err := NewRabbitMQService(RabbitConfig{URL: url, QueuePrefix: "test.replication"})
	require.NoError(t, err)
	defer svc.Close()

	sent := ReplicationItem{
		ID:         "it-1",
		TxID:       "tx-roundtrip",
		TargetNode: "replica-1",
		Payload:    []byte(`{"op":"insert"}`),
		EnqueuedAt: time.Now(),
	}
	require.NoError(t, svc.Publish(sent))

	depth, err := svc.QueueDepth("replica-1")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	deliveries, err := svc.Consume("replica-1")
	require.NoError(t, err)

	select {
	case d := <-deliveries:
		var got ReplicationItem
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, sent.TxID, got.TxID)
		require.NoError(t, d.Ack(false))
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestRabbitMQService_QueuesAreDurablePerNode(t *testing.T) {
	url, cleanup := setupRabbitMQContainer(t)
	defer cleanup()

	svc, err := NewRabbitMQService(RabbitConfig{URL: url, QueuePrefix: "test.replication"})
	require.NoError(t, err)
	defer svc.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Publish(ReplicationItem{
			ID:         fmt.Sprintf("it-%d", i),
			TxID:       fmt.Sprintf("tx-%d", i),
			TargetNode: "replica-2",
			EnqueuedAt: time.Now(),
		}))
	}

	depth, err := svc.QueueDepth("replica-2")
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
}
