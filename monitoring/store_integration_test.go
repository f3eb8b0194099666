//go:build integration

package monitoring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "kotobadb",
			"POSTGRES_PASSWORD": "kotobadb",
			"POSTGRES_DB":       "monitoring",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("host=%s port=%s user=kotobadb password=kotobadb dbname=monitoring sslmode=disable",
		host, port.Port())
	return dsn, func() { _ = container.Terminate(ctx) }
}

func TestHistoryStore_SaveAndQueryReports(t *testing.T) {
	dsn, cleanup := setupPostgres(t)
	defer cleanup()

	store, err := OpenHistoryStore(dsn)
	require.NoError(t, err)

	report := Report{
		Overall: StatusDegraded,
		Checks: map[string]CheckResult{
			"cache": {Status: StatusDegraded, Message: "cache unreachable"},
		},
		CheckedAt: time.Now(),
	}
	require.NoError(t, store.SaveReport(report))
	require.NoError(t, store.SaveSamples(map[string]int64{"queries_total": 42}, map[string]float64{"cache_bytes": 1024}))

	records, err := store.RecentReports(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "degraded", records[0].Overall)
	assert.Contains(t, records[0].Detail, "cache")
}
