package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "kotobadb.db")
	b, err := OpenBolt(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return map[string]Backend{
		"memory": NewMemory(),
		"bolt":   b,
	}
}

func TestBackend_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, backend.Put(ctx, []byte("V:1"), []byte("alice")))
			v, ok, err := backend.Get(ctx, []byte("V:1"))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("alice"), v)
		})
	}
}

func TestBackend_GetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := backend.Get(ctx, []byte("V:missing"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackend_Delete(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, backend.Put(ctx, []byte("V:1"), []byte("v")))
			require.NoError(t, backend.Delete(ctx, []byte("V:1")))
			_, ok, err := backend.Get(ctx, []byte("V:1"))
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestBackend_ScanOrdersLexicographically(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			keys := []string{"V:3", "V:1", "V:2"}
			for _, k := range keys {
				require.NoError(t, backend.Put(ctx, []byte(k), []byte(k)))
			}
			it, err := backend.Scan(ctx, []byte("V:"))
			require.NoError(t, err)
			defer it.Close()

			var got []string
			for it.Next() {
				got = append(got, string(it.Entry().Key))
			}
			require.NoError(t, it.Err())
			assert.Equal(t, []string{"V:1", "V:2", "V:3"}, got)
		})
	}
}

func TestBackend_ScanNoMatchingPrefixReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, backend.Put(ctx, []byte("V:1"), []byte("v")))
			it, err := backend.Scan(ctx, []byte("E:"))
			require.NoError(t, err)
			defer it.Close()
			assert.False(t, it.Next())
		})
	}
}

func TestBackend_BinarySafeKeysAndValues(t *testing.T) {
	ctx := context.Background()
	key := []byte("V:\x00binary\x00key")
	value := []byte("\x00\x01\x02value\x00")
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, backend.Put(ctx, key, value))
			got, ok, err := backend.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, value, got)
		})
	}
}
