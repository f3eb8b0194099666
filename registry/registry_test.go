package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/storage"
)

func TestDefaultRegistryOpensMemory(t *testing.T) {
	r := Default()
	backend, err := r.Open("memory", nil)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()
	require.NoError(t, backend.Put(ctx, []byte("k"), []byte("v")))
	v, ok, err := backend.Get(ctx, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}

func TestOpenUnknownBackendFails(t *testing.T) {
	r := Default()
	_, err := r.Open("couch", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestRegisterAndDescribe(t *testing.T) {
	r := New()
	r.Register(Descriptor{
		Name:         "fake",
		Capabilities: storage.Capabilities{SupportsTTL: true},
	}, func(map[string]string) (storage.Backend, error) {
		return storage.NewMemory(), nil
	})

	d, ok := r.Describe("fake")
	require.True(t, ok)
	assert.True(t, d.Capabilities.SupportsTTL)

	names := r.FindByCapability(func(c storage.Capabilities) bool { return c.SupportsTTL })
	assert.Equal(t, []string{"fake"}, names)
	assert.Equal(t, []string{"fake"}, r.Names())
}
