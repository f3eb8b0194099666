package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kotobadb.dev/kotobadb/auth"
	"kotobadb.dev/kotobadb/engine"
	"kotobadb.dev/kotobadb/graph"
	"kotobadb.dev/kotobadb/graph/schema"
	"kotobadb.dev/kotobadb/monitoring"
	"kotobadb.dev/kotobadb/storage"
	"kotobadb.dev/kotobadb/txlog"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	backend := storage.NewMemory()
	store := graph.NewStore(backend)
	log := txlog.NewLog(backend, "n1", 1<<50, nil)
	registry := schema.NewRegistry(backend)
	eng := engine.New(store, log, registry, engine.Options{NodeID: "n1"})

	authCfg := auth.DefaultConfig()
	authCfg.JWTSecret = "test-secret"
	authCfg.RefreshTokenEnabled = false
	authSvc := auth.NewAuthService(authCfg, auth.NewMemoryStore())

	health := monitoring.NewAggregator(time.Minute, logrus.New())
	health.RunOnce(context.Background())

	cfg := DefaultServerConfig()
	return NewServer(eng, authSvc, health, cfg, logrus.New())
}

func postJSON(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServer_QueryEndToEnd(t *testing.T) {
	s := newTestServer(t)

	rec := postJSON(t, s, "/query", `{"query": "INSERT (p:Person {name: \"Alice\", age: 30})"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = postJSON(t, s, "/query", `{"query": "MATCH (p:Person) RETURN p.name, p.age"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp queryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Len(t, resp.Results[0].Rows, 1)
	assert.Equal(t, "Alice", resp.Results[0].Rows[0]["p.name"])
	assert.Equal(t, float64(30), resp.Results[0].Rows[0]["p.age"])
}

func TestServer_QueryParseErrorIsBadRequest(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s, "/query", `{"query": "MATCH MATCH MATCH"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_ExplainReturnsPlan(t *testing.T) {
	s := newTestServer(t)
	rec := postJSON(t, s, "/explain", `{"query": "MATCH (n:Person) RETURN n"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "NodeScan")
}

func TestServer_HealthReflectsAggregator(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestServer_LoginIssuesToken(t *testing.T) {
	s := newTestServer(t)
	_, err := s.Auth.CreateUser(auth.CreateUserRequest{Username: "ada", Password: "s3cretpw1"})
	require.NoError(t, err)

	rec := postJSON(t, s, "/auth/login", `{"username": "ada", "password": "s3cretpw1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "access_token")

	rec = postJSON(t, s, "/auth/login", `{"username": "ada", "password": "nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestKVRoutes_RoundTripThroughClient(t *testing.T) {
	backend := storage.NewMemory()
	e := NewEchoServer(DefaultServerConfig())
	RegisterKVRoutes(e, backend)
	srv := httptest.NewServer(e)
	defer srv.Close()

	client := NewKVClient(srv.URL, 5*time.Second, "")
	remote := storage.NewRemote(client, storage.Capabilities{})
	ctx := context.Background()

	key := []byte("V:\x00binary\x00key")
	require.NoError(t, remote.Put(ctx, key, []byte("value-1")))

	got, ok, err := remote.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("value-1"), got)

	it, err := remote.Scan(ctx, []byte("V:"))
	require.NoError(t, err)
	defer it.Close()
	require.True(t, it.Next())
	assert.Equal(t, key, it.Entry().Key)

	require.NoError(t, remote.Delete(ctx, key))
	_, ok, err = remote.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}
