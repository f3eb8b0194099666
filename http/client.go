package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"kotobadb.dev/kotobadb/storage"
)

// KVClient speaks the key-value wire protocol RegisterKVRoutes serves,
// implementing storage.RemoteClient so a kotobadb process can use
// another kotobadb process as its remote L0 backend. Keys travel
// base64-encoded in the URL since they are arbitrary bytes.
type KVClient struct {
	baseURL string
	client  *http.Client
	apiKey  string
}

// NewKVClient creates a client against baseURL (e.g.
// "http://replica-1:8080").
func NewKVClient(baseURL string, timeout time.Duration, apiKey string) *KVClient {
	return &KVClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		apiKey:  apiKey,
	}
}

func encodeKey(key []byte) string {
	return base64.RawURLEncoding.EncodeToString(key)
}

func (c *KVClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return c.client.Do(req)
}

func (c *KVClient) Put(ctx context.Context, key, value []byte) error {
	resp, err := c.do(ctx, http.MethodPut, "/kv/"+encodeKey(key), value)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remote put failed: %s", resp.Status)
	}
	return nil
}

func (c *KVClient) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/kv/"+encodeKey(key), nil)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		return data, true, err
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("remote get failed: %s", resp.Status)
	}
}

func (c *KVClient) Delete(ctx context.Context, key []byte) error {
	resp, err := c.do(ctx, http.MethodDelete, "/kv/"+encodeKey(key), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("remote delete failed: %s", resp.Status)
	}
	return nil
}

// Scan fetches all entries under prefix. The server returns them in
// ascending key order, which storage.Remote relies on.
func (c *KVClient) Scan(ctx context.Context, prefix []byte) ([]storage.Entry, error) {
	path := "/kv?prefix=" + url.QueryEscape(encodeKey(prefix))
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote scan failed: %s", resp.Status)
	}

	var wire []wireEntry
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, err
	}
	entries := make([]storage.Entry, 0, len(wire))
	for _, w := range wire {
		key, err := base64.RawURLEncoding.DecodeString(w.Key)
		if err != nil {
			return nil, err
		}
		value, err := base64.StdEncoding.DecodeString(w.Value)
		if err != nil {
			return nil, err
		}
		entries = append(entries, storage.Entry{Key: key, Value: value})
	}
	return entries, nil
}

func (c *KVClient) Close() error { return nil }

type wireEntry struct {
	Key   string `json:"key"`   // base64 raw-url
	Value string `json:"value"` // base64 std
}

// RegisterKVRoutes serves a storage.Backend over the wire protocol
// KVClient speaks, making this process usable as a remote backend for
// another engine.
func RegisterKVRoutes(e *echo.Echo, backend storage.Backend) {
	decodeKeyParam := func(c echo.Context) ([]byte, error) {
		return base64.RawURLEncoding.DecodeString(c.Param("key"))
	}

	e.PUT("/kv/:key", func(c echo.Context) error {
		key, err := decodeKeyParam(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid key encoding")
		}
		value, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
		}
		if err := backend.Put(c.Request().Context(), key, value); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return c.NoContent(http.StatusOK)
	})

	e.GET("/kv/:key", func(c echo.Context) error {
		key, err := decodeKeyParam(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid key encoding")
		}
		value, ok, err := backend.Get(c.Request().Context(), key)
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		if !ok {
			return c.NoContent(http.StatusNotFound)
		}
		return c.Blob(http.StatusOK, "application/octet-stream", value)
	})

	e.DELETE("/kv/:key", func(c echo.Context) error {
		key, err := decodeKeyParam(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid key encoding")
		}
		if err := backend.Delete(c.Request().Context(), key); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return c.NoContent(http.StatusOK)
	})

	e.GET("/kv", func(c echo.Context) error {
		prefixParam := c.QueryParam("prefix")
		prefix, err := base64.RawURLEncoding.DecodeString(prefixParam)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid prefix encoding")
		}
		it, err := backend.Scan(c.Request().Context(), prefix)
		if err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		defer it.Close()

		var out []wireEntry
		for it.Next() {
			entry := it.Entry()
			out = append(out, wireEntry{
				Key:   base64.RawURLEncoding.EncodeToString(entry.Key),
				Value: base64.StdEncoding.EncodeToString(entry.Value),
			})
		}
		if err := it.Err(); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return c.JSON(http.StatusOK, out)
	})
}
