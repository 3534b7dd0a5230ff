package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rpcshield/internal/config"
)

func newTestServer(t *testing.T, upstreamURL string) *Server {
	t.Helper()
	cfg := &config.Config{
		Host:             "127.0.0.1",
		Port:             0,
		LogLevel:         "info",
		MaxBodySize:      config.DefaultMaxBodySize,
		DefaultCacheTime: config.DefaultCacheTime,
		CacheMaxEntries:  config.DefaultCacheMaxEntries,
		CacheBackend:     config.BackendMemory,
		LockTimeout:      config.DefaultLockTimeout,
		UpstreamTimeout:  config.DefaultUpstreamTimeout,
		Endpoints:        []config.EndpointConfig{{Name: "mainnet", URL: upstreamURL}},
	}

	srv, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv
}

func TestServer_Routes(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","result":"0x1","id":1}`))
	}))
	defer upstream.Close()

	srv := newTestServer(t, upstream.URL)
	front := httptest.NewServer(srv.httpServer.Handler)
	defer front.Close()

	resp, err := http.Get(front.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || string(body) != `{"status":"ok"}` {
		t.Errorf("healthz: status=%d body=%s", resp.StatusCode, body)
	}

	resp, err = http.Get(front.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("metrics: status=%d", resp.StatusCode)
	}

	resp, err = http.Post(front.URL+"/mainnet", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"eth_chainId","id":1}`))
	if err != nil {
		t.Fatalf("POST /mainnet: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("proxy: status=%d body=%s", resp.StatusCode, body)
	}
	if got := resp.Header.Get("X-Cache-Status"); got != "MISS" {
		t.Errorf("X-Cache-Status = %q, want MISS", got)
	}
}

func TestServer_NoEndpointsFails(t *testing.T) {
	cfg := &config.Config{
		Host:             "127.0.0.1",
		Port:             0,
		CacheMaxEntries:  config.DefaultCacheMaxEntries,
		CacheBackend:     config.BackendMemory,
		DefaultCacheTime: config.DefaultCacheTime,
		Endpoints:        []config.EndpointConfig{{Name: "bad", URL: "not a url ://"}},
	}
	if _, err := New(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("New succeeded with no usable endpoints")
	}
}
