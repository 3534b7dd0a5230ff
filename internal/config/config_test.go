package config

import (
	"testing"
)

func TestLoad_Endpoints(t *testing.T) {
	cfg, err := Load([]string{
		"RPC_NODE_ETHEREUM=https://eth.example.com/rpc",
		"CACHE_TIME_ETHEREUM=3",
		"RPC_NODE_POLYGON=https://polygon.example.com",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Endpoints) != 2 {
		t.Fatalf("endpoints = %d, want 2", len(cfg.Endpoints))
	}

	eth := cfg.Endpoints[0]
	if eth.Name != "ethereum" {
		t.Errorf("name = %s, want ethereum", eth.Name)
	}
	if eth.URL != "https://eth.example.com/rpc" {
		t.Errorf("url = %s", eth.URL)
	}
	if eth.CacheTime != 3 {
		t.Errorf("cacheTime = %d, want 3", eth.CacheTime)
	}

	poly := cfg.Endpoints[1]
	if poly.Name != "polygon" {
		t.Errorf("name = %s, want polygon", poly.Name)
	}
	if poly.CacheTime != 0 {
		t.Errorf("cacheTime = %d, want 0 (default applies)", poly.CacheTime)
	}
	if got := poly.GetCacheTimeDuration(cfg.GetDefaultCacheTimeDuration()); got != cfg.GetDefaultCacheTimeDuration() {
		t.Errorf("effective TTL = %v, want default %v", got, cfg.GetDefaultCacheTimeDuration())
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"RPC_NODE_ETH=http://localhost:8545"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Host != DefaultHost {
		t.Errorf("host = %s", cfg.Host)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.CacheBackend != BackendMemory {
		t.Errorf("backend = %s", cfg.CacheBackend)
	}
	if cfg.LockTimeout != DefaultLockTimeout {
		t.Errorf("lockTimeout = %d", cfg.LockTimeout)
	}
	if cfg.MaxBodySize != DefaultMaxBodySize {
		t.Errorf("maxBodySize = %d", cfg.MaxBodySize)
	}
}

func TestLoad_NoEndpoints(t *testing.T) {
	if _, err := Load([]string{"HOST=127.0.0.1"}); err == nil {
		t.Fatal("expected error when no endpoints configured")
	}
}

func TestLoad_RedisBackendRequiresAddr(t *testing.T) {
	_, err := Load([]string{
		"RPC_NODE_ETH=http://localhost:8545",
		"CACHE_BACKEND=redis",
	})
	if err == nil {
		t.Fatal("expected error when redis backend has no address")
	}

	cfg, err := Load([]string{
		"RPC_NODE_ETH=http://localhost:8545",
		"CACHE_BACKEND=redis",
		"REDIS_ADDR=localhost:6379",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CacheBackend != BackendRedis {
		t.Errorf("backend = %s", cfg.CacheBackend)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := [][]string{
		{"RPC_NODE_ETH=http://localhost:8545", "PORT=notaport"},
		{"RPC_NODE_ETH=http://localhost:8545", "CACHE_TIME_ETH=abc"},
		{"RPC_NODE_ETH=http://localhost:8545", "LOG_LEVEL=verbose"},
		{"RPC_NODE_ETH=http://localhost:8545", "CACHE_BACKEND=leveldb"},
		{"RPC_NODE_ETH="},
	}
	for _, environ := range cases {
		if _, err := Load(environ); err == nil {
			t.Errorf("Load(%v): expected error", environ)
		}
	}
}
