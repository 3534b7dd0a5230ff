package config

import "time"

// Backend defines the cache storage backend type
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Config represents the main configuration structure.
// All values come from environment variables; endpoints are declared with
// RPC_NODE_<NAME> / CACHE_TIME_<NAME> pairs.
type Config struct {
	Host             string
	Port             int
	LogLevel         string
	MaxBodySize      int64
	DefaultCacheTime int // seconds
	CacheMaxEntries  int
	CacheBackend     Backend
	RedisAddr        string
	LockTimeout      int // ms - bounded wait for a coalesced in-flight fetch
	UpstreamTimeout  int // ms
	RatioLogInterval int // seconds - interval for cache ratio logging, 0 disables
	Endpoints        []EndpointConfig
}

// EndpointConfig represents a single configured upstream endpoint
type EndpointConfig struct {
	Name      string
	URL       string
	CacheTime int // seconds, 0 means DefaultCacheTime
}

// Default values
const (
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 8080
	DefaultLogLevel         = "info"
	DefaultMaxBodySize      = int64(10 * 1024 * 1024)
	DefaultCacheTime        = 5 // seconds
	DefaultCacheMaxEntries  = 10000
	DefaultLockTimeout      = 5000  // ms
	DefaultUpstreamTimeout  = 30000 // ms
	DefaultRatioLogInterval = 10    // seconds
)

// GetLockTimeoutDuration returns the in-flight wait timeout as time.Duration
func (c *Config) GetLockTimeoutDuration() time.Duration {
	return time.Duration(c.LockTimeout) * time.Millisecond
}

// GetUpstreamTimeoutDuration returns the upstream request timeout as time.Duration
func (c *Config) GetUpstreamTimeoutDuration() time.Duration {
	return time.Duration(c.UpstreamTimeout) * time.Millisecond
}

// GetDefaultCacheTimeDuration returns the default per-endpoint TTL as time.Duration
func (c *Config) GetDefaultCacheTimeDuration() time.Duration {
	return time.Duration(c.DefaultCacheTime) * time.Second
}

// GetRatioLogIntervalDuration returns the cache ratio log interval as time.Duration
func (c *Config) GetRatioLogIntervalDuration() time.Duration {
	return time.Duration(c.RatioLogInterval) * time.Second
}

// GetCacheTimeDuration returns the endpoint TTL, falling back to the default
func (e *EndpointConfig) GetCacheTimeDuration(defaultTTL time.Duration) time.Duration {
	if e.CacheTime <= 0 {
		return defaultTTL
	}
	return time.Duration(e.CacheTime) * time.Second
}
