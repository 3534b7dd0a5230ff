package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	endpointKeyPrefix = "RPC_NODE_"
	ttlKeyPrefix      = "CACHE_TIME_"
)

// Load builds the configuration from the given environment, typically
// os.Environ(). Endpoint names are the RPC_NODE_ suffixes lower-cased.
func Load(environ []string) (*Config, error) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}

	cfg := &Config{
		Host:         env["HOST"],
		LogLevel:     env["LOG_LEVEL"],
		RedisAddr:    env["REDIS_ADDR"],
		CacheBackend: Backend(env["CACHE_BACKEND"]),
	}

	var err error
	if cfg.Port, err = intVar(env, "PORT"); err != nil {
		return nil, err
	}
	if cfg.DefaultCacheTime, err = intVar(env, "DEFAULT_CACHE_TIME"); err != nil {
		return nil, err
	}
	if cfg.CacheMaxEntries, err = intVar(env, "CACHE_MAX_ENTRIES"); err != nil {
		return nil, err
	}
	if cfg.LockTimeout, err = intVar(env, "LOCK_TIMEOUT_MS"); err != nil {
		return nil, err
	}
	if cfg.UpstreamTimeout, err = intVar(env, "UPSTREAM_TIMEOUT_MS"); err != nil {
		return nil, err
	}
	if cfg.RatioLogInterval, err = intVar(env, "RATIO_LOG_INTERVAL"); err != nil {
		return nil, err
	}
	if v, ok := env["MAX_BODY_SIZE"]; ok {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_BODY_SIZE: %w", err)
		}
		cfg.MaxBodySize = size
	} else {
		cfg.MaxBodySize = -1
	}

	if err := loadEndpoints(cfg, env); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadEndpoints collects RPC_NODE_<NAME> / CACHE_TIME_<NAME> pairs
func loadEndpoints(cfg *Config, env map[string]string) error {
	names := make([]string, 0)
	for key := range env {
		if strings.HasPrefix(key, endpointKeyPrefix) && len(key) > len(endpointKeyPrefix) {
			names = append(names, key[len(endpointKeyPrefix):])
		}
	}
	// Deterministic endpoint order regardless of map iteration
	sort.Strings(names)

	for _, name := range names {
		ep := EndpointConfig{
			Name: strings.ToLower(name),
			URL:  env[endpointKeyPrefix+name],
		}
		if raw, ok := env[ttlKeyPrefix+name]; ok {
			ttl, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid %s%s: %w", ttlKeyPrefix, name, err)
			}
			ep.CacheTime = ttl
		}
		cfg.Endpoints = append(cfg.Endpoints, ep)
	}
	return nil
}

// intVar parses an optional integer environment variable, 0 when unset
func intVar(env map[string]string, key string) (int, error) {
	raw, ok := env[key]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.MaxBodySize < 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.DefaultCacheTime == 0 {
		cfg.DefaultCacheTime = DefaultCacheTime
	}
	if cfg.CacheMaxEntries == 0 {
		cfg.CacheMaxEntries = DefaultCacheMaxEntries
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendMemory
	}
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.UpstreamTimeout == 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if cfg.RatioLogInterval == 0 {
		cfg.RatioLogInterval = DefaultRatioLogInterval
	}
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("logLevel must be one of: debug, info, warn, error")
	}

	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("at least one RPC_NODE_<NAME> endpoint is required")
	}

	seen := make(map[string]bool)
	for _, ep := range cfg.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("endpoint '%s': URL is required", ep.Name)
		}
		if seen[ep.Name] {
			return fmt.Errorf("duplicate endpoint name '%s'", ep.Name)
		}
		seen[ep.Name] = true
		if ep.CacheTime < 0 {
			return fmt.Errorf("endpoint '%s': cache time must be non-negative", ep.Name)
		}
	}

	switch cfg.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("cache backend must be 'memory' or 'redis'")
	}

	if cfg.DefaultCacheTime < 0 {
		return fmt.Errorf("defaultCacheTime must be non-negative")
	}
	if cfg.CacheMaxEntries < 0 {
		return fmt.Errorf("cacheMaxEntries must be non-negative")
	}
	if cfg.LockTimeout < 0 {
		return fmt.Errorf("lockTimeout must be non-negative")
	}
	if cfg.UpstreamTimeout < 0 {
		return fmt.Errorf("upstreamTimeout must be non-negative")
	}

	return nil
}
