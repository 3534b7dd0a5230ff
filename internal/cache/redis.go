package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyPrefix namespaces proxy entries in a shared redis instance
const keyPrefix = "rpcshield:"

// minStaleRetention is the floor for how long an expired entry stays
// available for stale-serving in redis.
const minStaleRetention = 5 * time.Minute

// RedisStore is a redis-backed store. Entries are JSON-marshalled; the redis
// key TTL is the entry TTL plus a stale retention window, so logically
// expired entries can still be served while the upstream is down.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a redis-backed store and verifies connectivity
func NewRedisStore(ctx context.Context, addr string, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisStore{
		client: client,
		logger: logger.With().Str("component", "redis-store").Logger(),
	}, nil
}

// Lookup retrieves an entry and reports its freshness
func (rs *RedisStore) Lookup(ctx context.Context, key string) (*Entry, LookupStatus) {
	data, err := rs.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			rs.logger.Warn().Err(err).Msg("redis get failed")
		}
		return nil, LookupMiss
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		rs.logger.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, dropping")
		rs.client.Del(ctx, keyPrefix+key)
		return nil, LookupMiss
	}

	if !entry.Fresh(time.Now()) {
		return &entry, LookupStale
	}
	return &entry, LookupFresh
}

// Put stores an entry with TTL plus stale retention
func (rs *RedisStore) Put(ctx context.Context, key string, entry *Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		rs.logger.Error().Err(err).Msg("failed to marshal cache entry")
		return
	}

	retention := entry.TTL + 10*entry.TTL
	if retention < minStaleRetention {
		retention = minStaleRetention
	}

	if err := rs.client.Set(ctx, keyPrefix+key, data, retention).Err(); err != nil {
		rs.logger.Warn().Err(err).Msg("redis set failed")
	}
}

// Close closes the redis client
func (rs *RedisStore) Close() {
	rs.client.Close()
}
