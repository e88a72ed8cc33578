package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient is the subset of *redis.Client the cache needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache stores gob-encoded values in Redis under a key prefix. Gob
// honors GobEncoder, so decimal amounts come back with every digit they were
// stored with, the same as from the in-process LRU.
type RedisCache[T any] struct {
	client redisClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient opens a client for addr and checks it with PING.
func NewRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func NewRedisCache[T any](client redisClient, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Redis cache get failed", "key", key, "error", err)
		return zero, false
	}

	var data T
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		c.logger.WarnContext(ctx, "Redis cache entry undecodable", "key", key, "error", err)
		return zero, false
	}
	return data, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		c.logger.WarnContext(ctx, "Redis cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, buf.Bytes(), c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache set failed", "key", key, "error", err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache delete failed", "key", key, "error", err)
	}
}
