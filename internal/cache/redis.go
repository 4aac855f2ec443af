package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/log"
)

// RedisCache stores JSON-encoded values in Redis under a key prefix so
// several worker processes share one rate cache.
type RedisCache[T any] struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisClient parses url (redis://host:port/db or bare host:port) and
// verifies the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		opt, err = redis.ParseURL("redis://" + url)
		if err != nil {
			opt = &redis.Options{Addr: url}
		}
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisCache[T any](client redis.UniversalClient, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache[T]{
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		timeout: 500 * time.Millisecond,
		logger:  logger,
	}
}

func (c *RedisCache[T]) key(k string) string { return c.prefix + k }

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "Redis cache get failed", "key", key, log.FieldError, err)
		}
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.WarnContext(ctx, "Redis cache entry undecodable", "key", key, log.FieldError, err)
		return zero, false
	}
	return v, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.WarnContext(ctx, "Redis cache encode failed", "key", key, log.FieldError, err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.SetEx(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache set failed", "key", key, log.FieldError, err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache delete failed", "key", key, log.FieldError, err)
	}
}

// Size counts keys under the prefix. It scans the keyspace and is meant for
// diagnostics only.
func (c *RedisCache[T]) Size(ctx context.Context) int {
	n := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis cache scan failed", log.FieldError, err)
	}
	return n
}
