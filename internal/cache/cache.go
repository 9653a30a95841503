// Package cache provides optional read-through caching of short code lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/redis/go-redis/v9"

	"github.com/darkodi/linkify/internal/model"
)

// Cache stores mappings by short code. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, code string) (*model.URLMapping, bool, error)
	Set(ctx context.Context, m *model.URLMapping) error
	Delete(ctx context.Context, code string) error
	Close() error
}

// LocalCache is an in-process cache on ristretto. Every entry costs 1, so
// maxEntries bounds the number of cached mappings.
type LocalCache struct {
	client *ristretto.Cache
	ttl    time.Duration
}

// NewLocal creates an in-process cache.
func NewLocal(maxEntries, numCounters int64, ttl time.Duration) (*LocalCache, error) {
	client, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create local cache: %w", err)
	}
	return &LocalCache{client: client, ttl: ttl}, nil
}

func (c *LocalCache) Get(_ context.Context, code string) (*model.URLMapping, bool, error) {
	v, ok := c.client.Get(code)
	if !ok {
		return nil, false, nil
	}
	m, ok := v.(model.URLMapping)
	if !ok {
		c.client.Del(code)
		return nil, false, nil
	}
	return &m, true, nil
}

// Set stores a copy of m. Ristretto admission is asynchronous and may drop the write.
func (c *LocalCache) Set(_ context.Context, m *model.URLMapping) error {
	c.client.SetWithTTL(m.ShortCode, *m, 1, c.ttl)
	return nil
}

func (c *LocalCache) Delete(_ context.Context, code string) error {
	c.client.Del(code)
	return nil
}

// Wait blocks until buffered writes are applied.
func (c *LocalCache) Wait() {
	c.client.Wait()
}

func (c *LocalCache) Close() error {
	c.client.Close()
	return nil
}

// RedisCache keeps JSON encoded mappings under prefix+code with a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis uses an already connected client. The client is not closed by Close.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, code string) (*model.URLMapping, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+code).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var m model.URLMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}
	return &m, true, nil
}

func (c *RedisCache) Set(ctx context.Context, m *model.URLMapping) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("cache marshal error: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+m.ShortCode, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set error: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, c.prefix+code).Err(); err != nil {
		return fmt.Errorf("cache delete error: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return nil
}
