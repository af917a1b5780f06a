// Package cache connects to Dragonfly/Redis, which backs the progress
// listing cache and the session store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the client. Zero timeouts use defaults.
type Options struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// ErrMiss is returned by GetJSON when the key does not exist.
var ErrMiss = errors.New("cache miss")

// Cache wraps a Redis/Dragonfly client.
type Cache struct {
	Client *redis.Client
}

// FromClient wraps an existing client.
func FromClient(client *redis.Client) *Cache {
	return &Cache{Client: client}
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// ClientOptions builds redis client options from opts.
func ClientOptions(opts Options) (*redis.Options, error) {
	ro, err := ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}

	ro.DialTimeout = orDefault(opts.DialTimeout, 5*time.Second)
	ro.ReadTimeout = orDefault(opts.ReadTimeout, 3*time.Second)
	ro.WriteTimeout = orDefault(opts.WriteTimeout, 3*time.Second)
	return ro, nil
}

// New creates a client and verifies connectivity.
func New(ctx context.Context, opts Options) (*Cache, error) {
	ro, err := ClientOptions(opts)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(ro)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// GetJSON decodes the value at key into dst. It returns ErrMiss when the key
// is absent.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) error {
	data, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON stores v at key as JSON for ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := c.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if err := c.Client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
