package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/store"

	"github.com/go-redis/redis/v8"
)

// Client is a Redis-backed store.KV. Entries never expire.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// NewClient creates a new Redis client and verifies the connection
func NewClient(addr, password string, db int, namespace string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(rdb, namespace), nil
}

// NewWithClient wraps an existing redis client
func NewWithClient(rdb *redis.Client, namespace string) *Client {
	return &Client{rdb: rdb, namespace: namespace}
}

func (c *Client) key(key string) string {
	return fmt.Sprintf("storefront:%s:%s", c.namespace, key)
}

// Get returns the value stored under key
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

// Put stores value under key without expiry
func (c *Client) Put(ctx context.Context, key string, value []byte) error {
	if err := c.rdb.Set(ctx, c.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes key
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.key(key)).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
