package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zatekoja/nearcare/pkg/config"
)

// Redis is optional for the API, so the connection check fails fast instead of retrying
const pingTimeout = 3 * time.Second

// Client wraps the go-redis client shared by the response cache and the registry event bus
type Client struct {
	client *redis.Client
	addr   string
}

// NewClient connects to the configured Redis and verifies it answers PING.
// Callers treat any error as "run without Redis".
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis: no configuration")
	}
	addr := cfg.RedisAddr()
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  pingTimeout,
		ReadTimeout:  pingTimeout,
		WriteTimeout: pingTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return &Client{client: client, addr: addr}, nil
}

// Client returns the underlying go-redis client
func (c *Client) Client() *redis.Client {
	return c.client
}

// Addr returns the host:port the client is connected to
func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Ping verifies the connection to Redis
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
