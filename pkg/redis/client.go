package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/frontier/pkg/config"
)

// dialTimeout bounds the connection check in New
const dialTimeout = 5 * time.Second

// Client is the redis connection behind the artifact keyspace.
// A disabled Client is valid: every keyspace call returns ErrDisabled.
// ⭐ SSOT: Redis connections are managed here only
type Client struct {
	rdb     *redis.Client
	addr    string
	enabled bool
}

// New connects when REDIS_ENABLED is set and fails fast if the server
// does not answer within dialTimeout
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{}, nil
	}

	addr := fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}

	return &Client{rdb: rdb, addr: addr, enabled: true}, nil
}

// Wrap adopts an existing go-redis client (tests use a mock)
func Wrap(rdb *redis.Client) *Client {
	c := &Client{rdb: rdb, enabled: rdb != nil}
	if rdb != nil {
		c.addr = rdb.Options().Addr
	}
	return c
}

// Ping checks the connection for `quant status`
func (c *Client) Ping(ctx context.Context) error {
	if !c.enabled {
		return ErrDisabled
	}
	return c.rdb.Ping(ctx).Err()
}

// Addr is host:port, empty when disabled
func (c *Client) Addr() string {
	return c.addr
}

func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled reports whether artifacts can be stored in redis
func (c *Client) Enabled() bool {
	return c.enabled
}

// Redis returns the underlying go-redis client
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
