// Package redis implements the node's cache, bus, lock and rate limit
// interfaces using go-redis/v9.
//
// Every key is namespaced, "tiqet" by default, so nodes of different chains
// can share one server:
//
//	{ns}:event:{id}         cached event snapshot
//	{ns}:lock:{name}        lock and lease tokens
//	{ns}:ratelimit:{key}    sliding-window members
//
// Bus channels and streams are used as named by the domain package.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes keys when ClientConfig.Namespace is empty.
const DefaultNamespace = "tiqet"

// minServerMajor is the first Redis release with streams, which the signal
// bus needs for the receipt stream.
const minServerMajor = 5

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	Namespace  string
}

// Client is a connected go-redis client plus the key namespace every
// component of this package writes under.
type Client struct {
	rdb *redis.Client
	ns  string
}

// New connects, then refuses servers too old to run the bus streams.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	info, err := rdb.Info(ctx, "server").Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	if major, ok := serverMajor(info); ok && major < minServerMajor {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: server %s is version %d, streams need %d or later", cfg.Addr, major, minServerMajor)
	}
	return newClient(rdb, cfg.Namespace), nil
}

func newClient(rdb *redis.Client, ns string) *Client {
	ns = strings.Trim(ns, ":")
	if ns == "" {
		ns = DefaultNamespace
	}
	return &Client{rdb: rdb, ns: ns}
}

// key joins parts under the client's namespace.
func (c *Client) key(parts ...string) string {
	return c.ns + ":" + strings.Join(parts, ":")
}

// serverMajor reads the major version from an INFO server reply.
func serverMajor(info string) (int, bool) {
	for _, line := range strings.Split(info, "\n") {
		v, ok := strings.CutPrefix(strings.TrimSpace(line), "redis_version:")
		if !ok {
			continue
		}
		major, _, _ := strings.Cut(v, ".")
		n, err := strconv.Atoi(major)
		return n, err == nil
	}
	return 0, false
}

// Ping implements the health check of the HTTP API.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
