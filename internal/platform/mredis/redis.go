// Package mredis wraps the Redis client backing connection leases and
// one-time OAuth state tokens, modeled on the teacher's
// common/mredis/redis.go.
package mredis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/banktrail/ingestor/internal/platform/mlog"
)

// RedisConnection is a hub dealing with the Redis client connection.
type RedisConnection struct {
	ConnectionStringSource string
	Logger                 mlog.Logger

	Client    *redis.Client
	Connected bool
}

// Connect parses the connection string and pings the server.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	rc.Logger.Info("mredis: connecting to redis")

	opts, err := redis.ParseURL(rc.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("mredis: parse url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("mredis: ping: %w", err)
	}

	rc.Connected = true
	rc.Client = client

	rc.Logger.Info("mredis: connected")

	return nil
}

// GetClient returns the redis client, connecting lazily if necessary.
func (rc *RedisConnection) GetClient(ctx context.Context) (*redis.Client, error) {
	if rc.Client == nil {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.Client, nil
}
