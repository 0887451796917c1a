// Package redis implements the connection lease (§5) and one-time OAuth
// state storage (§4.3, §6) on top of go-redis, grounded on the teacher's
// adapters/implementation/database/redis consumer pattern.
package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mredis"
)

const leaseKeyPrefix = "connection_lease:"

// DefaultLeaseTTL guards against orphaned leases from crashed workers
// (§5: default 10 minutes).
const DefaultLeaseTTL = 10 * time.Minute

// LeaseRepository is the non-blocking, per-connection exclusive lock backing
// the sync engine's "a connection never runs concurrently" invariant
// (§5, §8 property 10).
type LeaseRepository interface {
	// Acquire returns apperr.LeaseContention if another worker already
	// holds the connection's lease.
	Acquire(ctx context.Context, connectionID uuid.UUID, ttl time.Duration) error
	Release(ctx context.Context, connectionID uuid.UUID) error
}

type RedisLeaseRepository struct {
	conn *mredis.RedisConnection
}

func NewRedisLeaseRepository(rc *mredis.RedisConnection) *RedisLeaseRepository {
	return &RedisLeaseRepository{conn: rc}
}

func (r *RedisLeaseRepository) Acquire(ctx context.Context, connectionID uuid.UUID, ttl time.Duration) error {
	client, err := r.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}

	ok, err := client.SetNX(ctx, leaseKeyPrefix+connectionID.String(), "1", ttl).Result()
	if err != nil {
		return err
	}

	if !ok {
		return apperr.LeaseContention{ConnectionID: connectionID.String()}
	}

	return nil
}

func (r *RedisLeaseRepository) Release(ctx context.Context, connectionID uuid.UUID) error {
	client, err := r.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	err = client.Del(ctx, leaseKeyPrefix+connectionID.String()).Err()
	if err == redis.Nil {
		return nil
	}

	return err
}
