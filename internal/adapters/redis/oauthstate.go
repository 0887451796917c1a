package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/banktrail/ingestor/internal/platform/apperr"
	"github.com/banktrail/ingestor/internal/platform/mredis"
)

const oauthStateKeyPrefix = "oauth_state:"

// DefaultOAuthStateTTL bounds how long a pending authorization redirect may
// remain outstanding before its state token expires (§4.3).
const DefaultOAuthStateTTL = 10 * time.Minute

// OAuthStateRepository stores the one-time state token independently of the
// Connection row's oauth_state column, grounded on the OIDC flow handler's
// Redis SET+GetDel pattern: a value surviving in Redis after a crash
// mid-callback still expires on its own.
type OAuthStateRepository interface {
	Put(ctx context.Context, state string, ttl time.Duration) error
	// Consume atomically deletes-and-returns the state; a second call with
	// the same token fails, preventing callback replay.
	Consume(ctx context.Context, state string) (bool, error)
}

type RedisOAuthStateRepository struct {
	conn *mredis.RedisConnection
}

func NewRedisOAuthStateRepository(rc *mredis.RedisConnection) *RedisOAuthStateRepository {
	return &RedisOAuthStateRepository{conn: rc}
}

// GenerateState returns a fresh cryptographically random state token.
func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

func (r *RedisOAuthStateRepository) Put(ctx context.Context, state string, ttl time.Duration) error {
	client, err := r.conn.GetClient(ctx)
	if err != nil {
		return err
	}

	if ttl <= 0 {
		ttl = DefaultOAuthStateTTL
	}

	return client.Set(ctx, oauthStateKeyPrefix+state, "1", ttl).Err()
}

func (r *RedisOAuthStateRepository) Consume(ctx context.Context, state string) (bool, error) {
	client, err := r.conn.GetClient(ctx)
	if err != nil {
		return false, err
	}

	_, err = client.GetDel(ctx, oauthStateKeyPrefix+state).Result()
	if errors.Is(err, goredis.Nil) {
		return false, apperr.AuthFailure{Reason: "oauth state not recognized or already consumed"}
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
