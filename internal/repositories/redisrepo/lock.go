package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	ErrLockNotAcquired = errors.New("lock held by another run")
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type LockRepository struct {
	client *redis.Client
	prefix string
}

func NewLockRepository(client *redis.Client) *LockRepository {
	return &LockRepository{
		client: client,
		prefix: "treasury:",
	}
}

// AcquireAggregation takes the per-treasury aggregation lock. The returned
// release func must be called once aggregation is done.
func (r *LockRepository) AcquireAggregation(ctx context.Context, treasuryID int64, token string, ttl time.Duration) (func(context.Context) error, error) {
	key := r.getAggregationKey(treasuryID)

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock in redis: %w", err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release lock in redis: %w", err)
		}
		return nil
	}
	return release, nil
}

func (r *LockRepository) getAggregationKey(treasuryID int64) string {
	return r.prefix + strconv.FormatInt(treasuryID, 10) + ":aggregation:lock"
}
