package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockKeyPrefix        = "lock:"
	idempotencyKeyPrefix = "idem:"
	idempotencyKeyTTL    = 24 * time.Hour
	lockRetryInterval    = 25 * time.Millisecond
)

// Deletes the lock only while it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisAdapter shares locks and dedup keys across server instances.
type RedisAdapter struct {
	client  *redis.Client
	lockTTL time.Duration
	log     *zap.Logger
}

func NewRedisAdapter(client *redis.Client, lockTTL time.Duration, log *zap.Logger) *RedisAdapter {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisAdapter{client: client, lockTTL: lockTTL, log: log}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) DeleteIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

// AcquireLock polls until the key is free or ctx ends. The lock expires on
// its own after lockTTL if the holder never releases it.
func (r *RedisAdapter) AcquireLock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { r.release(redisKey, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

// release is best effort: on failure the lock stays held until lockTTL.
func (r *RedisAdapter) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.lockTTL)
	defer cancel()

	if err := releaseLockScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
		r.log.Warn("failed to release lock, it expires on its own",
			zap.String("key", redisKey), zap.Duration("ttl", r.lockTTL), zap.Error(err))
	}
}
