package infra

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const idempotencyLockPrefix = "idem:lock:"

// releaseScript deletes the lock only if it still holds our token, so an
// expired holder can never release a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisKeyLocker is a cross-instance in-flight marker for idempotency keys.
type RedisKeyLocker struct {
	rdb *redis.Client
}

func NewRedisKeyLocker(rdb *redis.Client) *RedisKeyLocker {
	return &RedisKeyLocker{rdb: rdb}
}

// Acquire sets the lock with SET NX PX. ok is false when another holder has it.
func (l *RedisKeyLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, idempotencyLockPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisKeyLocker) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, l.rdb, []string{idempotencyLockPrefix + key}, token).Err()
}
