package dlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisTTL bounds how long a crashed holder can block the singleton.
// It must exceed the longest expected solver round-trip.
const DefaultRedisTTL = 10 * time.Minute

// releaseScript deletes the key only if it still carries our token, so an
// expired-and-reacquired lock is never released by the previous holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX + per-holder token.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a Redis-backed locker with the given TTL.
// A non-positive TTL falls back to DefaultRedisTTL.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

var _ Locker = (*RedisLocker)(nil)

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

// TryAcquire attempts SET NX on "dlock:<key>".
func (l *RedisLocker) TryAcquire(ctx context.Context, key int64) (Lock, bool, error) {
	name := fmt.Sprintf("dlock:%d", key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, name, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLock{client: l.client, key: name, token: token}, true, nil
}

// Release deletes the key if this holder still owns it.
func (rl *redisLock) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, rl.client, []string{rl.key}, rl.token).Err()
}
