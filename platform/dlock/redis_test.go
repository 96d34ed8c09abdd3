package dlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, time.Minute), srv
}

func TestRedisLockerMutualExclusion(t *testing.T) {
	ctx := context.Background()
	locker, _ := newTestLocker(t)

	lock, ok, err := locker.TryAcquire(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)

	// A second acquire of the same key must miss without erroring.
	_, ok2, err := locker.TryAcquire(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok2)

	// A different key is independent.
	other, ok3, err := locker.TryAcquire(ctx, 43)
	require.NoError(t, err)
	require.True(t, ok3)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))

	// Released key can be taken again.
	again, ok4, err := locker.TryAcquire(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok4)
	require.NoError(t, again.Release(ctx))
}

func TestRedisLockReleaseIgnoresStolenKey(t *testing.T) {
	ctx := context.Background()
	locker, srv := newTestLocker(t)

	lock, ok, err := locker.TryAcquire(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	// Simulate TTL expiry followed by another holder taking the lock.
	srv.FastForward(2 * time.Minute)
	second, ok, err := locker.TryAcquire(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	// The stale holder's release must not free the new holder's lock.
	require.NoError(t, lock.Release(ctx))
	_, ok, err = locker.TryAcquire(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(ctx))
}
