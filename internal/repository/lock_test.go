package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisLock(t *testing.T) (*miniredis.Miniredis, *RedisRunLock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisRunLock(client)
}

func TestRedisRunLock_MutualExclusion(t *testing.T) {
	_, lock := setupRedisLock(t)
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Another property is independent.
	ok, err = lock.Lock(ctx, "property:300000", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Unlock(ctx, "property:272758"))
	ok, err = lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisRunLock_TTLExpiry(t *testing.T) {
	mr, lock := setupRedisLock(t)
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "property:272758", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = lock.Lock(ctx, "property:272758", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalRunLock(t *testing.T) {
	lock := NewLocalRunLock()
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lock.Unlock(ctx, "property:272758"))
	ok, err = lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalRunLock_ExpiredEntryReacquirable(t *testing.T) {
	lock := NewLocalRunLock()
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "property:272758", time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	ok, err = lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFailoverRunLock_FallsBackWhenPrimaryDown(t *testing.T) {
	mr, redisLock := setupRedisLock(t)
	logger := zerolog.Nop()
	lock := NewFailoverRunLock(redisLock, NewLocalRunLock(), &logger)
	ctx := context.Background()

	ok, err := lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, lock.Unlock(ctx, "property:272758"))

	mr.Close()

	// Primary is gone; the local fallback still enforces exclusion.
	ok, err = lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lock.Lock(ctx, "property:272758", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
