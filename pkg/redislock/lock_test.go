package redislock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	return s, client
}

func TestLock_AcquireAndRelease(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	lock := New(client, "test:lock:net-1", nil)

	err := lock.Acquire(ctx)
	require.NoError(t, err)

	err = lock.Release(ctx)
	require.NoError(t, err)
}

func TestLock_MutualExclusion(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	first := New(client, "test:lock:net-1", nil)
	require.NoError(t, first.Acquire(ctx))

	// 第二个持有者无法获取同一把锁
	second := New(client, "test:lock:net-1", &Options{
		Expiration:    time.Second,
		RetryInterval: time.Millisecond,
		MaxRetries:    3,
	})
	err := second.Acquire(ctx)
	assert.ErrorIs(t, err, ErrLockAcquireFailed)

	// 释放后可以获取
	require.NoError(t, first.Release(ctx))
	require.NoError(t, second.Acquire(ctx))
}

func TestLock_DifferentKeysIndependent(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	a := New(client, "test:lock:net-a", nil)
	b := New(client, "test:lock:net-b", nil)

	require.NoError(t, a.Acquire(ctx))
	require.NoError(t, b.Acquire(ctx))
}

func TestLock_ReleaseNotHeld(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	lock := New(client, "test:lock:net-1", nil)
	err := lock.Release(ctx)
	assert.ErrorIs(t, err, ErrLockNotHeld)
}

func TestLock_ReleaseAfterExpiry(t *testing.T) {
	s, client := setupTestRedis(t)
	ctx := context.Background()

	lock := New(client, "test:lock:net-1", &Options{
		Expiration:    50 * time.Millisecond,
		RetryInterval: time.Millisecond,
		MaxRetries:    0,
	})
	require.NoError(t, lock.Acquire(ctx))

	// 锁过期后释放应报告未持有
	s.FastForward(100 * time.Millisecond)
	err := lock.Release(ctx)
	assert.ErrorIs(t, err, ErrLockNotHeld)
}

func TestLock_Extend(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	lock := New(client, "test:lock:net-1", nil)
	require.NoError(t, lock.Acquire(ctx))

	err := lock.Extend(ctx, time.Minute)
	require.NoError(t, err)
}
