package locking

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLock(t *testing.T) (*Lock, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client), mr
}

func TestAcquireThenDenyConcurrentOwner(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "session-1", "owner-a", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock.Acquire(ctx, "session-1", "owner-b", 10*time.Second)
	require.NoError(t, err)
	require.False(t, ok, "a second owner must not acquire a held lock")
}

func TestReleaseOnlyByOwner(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "session-1", "owner-a", 10*time.Second)
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx, "session-1", "owner-b"))
	ok, err := lock.Acquire(ctx, "session-1", "owner-c", 10*time.Second)
	require.NoError(t, err)
	require.False(t, ok, "release by the wrong owner must be a no-op")

	require.NoError(t, lock.Release(ctx, "session-1", "owner-a"))
	ok, err = lock.Acquire(ctx, "session-1", "owner-c", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok, "release by the true owner frees the lock")
}

func TestAcquireWithRetryExhausted(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "session-1", "owner-a", 10*time.Second)
	require.NoError(t, err)

	err = lock.AcquireWithRetry(ctx, "session-1", "owner-b", 10*time.Second, 3)
	require.Error(t, err)
}

func TestRenewRequiresOwnership(t *testing.T) {
	lock, _ := newTestLock(t)
	ctx := context.Background()

	_, err := lock.Acquire(ctx, "session-1", "owner-a", 5*time.Second)
	require.NoError(t, err)

	renewed, err := lock.Renew(ctx, "session-1", "owner-b", 10*time.Second)
	require.NoError(t, err)
	require.False(t, renewed)

	renewed, err = lock.Renew(ctx, "session-1", "owner-a", 10*time.Second)
	require.NoError(t, err)
	require.True(t, renewed)
}
