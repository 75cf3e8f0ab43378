package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestBeginClaimsOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.Begin(ctx, "key-1", 5*time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	second, err := store.Begin(ctx, "key-1", 5*time.Minute)
	require.NoError(t, err)
	require.False(t, second, "a second claim on the same key must fail")
}

func TestReplayAfterEndOK(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Begin(ctx, "key-1", 5*time.Minute)
	require.NoError(t, err)

	_, cached, err := store.GetCached(ctx, "key-1")
	require.NoError(t, err)
	require.False(t, cached, "in-progress claim has no cached response yet")

	require.NoError(t, store.EndOK(ctx, "key-1", []byte(`{"reply":"ok"}`), 5*time.Minute))

	body, cached, err := store.GetCached(ctx, "key-1")
	require.NoError(t, err)
	require.True(t, cached)
	require.Equal(t, `{"reply":"ok"}`, string(body))
}

func TestEndErrorReleasesClaim(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Begin(ctx, "key-1", 5*time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.EndError(ctx, "key-1"))

	retried, err := store.Begin(ctx, "key-1", 5*time.Minute)
	require.NoError(t, err)
	require.True(t, retried, "a failed operation must allow retry to re-claim the key")
}
