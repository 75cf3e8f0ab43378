// Package idempotency implements the claim/replay store from spec
// §4.2/§8, grounded on the original implementation's
// app/infra/idempotency.py decorator: begin() claims a key, a cached
// response replays a retried delivery, and an in-progress claim with
// no cached response yet surfaces as a conflict rather than a second
// execution.
package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
)

// inProgressMarker is stored until the real response is cached, so a
// concurrent retry of the same key can distinguish "never started"
// from "started but not finished."
const inProgressMarker = "\x00in-progress"

// Store is a Redis-backed idempotency key store.
type Store struct {
	client *redis.Client
	prefix string
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client, prefix: "idem:"}
}

func (s *Store) key(idempotencyKey string) string { return s.prefix + idempotencyKey }

// Begin claims idempotencyKey for ttl. Returns true if this call is
// the first to claim it (the caller should proceed); false means a
// claim already exists — the caller should check GetCached.
func (s *Store) Begin(ctx context.Context, idempotencyKey string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.key(idempotencyKey), inProgressMarker, ttl).Result()
	if err != nil {
		return false, apperr.Wrap(apperr.KindUnavailable, "begin idempotent claim", err)
	}
	return ok, nil
}

// GetCached returns the previously stored response body for a
// completed operation, or ok=false if the claim is still in-progress
// or the key was never claimed.
func (s *Store) GetCached(ctx context.Context, idempotencyKey string) (body []byte, ok bool, err error) {
	val, err := s.client.Get(ctx, s.key(idempotencyKey)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindUnavailable, "read idempotent cache", err)
	}
	if val == inProgressMarker {
		return nil, false, nil
	}
	return []byte(val), true, nil
}

// EndOK stores the final response body, replacing the in-progress
// marker; the key's expiry restarts at ttl from this write.
func (s *Store) EndOK(ctx context.Context, idempotencyKey string, body []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(idempotencyKey), body, ttl).Err(); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "end idempotent claim", err)
	}
	return nil
}

// EndError releases the claim on failure so a retried delivery is
// allowed to attempt the operation again rather than wedge on the
// in-progress marker until TTL expiry.
func (s *Store) EndError(ctx context.Context, idempotencyKey string) error {
	if err := s.client.Del(ctx, s.key(idempotencyKey)).Err(); err != nil {
		return apperr.Wrap(apperr.KindUnavailable, "clear idempotent claim", err)
	}
	return nil
}
