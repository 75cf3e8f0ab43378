// Package locking implements the per-session distributed lock from
// spec §4.2/§5. It is grounded on the original implementation's
// DynamoDB-backed SessionLockManager (app/infra/locks.py) — same
// owner-token-plus-lease-expiry design — but ported onto Redis, whose
// native SET NX PX and Lua EVAL give the acquire/renew/release
// semantics without any application-level expiry bookkeeping.
package locking

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
)

// releaseScript deletes the lock key only if it is still owned by the
// caller, preventing a slow worker from releasing a lease another
// worker has since acquired after expiry.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// renewScript extends the TTL only if the caller still owns the key.
const renewScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
else
	return 0
end
`

// Lock is a Redis-backed distributed lock keyed by resource (the
// sessionId), matching the Lock Record shape in spec §3.
type Lock struct {
	client *redis.Client
	prefix string
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Lock {
	return &Lock{client: client, prefix: "lock:"}
}

func (l *Lock) key(resource string) string { return l.prefix + resource }

// Acquire attempts a single SET NX PX for leaseMs milliseconds,
// returning true if acquired.
func (l *Lock) Acquire(ctx context.Context, resource, owner string, lease time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(resource), owner, lease).Result()
	if err != nil {
		return false, apperr.Wrap(apperr.KindUnavailable, "acquire lock", err)
	}
	return ok, nil
}

// AcquireWithRetry retries Acquire with jittered backoff up to
// maxAttempts times, per spec §4.2's "denied after bounded retry
// (≤3, jittered) → Busy" rule.
func (l *Lock) AcquireWithRetry(ctx context.Context, resource, owner string, lease time.Duration, maxAttempts int) error {
	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		ok, err := l.Acquire(ctx, resource, owner, lease)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt == maxAttempts-1 {
			break
		}
		jitter := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return apperr.Wrap(apperr.KindTimeout, "lock acquisition cancelled", ctx.Err())
		}
		backoff *= 2
	}
	return apperr.New(apperr.KindLockDenied, "could not acquire session lock")
}

// Release deletes the lock only if still owned by owner.
func (l *Lock) Release(ctx context.Context, resource, owner string) error {
	res, err := l.client.Eval(ctx, releaseScript, []string{l.key(resource)}, owner).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return apperr.Wrap(apperr.KindUnavailable, "release lock", err)
	}
	if n, ok := res.(int64); ok && n == 0 {
		// Lock already expired or stolen by another owner: not an error,
		// the caller's work is already done.
		return nil
	}
	return nil
}

// Renew extends the lease if still owned by owner, for long-running
// turns that approach the default ~10s TTL.
func (l *Lock) Renew(ctx context.Context, resource, owner string, lease time.Duration) (bool, error) {
	res, err := l.client.Eval(ctx, renewScript, []string{l.key(resource)}, owner, lease.Milliseconds()).Result()
	if err != nil {
		return false, apperr.Wrap(apperr.KindUnavailable, "renew lock", err)
	}
	n, _ := res.(int64)
	return n == 1, nil
}
