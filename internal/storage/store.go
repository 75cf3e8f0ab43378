// Package storage implements the session store (with the pending
// action embedded in the session) and the conversation buffer store,
// which never require a cross-store transaction. The lock and the
// idempotency store live in internal/locking and internal/idempotency.
package storage

import (
	"context"
	"time"

	"github.com/carepulse/shift-orchestrator/internal/models"
)

// SessionStore owns the versioned session aggregate, including its
// pending action sub-resource: PendingAction lives embedded in
// SessionState and is persisted/loaded as part of the same payload, so
// staging, confirming, and clearing it is just a field assignment on
// the state the subgraphs already hold — there is no separate pending
// action table to keep in sync. Conditional writes implement OCC.
type SessionStore interface {
	LoadSession(ctx context.Context, sessionID string) (*models.SessionState, int64, error)
	SaveSession(ctx context.Context, state *models.SessionState, expectedVersion int64) error
}

// BufferStore owns the append-only, high-volume conversation log.
// Deliberately separate from SessionStore: it is written far more
// often than it is read, and never participates in the OCC path.
type BufferStore interface {
	AppendBuffer(ctx context.Context, entry models.BufferEntry) error
	ReadBuffer(ctx context.Context, sessionID string, since *int64, limit int, descending bool) ([]models.BufferEntry, error)
}

// ReadCache exposes last-committed-version reads that bypass the
// session lock entirely, for the debug endpoint (spec §5: "readers
// outside the hot path may read the last committed version without
// the lock").
type ReadCache interface {
	Peek(sessionID string) (*models.SessionState, bool)
	Put(state *models.SessionState)
}

// Store aggregates the contracts a caller needs for the hot path.
type Store interface {
	SessionStore
	BufferStore
}

// IdempotencyRecord describes a cached response per idempotency key.
// The idempotency store in internal/idempotency does not use this type:
// it persists only the response body bytes.
type IdempotencyRecord struct {
	Key         string
	StatusCode  int
	ResponseBody []byte
	CreatedAt   time.Time
}
