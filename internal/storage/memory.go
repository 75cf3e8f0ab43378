package storage

import (
	"context"
	"sync"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

// MemoryStore is a full in-process Store implementation, grounded on
// the teacher's map-plus-mutex MemoryStore shape: one map per entity,
// one RWMutex guarding it. It backs USE_MEMORY_STORE=true and the
// package test suites that don't want a live Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionSlot

	bufMu   sync.Mutex
	buffers map[string][]models.BufferEntry
}

type sessionSlot struct {
	state   *models.SessionState
	version int64
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]sessionSlot),
		buffers:  make(map[string][]models.BufferEntry),
	}
}

func (m *MemoryStore) LoadSession(_ context.Context, sessionID string) (*models.SessionState, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot, ok := m.sessions[sessionID]
	if !ok {
		return models.NewSessionState(sessionID, ""), 0, nil
	}
	cp := *slot.state
	return &cp, slot.version, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, state *models.SessionState, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.sessions[state.SessionID]
	current := int64(0)
	if ok {
		current = slot.version
	}
	if current != expectedVersion {
		return apperr.ErrConflict
	}
	cp := *state
	m.sessions[state.SessionID] = sessionSlot{state: &cp, version: expectedVersion + 1}
	return nil
}

func (m *MemoryStore) AppendBuffer(_ context.Context, entry models.BufferEntry) error {
	m.bufMu.Lock()
	defer m.bufMu.Unlock()
	m.buffers[entry.SessionID] = append(m.buffers[entry.SessionID], entry)
	return nil
}

func (m *MemoryStore) ReadBuffer(_ context.Context, sessionID string, since *int64, limit int, descending bool) ([]models.BufferEntry, error) {
	m.bufMu.Lock()
	defer m.bufMu.Unlock()
	all := m.buffers[sessionID]
	var filtered []models.BufferEntry
	for _, e := range all {
		if since != nil && e.CreatedAtEpoch < *since {
			continue
		}
		filtered = append(filtered, e)
	}
	if descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, nil
}
