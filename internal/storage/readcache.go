package storage

import (
	"sync"
	"time"

	"github.com/carepulse/shift-orchestrator/internal/models"
)

// ttlReadCache is adapted from the teacher's in-memory SessionManager:
// the same map-plus-mutex-plus-background-sweep shape, repurposed here
// to cache the last committed SessionState per sessionId for the debug
// endpoint's lock-free reads (spec §5's "readers outside the hot path
// may read the last committed version without the lock").
type ttlReadCache struct {
	mu      sync.RWMutex
	entries map[string]cachedState
	ttl     time.Duration
	stop    chan struct{}
}

type cachedState struct {
	state   *models.SessionState
	cachedAt time.Time
}

// NewReadCache starts the background sweep goroutine and returns a
// ReadCache. Call Close to stop the sweep on shutdown.
func NewReadCache(ttl time.Duration) *ttlReadCache {
	c := &ttlReadCache{
		entries: make(map[string]cachedState),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

func (c *ttlReadCache) sweepLoop() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

func (c *ttlReadCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for id, entry := range c.entries {
		if now.Sub(entry.cachedAt) > c.ttl {
			delete(c.entries, id)
		}
	}
}

// Peek returns the last cached state for sessionID, if present and
// unexpired.
func (c *ttlReadCache) Peek(sessionID string) (*models.SessionState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[sessionID]
	if !ok || time.Since(entry.cachedAt) > c.ttl {
		return nil, false
	}
	cp := *entry.state
	return &cp, true
}

// Put refreshes the cached state after a successful commit.
func (c *ttlReadCache) Put(state *models.SessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *state
	c.entries[state.SessionID] = cachedState{state: &cp, cachedAt: time.Now()}
}

// Close stops the sweep goroutine.
func (c *ttlReadCache) Close() { close(c.stop) }
