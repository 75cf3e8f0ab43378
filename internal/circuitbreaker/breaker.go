// Package circuitbreaker implements the CLOSED/OPEN/HALF_OPEN breaker
// used by the LLM Gateway and the Backend Adapter (spec §4.3/§4.7).
// Ported from the original implementation's app/infra/circuit_breaker.py
// (same threshold/timeout/half-open-probe design); no third-party
// circuit-breaker library appears anywhere in the example pack, so
// this stays a small stdlib-only component — see DESIGN.md.
package circuitbreaker

import (
	"context"
	"sync"
	"time"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
)

// State is one of the three breaker states.
type State string

const (
	Closed   State = "closed"
	Open     State = "open"
	HalfOpen State = "half_open"
)

// Config tunes the breaker's thresholds. Named presets below mirror
// the original's per-dependency configs (LLM, Lambda, Pinecone).
type Config struct {
	FailureThreshold int
	Timeout          time.Duration
	SuccessThreshold int
	MaxTimeout       time.Duration
}

// LLMConfig matches the original's LLM_CIRCUIT_CONFIG.
func LLMConfig() Config {
	return Config{FailureThreshold: 3, Timeout: 30 * time.Second, SuccessThreshold: 2, MaxTimeout: 15 * time.Second}
}

// BackendConfig matches the original's LAMBDA_CIRCUIT_CONFIG, used by
// the Backend Adapter per spec §4.7 (open after 5 consecutive
// failures, 60s cool-down).
func BackendConfig() Config {
	return Config{FailureThreshold: 5, Timeout: 60 * time.Second, SuccessThreshold: 2, MaxTimeout: 30 * time.Second}
}

// Stats exposes the breaker's counters for observability/debug.
type Stats struct {
	State               State
	ConsecutiveFailures int
	ConsecutiveSuccesses int
	OpenedAt            time.Time
}

// Breaker is a single named circuit breaker instance.
type Breaker struct {
	name   string
	config Config

	mu                   sync.Mutex
	state                State
	consecutiveFailures  int
	consecutiveSuccesses int
	openedAt             time.Time
	currentTimeout       time.Duration
}

// New creates a breaker starting CLOSED.
func New(name string, config Config) *Breaker {
	return &Breaker{
		name:           name,
		config:         config,
		state:          Closed,
		currentTimeout: config.Timeout,
	}
}

// Call executes fn if the breaker permits it, recording the outcome.
// While OPEN (and the cool-down has not elapsed), it short-circuits
// with a typed CircuitOpen error without invoking fn.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return apperr.New(apperr.KindCircuitOpen, "circuit "+b.name+" is open")
	}
	err := fn(ctx)
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true
	case HalfOpen:
		return true
	case Open:
		if time.Since(b.openedAt) >= b.currentTimeout {
			b.state = HalfOpen
			b.consecutiveSuccesses = 0
			return true
		}
		return false
	}
	return true
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.consecutiveSuccesses++
		if b.consecutiveSuccesses >= b.config.SuccessThreshold {
			b.state = Closed
			b.consecutiveFailures = 0
			b.currentTimeout = b.config.Timeout
		}
	case Closed:
		b.consecutiveFailures = 0
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.consecutiveFailures++
		if b.consecutiveFailures >= b.config.FailureThreshold {
			b.trip()
		}
	}
}

// trip moves to OPEN; a re-trip from HALF_OPEN backs off the cool-down
// towards MaxTimeout, assumes mu held.
func (b *Breaker) trip() {
	if b.state == HalfOpen && b.currentTimeout < b.config.MaxTimeout {
		b.currentTimeout *= 2
		if b.currentTimeout > b.config.MaxTimeout {
			b.currentTimeout = b.config.MaxTimeout
		}
	}
	b.state = Open
	b.openedAt = time.Now()
	b.consecutiveFailures = b.config.FailureThreshold
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:                b.state,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		OpenedAt:             b.openedAt,
	}
}

// Reset forces the breaker back to CLOSED, used in tests and by the
// admin debug surface.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.currentTimeout = b.config.Timeout
}
