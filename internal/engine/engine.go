// Package engine wires persistence, locking, bootstrap, the router,
// the subgraphs, and the fiscal consolidator into the ProcessMessage
// pipeline: lock → load state → bootstrap if needed → route → run
// subgraph (bounded to one continuation hop) → persist under OCC with
// bounded retry → append buffer → release lock → reply. The idempotency
// check and the caching of the response are not part of it: the HTTP
// ingress handler claims the key before calling ProcessMessage and
// stores the response after it returns, so the response is cached
// after the lock has been released.
package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/carepulse/shift-orchestrator/internal/bootstrap"
	"github.com/carepulse/shift-orchestrator/internal/consolidator"
	"github.com/carepulse/shift-orchestrator/internal/events"
	"github.com/carepulse/shift-orchestrator/internal/models"
	"github.com/carepulse/shift-orchestrator/internal/router"
	"github.com/carepulse/shift-orchestrator/internal/storage"
	"github.com/carepulse/shift-orchestrator/internal/subgraphs"
)

const (
	lockLease        = 10 * time.Second
	lockRetries      = 3
	maxOCCAttempts   = 3
	maxContinueHops  = 1
	overallDeadline  = 45 * time.Second
)

// Lock is the narrow locking.Lock slice the engine needs.
type Lock interface {
	AcquireWithRetry(ctx context.Context, resource, owner string, lease time.Duration, maxAttempts int) error
	Release(ctx context.Context, resource, owner string) error
}

// Result is what the engine hands back to the HTTP ingress layer,
// matching the wire response shape in spec §6.1.
type Result struct {
	Reply       string
	SessionID   string
	Status      string // "success" | "busy" | "error"
	OutcomeCode string
}

// EventPublisher is the narrow events.Publisher slice the engine needs.
type EventPublisher interface {
	Publish(ctx context.Context, event events.OutcomeEvent)
}

// Engine is the orchestrator.
type Engine struct {
	Store        storage.Store
	Lock         Lock
	Bootstrap    *bootstrap.Bootstrapper
	Router       *router.Router
	Subgraphs    map[router.Subgraph]subgraphs.Subgraph
	Deps         subgraphs.Deps
	Consolidator *consolidator.Consolidator
	Events       EventPublisher
	// ReadCache is populated with the last committed state after every
	// successful save, letting the debug endpoint (spec §5) read
	// without contending for the session lock.
	ReadCache storage.ReadCache
}

// sessionID canonicalizes a phone number into the session key, per
// spec §3: digits only, leading "+" stripped.
func sessionID(phoneNumber string) string {
	var digits []rune
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	return "session_" + string(digits)
}

// ProcessMessage runs the full pipeline for one inbound message. It
// never returns an error to the HTTP boundary: every failure is mapped
// to a Result with an outcome code and status, per spec §7's
// propagation rule.
func (e *Engine) ProcessMessage(ctx context.Context, msg models.InboundMessage) Result {
	ctx, cancel := context.WithTimeout(ctx, overallDeadline)
	defer cancel()

	sid := sessionID(msg.PhoneNumber)
	owner := uuid.NewString()

	if err := e.Lock.AcquireWithRetry(ctx, sid, owner, lockLease, lockRetries); err != nil {
		return Result{SessionID: sid, Status: "busy", OutcomeCode: "busy", Reply: "Ainda estou processando sua mensagem anterior, só um instante."}
	}
	defer e.Lock.Release(context.Background(), sid, owner)

	result := e.runLocked(ctx, sid, msg)
	return result
}

func (e *Engine) runLocked(ctx context.Context, sid string, msg models.InboundMessage) Result {
	// delivered survives across every OCC retry attempt for this turn.
	// Spec §5 exempts operational-note delivery alone from replay: it
	// is idempotent on the webhook side, so a conflict reloads and
	// re-attempts the subgraph's state append without re-posting. Other
	// subgraphs post the same webhook as part of a staged, one-shot
	// commit (clinico/finalizar), or post it multiple times per call for
	// distinct topics (finalizar) — neither is safe to dedupe this way,
	// so the guard is scoped to the operacional outcome specifically.
	var delivered *subgraphOnceResult

	for attempt := 0; attempt < maxOCCAttempts; attempt++ {
		state, version, err := e.Store.LoadSession(ctx, sid)
		if err != nil {
			return e.errorResult(sid, "", apperr.New(apperr.KindUnavailable, "load session failed"))
		}
		state.SessionID = sid
		state.PhoneNumber = msg.PhoneNumber
		state.LastUserText = msg.Text

		hydrationFailed := false
		if bootstrap.NeedsHydration(state, version, false) {
			if err := e.Bootstrap.Hydrate(ctx, state); err != nil {
				// Degrade gracefully into auxiliar instead of surfacing the
				// backend failure, per spec §4.10.
				hydrationFailed = true
			}
		}

		var outcome subgraphs.Outcome
		var gate router.Gate
		if hydrationFailed && state.ScheduleID == "" {
			outcome, gate, _ = e.runSubgraphOnce(ctx, state, msg.Text, router.Decision{Subgraph: router.SubgraphAuxiliar}, &delivered)
		} else {
			outcome, gate = e.routeAndRun(ctx, state, msg.Text, &delivered)
		}
		state.LastReplyCode = outcome.Code
		state.LastGateFired = string(gate)

		if err := e.Store.SaveSession(ctx, state, version); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				continue // reload and replay, bounded by the outer loop
			}
			return e.errorResult(sid, outcome.Code, err)
		}

		e.appendBufferBestEffort(ctx, sid, msg, outcome.Code)

		if e.ReadCache != nil {
			e.ReadCache.Put(state)
		}

		if e.Events != nil {
			e.Events.Publish(ctx, events.OutcomeEvent{
				SessionID:   sid,
				OutcomeCode: outcome.Code,
				Gate:        string(gate),
				OccurredAt:  time.Now(),
			})
		}

		reply := e.Consolidator.Render(ctx, state, outcome.Code)
		return Result{Reply: reply, SessionID: sid, Status: "success", OutcomeCode: outcome.Code}
	}

	return Result{
		SessionID:   sid,
		Status:      "error",
		OutcomeCode: "conflict",
		Reply:       "Tive um problema para salvar sua informação, tente novamente.",
	}
}

// subgraphOnceResult caches an operacional outcome already delivered
// earlier in the current turn, so a later OCC-conflict replay can
// reuse it instead of re-running the subgraph (and re-posting the
// webhook it already delivered).
type subgraphOnceResult struct {
	outcome subgraphs.Outcome
	gate    router.Gate
}

// routeAndRun evaluates the router, runs the selected subgraph, and
// honors a single bounded continuation hop if the subgraph requests a
// same-turn re-route (e.g. a diversion that must still resolve to a
// final reply this turn). delivered carries forward an operacional
// delivery already made earlier in this turn's OCC retry loop (see
// runLocked); routeAndRun skips re-running the subgraph when the
// router would select operacional again and a delivery is already
// cached, per spec §5's replay exemption for operational-note webhook
// delivery.
func (e *Engine) routeAndRun(ctx context.Context, state *models.SessionState, text string, delivered **subgraphOnceResult) (subgraphs.Outcome, router.Gate) {
	decision, err := e.Router.Route(ctx, state, text)
	if err != nil {
		return e.llmFailureOutcome(err), router.GateIntent
	}

	outcome, gate, err := e.runSubgraphOnce(ctx, state, text, decision, delivered)
	if err != nil {
		return e.llmFailureOutcome(err), gate
	}

	hops := 0
	for outcome.Continue && hops < maxContinueHops {
		decision, err = e.Router.Route(ctx, state, text)
		if err != nil {
			return e.llmFailureOutcome(err), decision.Gate
		}
		outcome, gate, err = e.runSubgraphOnce(ctx, state, text, decision, delivered)
		if err != nil {
			return e.llmFailureOutcome(err), gate
		}
		hops++
	}
	return outcome, gate
}

// runSubgraphOnce dispatches to the subgraph decision selected, short
// -circuiting with the cached result when the decision is operacional
// and a delivery already landed earlier in this turn.
func (e *Engine) runSubgraphOnce(ctx context.Context, state *models.SessionState, text string, decision router.Decision, delivered **subgraphOnceResult) (subgraphs.Outcome, router.Gate, error) {
	if decision.Subgraph == router.SubgraphOperacional && *delivered != nil {
		return (*delivered).outcome, (*delivered).gate, nil
	}

	sub, ok := e.Subgraphs[decision.Subgraph]
	if !ok {
		return subgraphs.Outcome{Code: "help_generic"}, decision.Gate, nil
	}

	outcome, err := sub.Run(ctx, e.Deps, state, text, decision.TreatAsAnswer)
	if err != nil && outcome.Code == "" {
		return subgraphs.Outcome{}, decision.Gate, err
	}
	if decision.Subgraph == router.SubgraphOperacional && outcome.Code == "operational_delivered" {
		*delivered = &subgraphOnceResult{outcome: outcome, gate: decision.Gate}
	}
	return outcome, decision.Gate, nil
}

func (e *Engine) llmFailureOutcome(err error) subgraphs.Outcome {
	switch apperr.KindOf(err) {
	case apperr.KindLLMUnavailable, apperr.KindCircuitOpen:
		return subgraphs.Outcome{Code: "help_generic"}
	case apperr.KindTimeout:
		return subgraphs.Outcome{Code: "timeout"}
	default:
		return subgraphs.Outcome{Code: "input_error"}
	}
}

func (e *Engine) errorResult(sid, outcomeCode string, err error) Result {
	kind := apperr.KindOf(err)
	status := "error"
	if kind == apperr.KindTimeout {
		status = "error"
	}
	code := outcomeCode
	if code == "" {
		code = string(kind)
	}
	return Result{SessionID: sid, Status: status, OutcomeCode: code, Reply: "Tive um problema para processar sua mensagem, tente novamente em instantes."}
}

func (e *Engine) appendBufferBestEffort(ctx context.Context, sid string, msg models.InboundMessage, outcomeCode string) {
	now := time.Now()
	_ = e.Store.AppendBuffer(ctx, models.BufferEntry{
		SessionID:      sid,
		CreatedAtEpoch: now.UnixNano(),
		Direction:      "in",
		Text:           msg.Text,
		MessageID:      msg.MessageID,
		Meta:           "{}",
	})
	_ = e.Store.AppendBuffer(ctx, models.BufferEntry{
		SessionID:      sid,
		CreatedAtEpoch: now.UnixNano() + 1,
		Direction:      "out",
		Text:           outcomeCode,
		MessageID:      msg.MessageID + "-out",
		Meta:           "{}",
	})
}

// EpochKey is exposed for ingress handlers that need a stable string
// form of a session's version for ETag-like debug responses.
func EpochKey(version int64) string { return strconv.FormatInt(version, 10) }

// RehydrateSession re-runs bootstrap for an idle session outside the
// message-processing hot path, used by the rehydration poll job
// (internal/jobs). It takes the session lock like any other writer.
func (e *Engine) RehydrateSession(ctx context.Context, sessionID string) error {
	owner := uuid.NewString()
	if err := e.Lock.AcquireWithRetry(ctx, sessionID, owner, lockLease, lockRetries); err != nil {
		return err
	}
	defer e.Lock.Release(context.Background(), sessionID, owner)

	state, version, err := e.Store.LoadSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := e.Bootstrap.Hydrate(ctx, state); err != nil {
		return err
	}
	if err := e.Store.SaveSession(ctx, state, version); err != nil {
		return err
	}
	if e.ReadCache != nil {
		e.ReadCache.Put(state)
	}
	return nil
}
