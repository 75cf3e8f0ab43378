// Package router implements the deterministic gate ladder from spec
// §4.5. It is structurally grounded on the original implementation's
// app/graph/router.py (garantir_bootstrap_sessao, processar_pergunta_pendente,
// aplicar_gates_pos_classificacao) but the gate ORDER below is the
// spec's, not router.py's — the two disagree and spec §4.5 is
// authoritative.
package router

import (
	"context"

	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

// Subgraph names the five destinations a gate can select.
type Subgraph string

const (
	SubgraphEscala      Subgraph = "escala"
	SubgraphClinico     Subgraph = "clinico"
	SubgraphOperacional Subgraph = "operacional"
	SubgraphFinalizar   Subgraph = "finalizar"
	SubgraphAuxiliar    Subgraph = "auxiliar"
)

// Gate names which rung of the ladder fired, recorded on the state as
// LastGateFired for debugging; nothing reads it back to make a routing
// decision.
type Gate string

const (
	GateFinish              Gate = "finish_gate"
	GatePendingConfirmation Gate = "pending_confirmation"
	GateOperationalNote     Gate = "operational_note"
	GateAttendance          Gate = "attendance_gate"
	GateIntent              Gate = "intent_classify"
)

// Decision is the router's output: which subgraph to run and whether
// the message should be treated as a confirmation answer rather than
// fresh content.
type Decision struct {
	Subgraph      Subgraph
	Gate          Gate
	TreatAsAnswer bool
}

// IntentClassifier and OperationalDetector are the narrow slices of
// llmgateway.Gateway the router needs, kept as interfaces so tests can
// stub them without a live OpenAI client.
type IntentClassifier interface {
	IntentClassify(ctx context.Context, text string, compactState map[string]any) (llmgateway.IntentResult, error)
}

type OperationalDetector interface {
	OperationalNoteDetect(ctx context.Context, text string) (llmgateway.OperationalNoteResult, error)
}

// Router evaluates the gate ladder against a loaded session state and
// the new inbound text.
type Router struct {
	intent      IntentClassifier
	operational OperationalDetector
}

// New builds a Router over the given LLM gateway slices.
func New(intent IntentClassifier, operational OperationalDetector) *Router {
	return &Router{intent: intent, operational: operational}
}

// Route evaluates gates 1-5 in spec order, short-circuiting on the
// first that fires.
func (r *Router) Route(ctx context.Context, state *models.SessionState, text string) (Decision, error) {
	// Gate 1: finish-gate. finishReminderSent overrides all non-confirmation
	// routing to finalizar, except that a staged pending action for a
	// different flow wins: operational content diverts to operacional,
	// and any other text goes to the pending flow as its answer. The
	// text is not checked for being a confirmation answer.
	if state.FinishReminderSent {
		if state.PendingAction != nil && state.PendingAction.Status == models.PendingStaged &&
			state.PendingAction.Flow != models.FlowFinalizeCommit {
			isOperational, err := r.checkOperational(ctx, text)
			if err != nil {
				return Decision{}, err
			}
			if isOperational {
				return Decision{Subgraph: SubgraphOperacional, Gate: GateOperationalNote}, nil
			}
			return Decision{Subgraph: flowSubgraph(state.PendingAction.Flow), Gate: GatePendingConfirmation, TreatAsAnswer: true}, nil
		}
		return Decision{Subgraph: SubgraphFinalizar, Gate: GateFinish}, nil
	}

	// Gate 2: pending-confirmation. A staged action means the next
	// message is treated as a confirmation input unless it is
	// operational content (of any urgency), which diverts without
	// cancelling the action.
	if state.PendingAction != nil && state.PendingAction.Status == models.PendingStaged {
		isOperational, err := r.checkOperational(ctx, text)
		if err != nil {
			return Decision{}, err
		}
		if isOperational {
			return Decision{Subgraph: SubgraphOperacional, Gate: GateOperationalNote}, nil
		}
		return Decision{Subgraph: flowSubgraph(state.PendingAction.Flow), Gate: GatePendingConfirmation, TreatAsAnswer: true}, nil
	}

	// Gate 3: operational-note.
	isOperational, err := r.checkOperational(ctx, text)
	if err != nil {
		return Decision{}, err
	}
	if isOperational {
		return Decision{Subgraph: SubgraphOperacional, Gate: GateOperationalNote}, nil
	}

	// Gate 4: attendance-gate.
	if state.ShiftAllow && state.Response != models.ResponseConfirmed {
		return Decision{Subgraph: SubgraphEscala, Gate: GateAttendance}, nil
	}

	// Gate 5: LLM intent classification.
	result, err := r.intent.IntentClassify(ctx, text, compactState(state))
	if err != nil {
		return Decision{}, err
	}
	return Decision{Subgraph: mapIntent(result.Intent), Gate: GateIntent}, nil
}

func (r *Router) checkOperational(ctx context.Context, text string) (bool, error) {
	result, err := r.operational.OperationalNoteDetect(ctx, text)
	if err != nil {
		return false, err
	}
	return result.IsOperational, nil
}

func flowSubgraph(flow models.PendingActionFlow) Subgraph {
	switch flow {
	case models.FlowEscalaCommit:
		return SubgraphEscala
	case models.FlowClinicalCommit:
		return SubgraphClinico
	case models.FlowFinalizeCommit:
		return SubgraphFinalizar
	}
	return SubgraphAuxiliar
}

func mapIntent(intent llmgateway.Intent) Subgraph {
	switch intent {
	case llmgateway.IntentEscala:
		return SubgraphEscala
	case llmgateway.IntentClinico:
		return SubgraphClinico
	case llmgateway.IntentOperacional:
		return SubgraphOperacional
	case llmgateway.IntentFinalizar:
		return SubgraphFinalizar
	default:
		return SubgraphAuxiliar
	}
}

// compactState builds the minimal state summary passed to
// IntentClassify, avoiding leaking the full buffer/pending-action
// payloads into the prompt.
func compactState(state *models.SessionState) map[string]any {
	return map[string]any{
		"shiftAllow":         state.ShiftAllow,
		"response":           state.Response,
		"finishReminderSent": state.FinishReminderSent,
		"hasPendingAction":   state.PendingAction != nil,
	}
}
