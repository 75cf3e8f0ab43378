// Package consolidator implements the Fiscal Consolidator from spec
// §4.8: the last stage of every turn, turning a subgraph's outcome
// code into the single user-visible reply, enforcing the finalization
// guardrail, and falling back to deterministic templates when the LLM
// gateway is unavailable.
package consolidator

import (
	"context"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

// ReplyGenerator is the narrow LLM gateway slice the consolidator
// calls.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, req llmgateway.ReplyRequest) (llmgateway.ReplyResult, error)
}

// Consolidator renders the final reply for a turn.
type Consolidator struct {
	llm ReplyGenerator
}

// New builds a Consolidator over the given reply generator.
func New(llm ReplyGenerator) *Consolidator {
	return &Consolidator{llm: llm}
}

// Render produces the final user-facing text for state/outcomeCode.
// On LLMUnavailable, or if the model's text violates the finalization
// guardrail, it falls back to the deterministic template for that
// outcome code.
func (c *Consolidator) Render(ctx context.Context, state *models.SessionState, outcomeCode string) string {
	result, err := c.llm.GenerateReply(ctx, llmgateway.ReplyRequest{
		CompactState: compactStateForReply(state),
		OutcomeCode:  outcomeCode,
		LanguageHint: "pt-BR",
	})
	if err != nil {
		if !apperr.Is(err, apperr.KindLLMUnavailable) && !apperr.Is(err, apperr.KindCircuitOpen) {
			// Any other failure is still treated conservatively as
			// unavailable for reply-rendering purposes; the turn must
			// always produce a reply.
		}
		return fallbackFor(outcomeCode)
	}

	if !state.FinishReminderSent && violatesFinalizationGuardrail(result.Text) {
		return fallbackFor(outcomeCode)
	}
	return result.Text
}

// compactStateForReply builds the minimal state summary the reply
// prompt needs, deliberately excluding the pending action payload and
// raw buffer contents.
func compactStateForReply(state *models.SessionState) map[string]any {
	return map[string]any{
		"caregiverName":      state.CaregiverName,
		"patientName":        state.PatientName,
		"shiftAllow":         state.ShiftAllow,
		"response":           state.Response,
		"finishReminderSent": state.FinishReminderSent,
		"vitalsComplete":     state.Vitals.Complete(),
		"missingVitals":      state.Vitals.Missing(),
		"missingFinalizationTopics": state.FinalizationTopics.Missing(),
	}
}
