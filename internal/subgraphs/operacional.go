package subgraphs

import (
	"context"

	"github.com/carepulse/shift-orchestrator/internal/models"
)

// Operacional implements the single-shot operational note subgraph
// from spec §4.6.3. It never stages, never clears any other buffer,
// and a delivery failure never blocks other flows.
type Operacional struct{}

func (Operacional) Run(ctx context.Context, deps Deps, state *models.SessionState, text string, treatAsAnswer bool) (Outcome, error) {
	urgency := "normal"
	if detect, err := deps.LLM.OperationalNoteDetect(ctx, text); err == nil {
		urgency = string(detect.Urgency)
	}

	err := deps.Backend.PostWorkflowWebhook(ctx, state.SessionID, map[string]any{
		"clinicalNote": text,
		"urgency":      urgency,
	})
	if err != nil {
		return Outcome{Code: "operational_delivery_failed"}, nil
	}
	return Outcome{Code: "operational_delivered"}, nil
}
