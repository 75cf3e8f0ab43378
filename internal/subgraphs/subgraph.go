// Package subgraphs implements the five state machines from spec
// §4.6, each operating on a loaded SessionState and producing either a
// final outcome code for the Fiscal Consolidator or a bounded
// one-hop continuation request. The hop limit itself is enforced by
// the engine, not by any subgraph.
package subgraphs

import (
	"context"

	"github.com/carepulse/shift-orchestrator/internal/backend"
	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

// Outcome is what a subgraph hands back to the engine for a turn.
type Outcome struct {
	Code           string
	Continue       bool   // request a same-turn re-route through the router
	ContinueReason string
}

// Deps bundles everything a subgraph needs, narrowed to interfaces so
// tests can stub the LLM gateway and backend adapter independently.
type Deps struct {
	LLM     LLM
	Backend Backend
}

// LLM is the subset of llmgateway.Gateway the subgraphs call.
type LLM interface {
	ConfirmationClassify(ctx context.Context, text string) (llmgateway.ConfirmationResult, error)
	ClinicalExtract(ctx context.Context, text string) (llmgateway.ClinicalExtractResult, error)
	FinalizationTopicExtract(ctx context.Context, text string, alreadyCollected map[string]any) (llmgateway.FinalizationTopicsResult, error)
	OperationalNoteDetect(ctx context.Context, text string) (llmgateway.OperationalNoteResult, error)
}

// Backend is the subset of backend.Adapter the subgraphs call.
type Backend interface {
	UpdateWorkScheduleResponse(ctx context.Context, scheduleIdentifier, responseValue string) error
	UpdateClinicalData(ctx context.Context, in backend.ClinicalDataInput) error
	UpdateReportSummary(ctx context.Context, in backend.ReportSummaryInput) error
	GetNoteReport(ctx context.Context, reportID, reportDate string) ([]backend.NoteReportEntry, error)
	PostWorkflowWebhook(ctx context.Context, sessionID string, payload map[string]any) error
}

// Subgraph is the common interface the engine dispatches to after the
// router selects a destination.
type Subgraph interface {
	Run(ctx context.Context, deps Deps, state *models.SessionState, text string, treatAsAnswer bool) (Outcome, error)
}
