package engine

import (
	"context"
	"testing"
	"time"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/carepulse/shift-orchestrator/internal/backend"
	"github.com/carepulse/shift-orchestrator/internal/bootstrap"
	"github.com/carepulse/shift-orchestrator/internal/consolidator"
	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
	"github.com/carepulse/shift-orchestrator/internal/router"
	"github.com/carepulse/shift-orchestrator/internal/storage"
	"github.com/carepulse/shift-orchestrator/internal/subgraphs"
	"github.com/stretchr/testify/require"
)

type noopLock struct{}

func (noopLock) AcquireWithRetry(context.Context, string, string, time.Duration, int) error { return nil }
func (noopLock) Release(context.Context, string, string) error                              { return nil }

type stubFetcher struct{}

func (stubFetcher) GetScheduleStarted(context.Context, string) (backend.ScheduleStarted, error) {
	return backend.ScheduleStarted{ScheduleID: "sched-1", ShiftAllow: true, Response: string(models.ResponseAwaiting)}, nil
}

type stubIntent struct{}

func (stubIntent) IntentClassify(context.Context, string, map[string]any) (llmgateway.IntentResult, error) {
	return llmgateway.IntentResult{Intent: llmgateway.IntentAuxiliar}, nil
}

type stubOperational struct{}

func (stubOperational) OperationalNoteDetect(context.Context, string) (llmgateway.OperationalNoteResult, error) {
	return llmgateway.OperationalNoteResult{}, nil
}

type alwaysOperational struct{}

func (alwaysOperational) OperationalNoteDetect(context.Context, string) (llmgateway.OperationalNoteResult, error) {
	return llmgateway.OperationalNoteResult{IsOperational: true, Urgency: llmgateway.UrgencyNormal}, nil
}

type stubReply struct{}

func (stubReply) GenerateReply(context.Context, llmgateway.ReplyRequest) (llmgateway.ReplyResult, error) {
	return llmgateway.ReplyResult{Text: "confirma sua presença?"}, nil
}

type fullStubLLM struct {
	stubIntent
	stubOperational
	stubReply
}

func (fullStubLLM) ConfirmationClassify(context.Context, string) (llmgateway.ConfirmationResult, error) {
	return llmgateway.ConfirmationResult{Answer: llmgateway.ConfirmYes}, nil
}
func (fullStubLLM) ClinicalExtract(context.Context, string) (llmgateway.ClinicalExtractResult, error) {
	return llmgateway.ClinicalExtractResult{}, nil
}
func (fullStubLLM) FinalizationTopicExtract(context.Context, string, map[string]any) (llmgateway.FinalizationTopicsResult, error) {
	return llmgateway.FinalizationTopicsResult{}, nil
}

type noopBackend struct{}

func (noopBackend) UpdateWorkScheduleResponse(context.Context, string, string) error { return nil }
func (noopBackend) UpdateClinicalData(context.Context, backend.ClinicalDataInput) error { return nil }
func (noopBackend) UpdateReportSummary(context.Context, backend.ReportSummaryInput) error {
	return nil
}
func (noopBackend) GetNoteReport(context.Context, string, string) ([]backend.NoteReportEntry, error) {
	return nil, nil
}
func (noopBackend) PostWorkflowWebhook(context.Context, string, map[string]any) error { return nil }

// countingBackend wraps noopBackend to let tests assert a commit call
// fired exactly once.
type countingBackend struct {
	noopBackend
	updateWorkScheduleResponseCalls int
}

func (b *countingBackend) UpdateWorkScheduleResponse(ctx context.Context, scheduleIdentifier, responseValue string) error {
	b.updateWorkScheduleResponseCalls++
	return nil
}

// webhookCountingBackend counts workflow webhook deliveries, for
// asserting an OCC-conflict replay doesn't re-post one.
type webhookCountingBackend struct {
	noopBackend
	webhookCalls int
}

func (b *webhookCountingBackend) PostWorkflowWebhook(_ context.Context, _ string, _ map[string]any) error {
	b.webhookCalls++
	return nil
}

// conflictOnceStore forces the first SaveSession call to fail with a
// Conflict, exercising the engine's reload-and-replay loop.
type conflictOnceStore struct {
	storage.Store
	conflicted bool
}

func (s *conflictOnceStore) SaveSession(ctx context.Context, state *models.SessionState, expectedVersion int64) error {
	if !s.conflicted {
		s.conflicted = true
		return apperr.ErrConflict
	}
	return s.Store.SaveSession(ctx, state, expectedVersion)
}

func buildTestEngine() *Engine {
	return buildTestEngineWithBackend(noopBackend{})
}

func buildTestEngineWithBackend(be subgraphs.Backend) *Engine {
	llm := fullStubLLM{}
	deps := subgraphs.Deps{LLM: llm, Backend: be}
	return &Engine{
		Store:     storage.NewMemoryStore(),
		Lock:      noopLock{},
		Bootstrap: bootstrap.New(stubFetcher{}),
		Router:    router.New(stubIntent{}, stubOperational{}),
		Subgraphs: map[router.Subgraph]subgraphs.Subgraph{
			router.SubgraphEscala:      subgraphs.Escala{},
			router.SubgraphClinico:     subgraphs.Clinico{},
			router.SubgraphOperacional: subgraphs.Operacional{},
			router.SubgraphFinalizar:   subgraphs.Finalizar{},
			router.SubgraphAuxiliar:    subgraphs.Auxiliar{},
		},
		Deps:         deps,
		Consolidator: consolidator.New(llm),
	}
}

func TestProcessMessageHydratesAndRoutesToEscala(t *testing.T) {
	e := buildTestEngine()
	result := e.ProcessMessage(context.Background(), models.InboundMessage{
		MessageID:   "m1",
		PhoneNumber: "+5511999999999",
		Text:        "cheguei",
	})
	require.Equal(t, "success", result.Status)
	require.Equal(t, "escala_staged", result.OutcomeCode)
}

func TestVersionIncreasesByOnePerMessage(t *testing.T) {
	e := buildTestEngine()
	sid := sessionID("+5511999999999")

	_, v0, _ := e.Store.LoadSession(context.Background(), sid)
	require.Equal(t, int64(0), v0)

	e.ProcessMessage(context.Background(), models.InboundMessage{MessageID: "m1", PhoneNumber: "+5511999999999", Text: "cheguei"})
	_, v1, _ := e.Store.LoadSession(context.Background(), sid)
	require.Equal(t, int64(1), v1)

	e.ProcessMessage(context.Background(), models.InboundMessage{MessageID: "m2", PhoneNumber: "+5511999999999", Text: "sim"})
	_, v2, _ := e.Store.LoadSession(context.Background(), sid)
	require.Equal(t, int64(2), v2)
}

// TestPendingActionSurvivesReloadAndCommitsOnConfirmation covers the
// full two-phase commit across messages: a staged action must still
// be there on the next LoadSession, and confirming it must call the
// backend exactly once, clear the pending action, and record the
// committed response.
func TestPendingActionSurvivesReloadAndCommitsOnConfirmation(t *testing.T) {
	be := &countingBackend{}
	e := buildTestEngineWithBackend(be)
	sid := sessionID("+5511999999999")
	phone := "+5511999999999"

	stage := e.ProcessMessage(context.Background(), models.InboundMessage{MessageID: "m1", PhoneNumber: phone, Text: "cheguei"})
	require.Equal(t, "success", stage.Status)
	require.Equal(t, "escala_staged", stage.OutcomeCode)

	staged, _, err := e.Store.LoadSession(context.Background(), sid)
	require.NoError(t, err)
	require.NotNil(t, staged.PendingAction)
	require.Equal(t, models.FlowEscalaCommit, staged.PendingAction.Flow)

	confirm := e.ProcessMessage(context.Background(), models.InboundMessage{MessageID: "m2", PhoneNumber: phone, Text: "sim"})
	require.Equal(t, "success", confirm.Status)
	require.Equal(t, "escala_confirmed", confirm.OutcomeCode)

	committed, _, err := e.Store.LoadSession(context.Background(), sid)
	require.NoError(t, err)
	require.Nil(t, committed.PendingAction)
	require.Equal(t, models.ResponseConfirmed, committed.Response)
	require.Equal(t, 1, be.updateWorkScheduleResponseCalls)
}

// TestOCCConflictDoesNotRedeliverOperationalWebhook covers spec §5's
// replay exemption: a reload-and-replay triggered by an OCC conflict
// must not re-post the workflow webhook for an operational note that
// already delivered successfully on an earlier attempt.
func TestOCCConflictDoesNotRedeliverOperationalWebhook(t *testing.T) {
	be := &webhookCountingBackend{}
	llm := fullStubLLM{}
	e := &Engine{
		Store:     &conflictOnceStore{Store: storage.NewMemoryStore()},
		Lock:      noopLock{},
		Bootstrap: bootstrap.New(stubFetcher{}),
		Router:    router.New(stubIntent{}, alwaysOperational{}),
		Subgraphs: map[router.Subgraph]subgraphs.Subgraph{
			router.SubgraphEscala:      subgraphs.Escala{},
			router.SubgraphClinico:     subgraphs.Clinico{},
			router.SubgraphOperacional: subgraphs.Operacional{},
			router.SubgraphFinalizar:   subgraphs.Finalizar{},
			router.SubgraphAuxiliar:    subgraphs.Auxiliar{},
		},
		Deps:         subgraphs.Deps{LLM: llm, Backend: be},
		Consolidator: consolidator.New(llm),
	}

	result := e.ProcessMessage(context.Background(), models.InboundMessage{
		MessageID:   "m1",
		PhoneNumber: "+5511999999999",
		Text:        "preciso de ajuda urgente com o paciente",
	})

	require.Equal(t, "success", result.Status)
	require.Equal(t, "operational_delivered", result.OutcomeCode)
	require.Equal(t, 1, be.webhookCalls)
}
