package subgraphs

import (
	"context"
	"testing"

	"github.com/carepulse/shift-orchestrator/internal/backend"
	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	confirmation   llmgateway.ConfirmationResult
	clinicalByText map[string]llmgateway.ClinicalExtractResult
	topics         llmgateway.FinalizationTopicsResult
}

func (s stubLLM) ConfirmationClassify(context.Context, string) (llmgateway.ConfirmationResult, error) {
	return s.confirmation, nil
}
func (s stubLLM) ClinicalExtract(_ context.Context, text string) (llmgateway.ClinicalExtractResult, error) {
	return s.clinicalByText[text], nil
}
func (s stubLLM) FinalizationTopicExtract(context.Context, string, map[string]any) (llmgateway.FinalizationTopicsResult, error) {
	return s.topics, nil
}
func (s stubLLM) OperationalNoteDetect(context.Context, string) (llmgateway.OperationalNoteResult, error) {
	return llmgateway.OperationalNoteResult{}, nil
}

type stubBackend struct {
	updateClinicalCalls int
	webhookCalls        int
}

func (b *stubBackend) UpdateWorkScheduleResponse(context.Context, string, string) error { return nil }
func (b *stubBackend) UpdateClinicalData(context.Context, backend.ClinicalDataInput) error {
	b.updateClinicalCalls++
	return nil
}
func (b *stubBackend) UpdateReportSummary(context.Context, backend.ReportSummaryInput) error {
	return nil
}
func (b *stubBackend) GetNoteReport(context.Context, string, string) ([]backend.NoteReportEntry, error) {
	return nil, nil
}
func (b *stubBackend) PostWorkflowWebhook(context.Context, string, map[string]any) error {
	b.webhookCalls++
	return nil
}

func ptrStr(s string) *string  { return &s }
func ptrInt(i int) *int        { return &i }
func ptrFloat(f float64) *float64 { return &f }

func TestIncrementalVitalsThenCommit(t *testing.T) {
	be := &stubBackend{}
	llm := stubLLM{
		confirmation: llmgateway.ConfirmationResult{Answer: llmgateway.ConfirmYes},
		clinicalByText: map[string]llmgateway.ClinicalExtractResult{
			"PA 120x80":                             {PA: ptrStr("120x80")},
			"FC 78, Sat 97%":                         {HR: ptrInt(78), SatO2: ptrInt(97)},
			"FR 18, Temp 36.8, ar ambiente, paciente estável": {
				RR: ptrInt(18), Temp: ptrFloat(36.8), RespiratoryMode: ptrStr("ambient"), ClinicalNote: ptrStr("paciente estável"),
			},
		},
	}
	deps := Deps{LLM: llm, Backend: be}
	state := &models.SessionState{SessionID: "s1"}
	sub := Clinico{}

	out, err := sub.Run(context.Background(), deps, state, "PA 120x80", false)
	require.NoError(t, err)
	require.Equal(t, "clinical_missing", out.Code)

	out, err = sub.Run(context.Background(), deps, state, "FC 78, Sat 97%", false)
	require.NoError(t, err)
	require.Equal(t, "clinical_missing", out.Code)

	out, err = sub.Run(context.Background(), deps, state, "FR 18, Temp 36.8, ar ambiente, paciente estável", false)
	require.NoError(t, err)
	require.Equal(t, "clinical_staged", out.Code)
	require.NotNil(t, state.PendingAction)

	out, err = sub.Run(context.Background(), deps, state, "sim", true)
	require.NoError(t, err)
	require.Equal(t, "clinical_committed", out.Code)
	require.Equal(t, 1, be.updateClinicalCalls)
	require.True(t, state.FirstCompleteMeasurementDone)
	require.Nil(t, state.PendingAction)
}

func TestOperationalNoteDuringPendingClinicalDoesNotCancelIt(t *testing.T) {
	be := &stubBackend{}
	llm := stubLLM{}
	deps := Deps{LLM: llm, Backend: be}
	state := &models.SessionState{
		SessionID: "s1",
		PendingAction: &models.PendingAction{
			Flow:   models.FlowClinicalCommit,
			Status: models.PendingStaged,
		},
	}

	out, err := Operacional{}.Run(context.Background(), deps, state, "acabou a fralda", false)
	require.NoError(t, err)
	require.Equal(t, "operational_delivered", out.Code)
	require.NotNil(t, state.PendingAction)
	require.Equal(t, models.PendingStaged, state.PendingAction.Status)
}
