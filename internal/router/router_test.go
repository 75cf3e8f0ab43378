package router

import (
	"context"
	"testing"

	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
	"github.com/stretchr/testify/require"
)

type stubIntent struct {
	result llmgateway.IntentResult
}

func (s stubIntent) IntentClassify(context.Context, string, map[string]any) (llmgateway.IntentResult, error) {
	return s.result, nil
}

type stubOperational struct {
	isOperational bool
}

func (s stubOperational) OperationalNoteDetect(context.Context, string) (llmgateway.OperationalNoteResult, error) {
	return llmgateway.OperationalNoteResult{IsOperational: s.isOperational}, nil
}

func TestFinishGateWinsWhenReminderSent(t *testing.T) {
	r := New(stubIntent{}, stubOperational{})
	state := &models.SessionState{FinishReminderSent: true}
	decision, err := r.Route(context.Background(), state, "oi")
	require.NoError(t, err)
	require.Equal(t, SubgraphFinalizar, decision.Subgraph)
	require.Equal(t, GateFinish, decision.Gate)
}

func TestPendingActionWinsOverAttendanceGate(t *testing.T) {
	r := New(stubIntent{}, stubOperational{})
	state := &models.SessionState{
		ShiftAllow: true,
		Response:   models.ResponseAwaiting,
		PendingAction: &models.PendingAction{
			Flow:   models.FlowEscalaCommit,
			Status: models.PendingStaged,
		},
	}
	decision, err := r.Route(context.Background(), state, "sim")
	require.NoError(t, err)
	require.Equal(t, SubgraphEscala, decision.Subgraph)
	require.Equal(t, GatePendingConfirmation, decision.Gate)
	require.True(t, decision.TreatAsAnswer)
}

func TestOperationalNoteDivertsWithoutCancellingPending(t *testing.T) {
	r := New(stubIntent{}, stubOperational{isOperational: true})
	state := &models.SessionState{
		PendingAction: &models.PendingAction{Flow: models.FlowClinicalCommit, Status: models.PendingStaged},
	}
	decision, err := r.Route(context.Background(), state, "acabou a fralda")
	require.NoError(t, err)
	require.Equal(t, SubgraphOperacional, decision.Subgraph)
	require.NotNil(t, state.PendingAction, "pending action must survive the diversion")
	require.Equal(t, models.PendingStaged, state.PendingAction.Status)
}

func TestAttendanceGateFiresWhenShiftAllowedAndUnconfirmed(t *testing.T) {
	r := New(stubIntent{}, stubOperational{})
	state := &models.SessionState{ShiftAllow: true, Response: models.ResponseAwaiting}
	decision, err := r.Route(context.Background(), state, "qualquer coisa")
	require.NoError(t, err)
	require.Equal(t, SubgraphEscala, decision.Subgraph)
	require.Equal(t, GateAttendance, decision.Gate)
}

func TestFallsThroughToIntentClassification(t *testing.T) {
	r := New(stubIntent{result: llmgateway.IntentResult{Intent: llmgateway.IntentClinico, Confidence: 0.9}}, stubOperational{})
	state := &models.SessionState{Response: models.ResponseConfirmed}
	decision, err := r.Route(context.Background(), state, "PA 120x80")
	require.NoError(t, err)
	require.Equal(t, SubgraphClinico, decision.Subgraph)
	require.Equal(t, GateIntent, decision.Gate)
}

func TestIndefinidoMapsToAuxiliar(t *testing.T) {
	r := New(stubIntent{result: llmgateway.IntentResult{Intent: llmgateway.IntentIndefinido}}, stubOperational{})
	state := &models.SessionState{Response: models.ResponseConfirmed}
	decision, err := r.Route(context.Background(), state, "???")
	require.NoError(t, err)
	require.Equal(t, SubgraphAuxiliar, decision.Subgraph)
}
