package subgraphs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/shift-orchestrator/internal/backend"
	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

// Escala implements the attendance subgraph from spec §4.6.1:
// idle → awaiting_user_confirm → staged → committed|cancelled.
type Escala struct{}

const pendingActionTTL = 10 * time.Minute

func (Escala) Run(ctx context.Context, deps Deps, state *models.SessionState, text string, treatAsAnswer bool) (Outcome, error) {
	if treatAsAnswer && state.PendingAction != nil && state.PendingAction.Flow == models.FlowEscalaCommit {
		return resolveEscalaConfirmation(ctx, deps, state, text)
	}

	answer, err := deps.LLM.ConfirmationClassify(ctx, text)
	if err != nil {
		return Outcome{}, err
	}

	var responseValue string
	switch answer.Answer {
	case llmgateway.ConfirmYes:
		responseValue = "confirmado"
	case llmgateway.ConfirmNo, llmgateway.ConfirmCancel:
		responseValue = "cancelado"
	default:
		return Outcome{Code: "escala_staged_pending_intent"}, nil
	}

	state.PendingAction = &models.PendingAction{
		ActionID:    uuid.NewString(),
		Flow:        models.FlowEscalaCommit,
		Status:      models.PendingStaged,
		Description: "confirmação de presença no plantão",
		Payload: map[string]any{
			"scheduleId":    state.ScheduleID,
			"responseValue": responseValue,
		},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(pendingActionTTL),
	}
	return Outcome{Code: "escala_staged"}, nil
}

// resolveEscalaConfirmation classifies the reply to a staged
// confirmation: "sim" executes the commit with the responseValue
// decided at staging time; "não"/"cancelar" cancels the pending action
// without touching attendance state, per spec §4.6.1.
func resolveEscalaConfirmation(ctx context.Context, deps Deps, state *models.SessionState, text string) (Outcome, error) {
	answer, err := deps.LLM.ConfirmationClassify(ctx, text)
	if err != nil {
		return Outcome{}, err
	}
	if answer.Answer != llmgateway.ConfirmYes {
		state.PendingAction = nil
		return Outcome{Code: "escala_cancelled"}, nil
	}

	action := state.PendingAction
	responseValue, _ := action.Payload["responseValue"].(string)
	scheduleID, _ := action.Payload["scheduleId"].(string)

	err = deps.Backend.UpdateWorkScheduleResponse(ctx, scheduleID, responseValue)
	if err != nil {
		return Outcome{Code: "escala_commit_failed"}, err
	}

	state.Response = models.ResponseValue(responseValue)
	state.PendingAction = nil
	return Outcome{Code: "escala_confirmed"}, nil
}

var _ Backend = (*backend.Adapter)(nil)
