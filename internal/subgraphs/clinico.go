package subgraphs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/shift-orchestrator/internal/backend"
	"github.com/carepulse/shift-orchestrator/internal/clinical"
	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

// Clinico implements the clinical subgraph from spec §4.6.2:
// collecting → awaiting_commit_confirm → committed.
type Clinico struct{}

func (Clinico) Run(ctx context.Context, deps Deps, state *models.SessionState, text string, treatAsAnswer bool) (Outcome, error) {
	if treatAsAnswer && state.PendingAction != nil && state.PendingAction.Flow == models.FlowClinicalCommit {
		return resolveClinicalConfirmation(ctx, deps, state, text)
	}

	raw, err := deps.LLM.ClinicalExtract(ctx, text)
	if err != nil {
		return Outcome{}, err
	}
	extracted := clinical.Validate(raw)

	// Merge incremental values; never clobber an already-confirmed field.
	state.Vitals = clinical.MergeIncremental(state.Vitals, extracted.Vitals)
	if state.RespiratoryMode == nil {
		state.RespiratoryMode = extracted.RespiratoryMode
	}
	if state.ClinicalNote == nil {
		state.ClinicalNote = extracted.ClinicalNote
	}

	hasNoteOnly := !extracted.Vitals.Complete() && extracted.ClinicalNote != nil &&
		state.Vitals == (models.Vitals{})

	// Note-only commit path, only once the first full measurement has
	// already been recorded.
	if hasNoteOnly && state.FirstCompleteMeasurementDone {
		return commitClinicalNoteOnly(ctx, deps, state)
	}

	if !clinical.ReadyToCommit(state, hasNoteOnly) {
		missing := clinical.MissingForFirstCommit(state)
		if state.FirstCompleteMeasurementDone {
			missing = state.Vitals.Missing()
		}
		return Outcome{Code: "clinical_missing"}.withMissing(missing), nil
	}

	stageClinicalCommit(state)
	return Outcome{Code: "clinical_staged"}, nil
}

func stageClinicalCommit(state *models.SessionState) {
	state.PendingAction = &models.PendingAction{
		ActionID:    uuid.NewString(),
		Flow:        models.FlowClinicalCommit,
		Status:      models.PendingStaged,
		Description: "registro de sinais vitais",
		Payload:     clinicalCommitPayload(state),
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(pendingActionTTL),
	}
}

func clinicalCommitPayload(state *models.SessionState) map[string]any {
	payload := map[string]any{}
	if state.Vitals.PA != nil {
		payload["PA"] = *state.Vitals.PA
	}
	if state.Vitals.HR != nil {
		payload["HR"] = *state.Vitals.HR
	}
	if state.Vitals.RR != nil {
		payload["RR"] = *state.Vitals.RR
	}
	if state.Vitals.SatO2 != nil {
		payload["SatO2"] = *state.Vitals.SatO2
	}
	if state.Vitals.Temp != nil {
		payload["Temp"] = *state.Vitals.Temp
	}
	if state.RespiratoryMode != nil {
		payload["respiratoryMode"] = string(*state.RespiratoryMode)
	}
	if state.ClinicalNote != nil {
		payload["clinicalNote"] = *state.ClinicalNote
	}
	return payload
}

func resolveClinicalConfirmation(ctx context.Context, deps Deps, state *models.SessionState, text string) (Outcome, error) {
	answer, err := deps.LLM.ConfirmationClassify(ctx, text)
	if err != nil {
		return Outcome{}, err
	}
	if answer.Answer != llmgateway.ConfirmYes {
		// Keep the buffer, only clear the pending action: the caregiver
		// may still want to finish collecting/correcting before retrying.
		state.PendingAction = nil
		return Outcome{Code: "clinical_missing"}, nil
	}

	in := buildClinicalDataInput(state)
	if err := deps.Backend.UpdateClinicalData(ctx, in); err != nil {
		return Outcome{Code: "clinical_commit_failed"}, err
	}
	webhookPayload := clinicalCommitPayload(state)
	webhookPayload["scenario"] = string(in.Scenario)
	_ = deps.Backend.PostWorkflowWebhook(ctx, state.SessionID, webhookPayload)

	state.FirstCompleteMeasurementDone = true
	state.PendingAction = nil
	state.ClearClinicalBuffer()
	return Outcome{Code: "clinical_committed"}, nil
}

func commitClinicalNoteOnly(ctx context.Context, deps Deps, state *models.SessionState) (Outcome, error) {
	in := backend.ClinicalDataInput{
		ActionID:   uuid.NewString(),
		Scenario:   backend.ScenarioNoteOnly,
		ReportID:   state.ReportID,
		ReportDate: state.ReportDate,
	}
	if state.ClinicalNote != nil {
		in.ClinicalNote = *state.ClinicalNote
	}
	if err := deps.Backend.UpdateClinicalData(ctx, in); err != nil {
		return Outcome{Code: "clinical_commit_failed"}, err
	}
	_ = deps.Backend.PostWorkflowWebhook(ctx, state.SessionID, map[string]any{
		"clinicalNote": in.ClinicalNote,
		"scenario":     string(backend.ScenarioNoteOnly),
	})
	state.ClearClinicalBuffer()
	return Outcome{Code: "clinical_note_only_committed"}, nil
}

func buildClinicalDataInput(state *models.SessionState) backend.ClinicalDataInput {
	in := backend.ClinicalDataInput{
		ActionID:   state.PendingAction.ActionID,
		ReportID:   state.ReportID,
		ReportDate: state.ReportDate,
		HeartRate:  state.Vitals.HR,
		RespRate:   state.Vitals.RR,
		SaturationO2: state.Vitals.SatO2,
		BloodPressure: state.Vitals.PA,
		Temperature:   state.Vitals.Temp,
	}
	if state.ClinicalNote != nil {
		in.ClinicalNote = *state.ClinicalNote
	}
	hasVitals := state.Vitals.Complete()
	hasNote := state.ClinicalNote != nil
	switch {
	case hasVitals && hasNote:
		in.Scenario = backend.ScenarioVitalSignsNote
	case hasVitals:
		in.Scenario = backend.ScenarioVitalSignsOnly
	case hasNote:
		in.Scenario = backend.ScenarioNoteOnly
	}
	return in
}

// withMissing attaches the missing-fields list to an Outcome's
// ContinueReason for the consolidator to surface in its reply prompt.
func (o Outcome) withMissing(missing []string) Outcome {
	reason := ""
	for i, m := range missing {
		if i > 0 {
			reason += ", "
		}
		reason += m
	}
	o.ContinueReason = reason
	return o
}
