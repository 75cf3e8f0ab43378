package subgraphs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carepulse/shift-orchestrator/internal/backend"
	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

// Finalizar implements the shift-closing subgraph from spec §4.6.4.
// Preconditions: finishReminderSent=true. On first entry, existing
// notes are fetched, but their content is not used: nothing is seeded
// or pre-filled from them. Each message fills every topic extracted
// from it, until all eight are collected; each newly filled topic is
// posted to the workflow webhook immediately, and the final summary
// is staged for confirmation once complete.
type Finalizar struct{}

func (Finalizar) Run(ctx context.Context, deps Deps, state *models.SessionState, text string, treatAsAnswer bool) (Outcome, error) {
	if treatAsAnswer && state.PendingAction != nil && state.PendingAction.Flow == models.FlowFinalizeCommit {
		return resolveFinalizeConfirmation(ctx, deps, state, text)
	}

	if len(state.FinalizationTopics.Missing()) == 8 {
		// First entry this session: prior notes are fetched and then
		// discarded. A fetch failure is non-fatal.
		if notes, err := deps.Backend.GetNoteReport(ctx, state.ReportID, state.ReportDate); err == nil {
			_ = notes // context only; nothing in the eight topics is pre-filled from notes
		}
	}

	already := collectedTopics(state)
	extracted, err := deps.LLM.FinalizationTopicExtract(ctx, text, already)
	if err != nil {
		return Outcome{}, err
	}
	filled := mergeFinalizationTopics(state, extracted)

	for _, name := range filled {
		val := topicValue(state.FinalizationTopics, name)
		_ = deps.Backend.PostWorkflowWebhook(ctx, state.SessionID, map[string]any{
			"topic": name,
			"value": val,
			"scenario": "FINALIZATION_TOPIC",
		})
	}

	missing := state.FinalizationTopics.Missing()
	if len(missing) > 0 {
		return Outcome{Code: "finalize_topic_collected"}.withMissing(missing), nil
	}

	stageFinalizeCommit(state)
	return Outcome{Code: "finalize_staged"}, nil
}

func collectedTopics(state *models.SessionState) map[string]any {
	collected := map[string]any{}
	for _, name := range state.FinalizationTopics.Names() {
		if v := topicValue(state.FinalizationTopics, name); v != "" {
			collected[name] = v
		}
	}
	return collected
}

func topicValue(topics models.FinalizationTopics, name string) string {
	switch name {
	case "alimentacao":
		if topics.Alimentacao != nil {
			return *topics.Alimentacao
		}
	case "evacuacoes":
		if topics.Evacuacoes != nil {
			return *topics.Evacuacoes
		}
	case "sono":
		if topics.Sono != nil {
			return *topics.Sono
		}
	case "humor":
		if topics.Humor != nil {
			return *topics.Humor
		}
	case "medicacoes":
		if topics.Medicacoes != nil {
			return *topics.Medicacoes
		}
	case "atividades":
		if topics.Atividades != nil {
			return *topics.Atividades
		}
	case "adicional_clinico":
		if topics.AdicionalClinico != nil {
			return *topics.AdicionalClinico
		}
	case "adicional_administrativo":
		if topics.AdicionalAdministrativo != nil {
			return *topics.AdicionalAdministrativo
		}
	}
	return ""
}

// mergeFinalizationTopics overlays newly extracted topic values onto
// the state, only for topics not already collected, returning the
// names newly filled this turn.
func mergeFinalizationTopics(state *models.SessionState, extracted llmgateway.FinalizationTopicsResult) []string {
	var filled []string
	trySet := func(name string, value *string, existing **string) {
		if value != nil && *existing == nil {
			state.FinalizationTopics.Set(name, *value)
			filled = append(filled, name)
		}
	}
	trySet("alimentacao", extracted.Alimentacao, &state.FinalizationTopics.Alimentacao)
	trySet("evacuacoes", extracted.Evacuacoes, &state.FinalizationTopics.Evacuacoes)
	trySet("sono", extracted.Sono, &state.FinalizationTopics.Sono)
	trySet("humor", extracted.Humor, &state.FinalizationTopics.Humor)
	trySet("medicacoes", extracted.Medicacoes, &state.FinalizationTopics.Medicacoes)
	trySet("atividades", extracted.Atividades, &state.FinalizationTopics.Atividades)
	trySet("adicional_clinico", extracted.AdicionalClinico, &state.FinalizationTopics.AdicionalClinico)
	trySet("adicional_administrativo", extracted.AdicionalAdministrativo, &state.FinalizationTopics.AdicionalAdministrativo)
	return filled
}

func stageFinalizeCommit(state *models.SessionState) {
	payload := map[string]any{}
	for _, name := range state.FinalizationTopics.Names() {
		payload[name] = topicValue(state.FinalizationTopics, name)
	}
	state.PendingAction = &models.PendingAction{
		ActionID:    uuid.NewString(),
		Flow:        models.FlowFinalizeCommit,
		Status:      models.PendingStaged,
		Description: "encerramento do plantão",
		Payload:     payload,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(pendingActionTTL),
	}
}

func resolveFinalizeConfirmation(ctx context.Context, deps Deps, state *models.SessionState, text string) (Outcome, error) {
	answer, err := deps.LLM.ConfirmationClassify(ctx, text)
	if err != nil {
		return Outcome{}, err
	}
	if answer.Answer != llmgateway.ConfirmYes {
		state.PendingAction = nil
		return Outcome{Code: "finalize_topic_collected"}, nil
	}

	in := backend.ReportSummaryInput{
		ActionID:                        state.PendingAction.ActionID,
		ReportID:                        state.ReportID,
		ReportDate:                      state.ReportDate,
		ScheduleID:                      state.ScheduleID,
		PatientFirstName:                state.PatientName,
		ShiftDay:                        state.ShiftDay,
		ShiftStart:                      state.ShiftStart,
		ShiftEnd:                        state.ShiftEnd,
		CaregiverFirstName:              state.CaregiverName,
		CaregiverID:                     state.CaregiverID,
		FoodHydrationSpecification:      topicValue(state.FinalizationTopics, "alimentacao"),
		StoolUrineSpecification:         topicValue(state.FinalizationTopics, "evacuacoes"),
		SleepSpecification:              topicValue(state.FinalizationTopics, "sono"),
		MoodSpecification:               topicValue(state.FinalizationTopics, "humor"),
		MedicationsSpecification:        topicValue(state.FinalizationTopics, "medicacoes"),
		ActivitiesSpecification:         topicValue(state.FinalizationTopics, "atividades"),
		AdditionalInformationSpecification: topicValue(state.FinalizationTopics, "adicional_clinico"),
		AdministrativeInfo:              topicValue(state.FinalizationTopics, "adicional_administrativo"),
	}

	if err := deps.Backend.UpdateReportSummary(ctx, in); err != nil {
		return Outcome{Code: "finalize_commit_failed"}, err
	}

	state.PendingAction = nil
	state.ClearFinalizationBuffer()
	return Outcome{Code: "finalize_committed"}, nil
}
