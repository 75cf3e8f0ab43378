// Package bootstrap implements session hydration from spec §4.10,
// grounded on the original implementation's garantir_bootstrap_sessao
// (app/graph/router.py): fetch shift context from the backend on first
// contact, and degrade to the auxiliar flow gracefully on failure
// rather than surfacing an error to the caregiver.
package bootstrap

import (
	"context"
	"strings"
	"unicode"

	"github.com/carepulse/shift-orchestrator/internal/backend"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

// ScheduleFetcher is the narrow backend slice bootstrap needs.
type ScheduleFetcher interface {
	GetScheduleStarted(ctx context.Context, phoneNumber string) (backend.ScheduleStarted, error)
}

// Bootstrapper hydrates shift context into a SessionState.
type Bootstrapper struct {
	backend ScheduleFetcher
}

// New builds a Bootstrapper over the given backend.
func New(b ScheduleFetcher) *Bootstrapper {
	return &Bootstrapper{backend: b}
}

// NeedsHydration reports whether state requires a fresh
// getScheduleStarted call, per spec §4.10: empty scheduleId, a
// brand-new session (version 0), or an explicit template-fired hint
// of a new shift.
func NeedsHydration(state *models.SessionState, version int64, newShiftHint bool) bool {
	return state.ScheduleID == "" || version == 0 || newShiftHint
}

// Hydrate populates shift/patient/report fields from the backend. On
// failure, it leaves the state otherwise untouched; the caller (the
// engine) is expected to route to auxiliar when ScheduleID remains
// empty afterward.
func (b *Bootstrapper) Hydrate(ctx context.Context, state *models.SessionState) error {
	info, err := b.backend.GetScheduleStarted(ctx, state.PhoneNumber)
	if err != nil {
		return err
	}

	state.ScheduleID = info.ScheduleID
	state.PatientID = info.PatientID
	state.PatientName = normalizeName(info.PatientName)
	state.ReportID = info.ReportID
	state.ReportDate = info.ReportDate
	state.ShiftDay = info.ShiftDay
	state.ShiftStart = info.ShiftStart
	state.ShiftEnd = info.ShiftEnd
	state.ShiftAllow = info.ShiftAllow
	state.Response = models.ResponseValue(info.Response)
	state.ScheduleStarted = info.ScheduleStarted
	state.FinishReminderSent = info.FinishReminderSent
	state.CaregiverID = info.CaregiverID
	state.CaregiverName = normalizeName(info.CaregiverName)
	state.Company = info.Company
	state.Cooperative = info.Cooperative
	return nil
}

// normalizeName title-cases a raw backend name field and trims
// whitespace, mirroring the light normalization the original
// implementation applied to caregiver/patient names before display.
func normalizeName(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	words := strings.Fields(strings.ToLower(trimmed))
	for i, w := range words {
		if len(w) > 0 {
			r := []rune(w)
			words[i] = string(unicode.ToUpper(r[0])) + string(r[1:])
		}
	}
	return strings.Join(words, " ")
}
