// Package backend implements the outbound calls to the scheduling and
// clinical backend plus the workflow webhook (spec §4.7, §6.3-6.4).
// One method per endpoint, each wrapped in its own circuit breaker and
// an exponential-backoff retry, grounded on the original's
// LAMBDA_CIRCUIT_CONFIG per-dependency breaker registry.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/carepulse/shift-orchestrator/internal/circuitbreaker"
)

// ScheduleStarted is getScheduleStarted's response shape (spec §6.3).
type ScheduleStarted struct {
	ScheduleID         string `json:"scheduleId"`
	PatientID          string `json:"patientId"`
	PatientName        string `json:"patientName"`
	ReportID           string `json:"reportId"`
	ReportDate         string `json:"reportDate"`
	ShiftDay           string `json:"shiftDay"`
	ShiftStart         string `json:"shiftStart"`
	ShiftEnd           string `json:"shiftEnd"`
	ShiftAllow         bool   `json:"shiftAllow"`
	Response           string `json:"response"`
	ScheduleStarted    bool   `json:"scheduleStarted"`
	FinishReminderSent bool   `json:"finishReminderSent"`
	CaregiverID        string `json:"caregiverId"`
	CaregiverName      string `json:"caregiverName"`
	Company            string `json:"company"`
	Cooperative        string `json:"cooperative"`
}

// ClinicalScenario names the seven updateClinicalData input shapes
// from spec §6.3.
type ClinicalScenario string

const (
	ScenarioVitalSignsNoteSymptoms ClinicalScenario = "VITAL_SIGNS_NOTE_SYMPTOMS"
	ScenarioVitalSignsSymptoms     ClinicalScenario = "VITAL_SIGNS_SYMPTOMS"
	ScenarioVitalSignsNote         ClinicalScenario = "VITAL_SIGNS_NOTE"
	ScenarioVitalSignsOnly         ClinicalScenario = "VITAL_SIGNS_ONLY"
	ScenarioNoteSymptoms           ClinicalScenario = "NOTE_SYMPTOMS"
	ScenarioSymptomsOnly           ClinicalScenario = "SYMPTOMS_ONLY"
	ScenarioNoteOnly               ClinicalScenario = "NOTE_ONLY"
)

// ClinicalDataInput is updateClinicalData's request body.
type ClinicalDataInput struct {
	ActionID              string            `json:"actionId"`
	Scenario              ClinicalScenario  `json:"scenario"`
	ReportID              string            `json:"reportID"`
	ReportDate            string            `json:"reportDate"`
	CaregiverIdentifier   string            `json:"caregiverIdentifier,omitempty"`
	PatientIdentifier     string            `json:"patientIdentifier,omitempty"`
	HeartRate             *int              `json:"heartRate,omitempty"`
	RespRate              *int              `json:"respRate,omitempty"`
	SaturationO2          *int              `json:"saturationO2,omitempty"`
	BloodPressure         *string           `json:"bloodPressure,omitempty"`
	Temperature           *float64          `json:"temperature,omitempty"`
	SupplementaryOxygen   *bool             `json:"supplementaryOxygen,omitempty"`
	OxygenVolume          *float64          `json:"oxygenVolume,omitempty"`
	OxygenConcentrator    *bool             `json:"oxygenConcentrator,omitempty"`
	ClinicalNote          string            `json:"clinicalNote,omitempty"`
	SymptomReport         []string          `json:"SymptomReport,omitempty"`
}

// ReportSummaryInput is updatereportsummaryad's request body.
type ReportSummaryInput struct {
	ActionID                        string `json:"actionId"`
	ReportID                        string `json:"reportID"`
	ReportDate                      string `json:"reportDate"`
	ScheduleID                      string `json:"scheduleID"`
	PatientFirstName                string `json:"patientFirstName"`
	ShiftDay                        string `json:"shiftDay"`
	ShiftStart                      string `json:"shiftStart"`
	ShiftEnd                        string `json:"shiftEnd"`
	CaregiverFirstName              string `json:"caregiverFirstName"`
	CaregiverID                     string `json:"caregiverID"`
	FoodHydrationSpecification      string `json:"foodHydrationSpecification"`
	StoolUrineSpecification         string `json:"stoolUrineSpecification"`
	SleepSpecification              string `json:"sleepSpecification"`
	MoodSpecification               string `json:"moodSpecification"`
	MedicationsSpecification        string `json:"medicationsSpecification"`
	ActivitiesSpecification         string `json:"activitiesSpecification"`
	AdditionalInformationSpecification string `json:"additionalInformationSpecification"`
	AdministrativeInfo               string `json:"administrativeInfo"`
}

// NoteReportEntry is one row of getNoteReport's response.
type NoteReportEntry struct {
	NoteDescAI string `json:"noteDescAI"`
	Timestamp  string `json:"timestamp"`
}

// Config holds the five backend endpoint URLs and the shared timeout.
type Config struct {
	GetScheduleURL       string
	UpdateScheduleURL    string
	UpdateClinicalURL    string
	UpdateSummaryURL     string
	GetNoteReportURL     string
	WebhookURL           string
	Timeout              time.Duration
	MaxRetries           int
}

// Adapter is the Backend Adapter from spec §4.7.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	breakers   map[string]*circuitbreaker.Breaker
}

// New builds an Adapter with one breaker per endpoint.
func New(cfg Config) *Adapter {
	names := []string{"getScheduleStarted", "updateWorkScheduleResponse", "updateClinicalData", "updatereportsummaryad", "getNoteReport", "webhook"}
	breakers := make(map[string]*circuitbreaker.Breaker, len(names))
	for _, name := range names {
		breakers[name] = circuitbreaker.New(name, circuitbreaker.BackendConfig())
	}
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breakers:   breakers,
	}
}

func (a *Adapter) doJSON(ctx context.Context, breakerName, url string, in any, out any) error {
	breaker := a.breakers[breakerName]
	return breaker.Call(ctx, func(ctx context.Context) error {
		return a.retryingPost(ctx, url, in, out)
	})
}

// retryingPost performs an exponential-backoff-retried POST, classifying
// failures as Timeout (the context expired), BackendTransient (network
// errors and every non-2xx, non-4xx status, retried) or
// BackendPermanent (4xx, not retried). There is no separate permanent
// kind for 5xx responses: they are treated as transient.
func (a *Adapter) retryingPost(ctx context.Context, url string, in any, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return apperr.Wrap(apperr.KindInvariantViolation, "encode backend request", err)
	}

	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return apperr.Wrap(apperr.KindInvariantViolation, "build backend request", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return apperr.Wrap(apperr.KindTimeout, "backend call timed out", err)
			}
			lastErr = apperr.Wrap(apperr.KindBackendTransient, "backend call failed", err)
			if !a.shouldRetry(attempt) {
				return lastErr
			}
			a.sleepBackoff(ctx, &backoff)
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out != nil && len(respBody) > 0 {
				if err := json.Unmarshal(respBody, out); err != nil {
					return apperr.Wrap(apperr.KindInvariantViolation, "decode backend response", err)
				}
			}
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return apperr.New(apperr.KindBackendPermanent, fmt.Sprintf("backend rejected request: %d", resp.StatusCode))
		default:
			lastErr = apperr.New(apperr.KindBackendTransient, fmt.Sprintf("backend returned %d", resp.StatusCode))
			if !a.shouldRetry(attempt) {
				return lastErr
			}
			a.sleepBackoff(ctx, &backoff)
		}
	}
	return lastErr
}

func (a *Adapter) shouldRetry(attempt int) bool {
	return attempt < a.cfg.MaxRetries
}

func (a *Adapter) sleepBackoff(ctx context.Context, backoff *time.Duration) {
	jitter := time.Duration(rand.Int63n(int64(*backoff) + 1))
	select {
	case <-time.After(*backoff + jitter):
	case <-ctx.Done():
	}
	*backoff *= 2
}

// GetScheduleStarted fetches the current shift/patient/report context
// for a caregiver's phone number, used by bootstrap.
func (a *Adapter) GetScheduleStarted(ctx context.Context, phoneNumber string) (ScheduleStarted, error) {
	var out ScheduleStarted
	err := a.doJSON(ctx, "getScheduleStarted", a.cfg.GetScheduleURL, map[string]string{"phoneNumber": phoneNumber}, &out)
	return out, err
}

// UpdateWorkScheduleResponse commits the caregiver's attendance
// confirmation/cancellation.
func (a *Adapter) UpdateWorkScheduleResponse(ctx context.Context, scheduleIdentifier, responseValue string) error {
	return a.doJSON(ctx, "updateWorkScheduleResponse", a.cfg.UpdateScheduleURL,
		map[string]string{"scheduleIdentifier": scheduleIdentifier, "responseValue": responseValue}, nil)
}

// UpdateClinicalData commits a staged clinical record.
func (a *Adapter) UpdateClinicalData(ctx context.Context, in ClinicalDataInput) error {
	return a.doJSON(ctx, "updateClinicalData", a.cfg.UpdateClinicalURL, in, nil)
}

// UpdateReportSummary commits the full finalization summary.
func (a *Adapter) UpdateReportSummary(ctx context.Context, in ReportSummaryInput) error {
	return a.doJSON(ctx, "updatereportsummaryad", a.cfg.UpdateSummaryURL, in, nil)
}

// GetNoteReport fetches prior notes for a report, used by finalizar to
// seed context on first entry.
func (a *Adapter) GetNoteReport(ctx context.Context, reportID, reportDate string) ([]NoteReportEntry, error) {
	var out struct {
		Notes []NoteReportEntry `json:"notes"`
	}
	err := a.doJSON(ctx, "getNoteReport", a.cfg.GetNoteReportURL,
		map[string]string{"reportID": reportID, "reportDate": reportDate}, &out)
	return out.Notes, err
}

// PostWorkflowWebhook delivers a scenario-keyed payload to the n8n
// workflow, used by clinico, operacional and finalizar. The session ID is always
// injected so the workflow can correlate the event back to a session.
func (a *Adapter) PostWorkflowWebhook(ctx context.Context, sessionID string, payload map[string]any) error {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["sessionID"] = sessionID
	return a.doJSON(ctx, "webhook", a.cfg.WebhookURL, body, nil)
}
