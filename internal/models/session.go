package models

import "time"

// ResponseValue mirrors the three-way attendance response plus the
// empty "not yet asked" state.
type ResponseValue string

const (
	ResponseNone       ResponseValue = ""
	ResponseConfirmed  ResponseValue = "confirmado"
	ResponseAwaiting   ResponseValue = "aguardando resposta"
	ResponseCancelled  ResponseValue = "cancelado"
)

// RespiratoryMode is the controlled vocabulary for the clinical
// respiratory descriptor.
type RespiratoryMode string

const (
	RespiratoryAmbient      RespiratoryMode = "ambient"
	RespiratorySupplementalO2 RespiratoryMode = "supplemental_o2"
	RespiratoryMechanicalVent RespiratoryMode = "mechanical_ventilation"
)

// Vitals is the clinical buffer's five-tuple. Every field is a pointer
// so "not yet collected" is distinguishable from a zero value.
type Vitals struct {
	PA     *string  `json:"PA,omitempty" gorm:"column:pa"`
	HR     *int     `json:"HR,omitempty" gorm:"column:hr"`
	RR     *int     `json:"RR,omitempty" gorm:"column:rr"`
	SatO2  *int     `json:"SatO2,omitempty" gorm:"column:sat_o2"`
	Temp   *float64 `json:"Temp,omitempty" gorm:"column:temp"`
}

// Complete reports whether every vitals field has been collected.
func (v Vitals) Complete() bool {
	return v.PA != nil && v.HR != nil && v.RR != nil && v.SatO2 != nil && v.Temp != nil
}

// Missing returns the subset of the mandatory vitals names not yet set,
// in the spec's canonical order.
func (v Vitals) Missing() []string {
	var missing []string
	if v.PA == nil {
		missing = append(missing, "PA")
	}
	if v.HR == nil {
		missing = append(missing, "FC")
	}
	if v.RR == nil {
		missing = append(missing, "FR")
	}
	if v.SatO2 == nil {
		missing = append(missing, "Sat")
	}
	if v.Temp == nil {
		missing = append(missing, "Temp")
	}
	return missing
}

// FinalizationTopics is the shift-closing buffer's eight slots.
type FinalizationTopics struct {
	Alimentacao               *string `json:"alimentacao,omitempty"`
	Evacuacoes                *string `json:"evacuacoes,omitempty"`
	Sono                      *string `json:"sono,omitempty"`
	Humor                     *string `json:"humor,omitempty"`
	Medicacoes                *string `json:"medicacoes,omitempty"`
	Atividades                *string `json:"atividades,omitempty"`
	AdicionalClinico          *string `json:"adicional_clinico,omitempty"`
	AdicionalAdministrativo   *string `json:"adicional_administrativo,omitempty"`
}

// Names returns the eight topic keys in their canonical order, used by
// both the decision loop and the webhook payload builder.
func (FinalizationTopics) Names() []string {
	return []string{
		"alimentacao", "evacuacoes", "sono", "humor",
		"medicacoes", "atividades", "adicional_clinico", "adicional_administrativo",
	}
}

// Missing returns the topic names still nil.
func (f FinalizationTopics) Missing() []string {
	var missing []string
	for _, name := range f.Names() {
		if f.get(name) == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

func (f FinalizationTopics) get(name string) *string {
	switch name {
	case "alimentacao":
		return f.Alimentacao
	case "evacuacoes":
		return f.Evacuacoes
	case "sono":
		return f.Sono
	case "humor":
		return f.Humor
	case "medicacoes":
		return f.Medicacoes
	case "atividades":
		return f.Atividades
	case "adicional_clinico":
		return f.AdicionalClinico
	case "adicional_administrativo":
		return f.AdicionalAdministrativo
	}
	return nil
}

// Set mutates the named topic, returning false for an unknown name.
func (f *FinalizationTopics) Set(name, value string) bool {
	v := value
	switch name {
	case "alimentacao":
		f.Alimentacao = &v
	case "evacuacoes":
		f.Evacuacoes = &v
	case "sono":
		f.Sono = &v
	case "humor":
		f.Humor = &v
	case "medicacoes":
		f.Medicacoes = &v
	case "atividades":
		f.Atividades = &v
	case "adicional_clinico":
		f.AdicionalClinico = &v
	case "adicional_administrativo":
		f.AdicionalAdministrativo = &v
	default:
		return false
	}
	return true
}

// ResumeAfter records why a subgraph diverted, so the router can return
// control once the diversion resolves.
type ResumeAfter struct {
	Flow   string `json:"flow"`
	Reason string `json:"reason"`
}

// PendingActionStatus is the two-phase-commit state machine's status.
type PendingActionStatus string

const (
	PendingStaged    PendingActionStatus = "staged"
	PendingConfirmed PendingActionStatus = "confirmed"
	PendingExecuted  PendingActionStatus = "executed"
	PendingCancelled PendingActionStatus = "cancelled"
)

// PendingActionFlow names the three commit flows that require user
// confirmation before a backend write.
type PendingActionFlow string

const (
	FlowEscalaCommit   PendingActionFlow = "escala_commit"
	FlowClinicalCommit PendingActionFlow = "clinical_commit"
	FlowFinalizeCommit PendingActionFlow = "finalize_commit"
)

// PendingAction is staged by a subgraph and confirmed/cancelled by the
// caregiver's next message.
type PendingAction struct {
	ActionID    string              `json:"actionId"`
	Flow        PendingActionFlow   `json:"flow"`
	Payload     map[string]any      `json:"payload"`
	Description string              `json:"description"`
	Status      PendingActionStatus `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	ExpiresAt   time.Time           `json:"expiresAt"`
}

// SessionState is the full per-session aggregate, versioned with OCC.
// Field groupings mirror the spec's identity / shift / clinical /
// finalization / control sections.
type SessionState struct {
	SessionID   string `json:"sessionId"`
	PhoneNumber string `json:"phoneNumber"`

	CaregiverID   string `json:"caregiverId"`
	CaregiverName string `json:"caregiverName"`
	Company       string `json:"company"`
	Cooperative   string `json:"cooperative"`

	ScheduleID      string        `json:"scheduleId"`
	PatientID       string        `json:"patientId"`
	PatientName     string        `json:"patientName"`
	ShiftDay        string        `json:"shiftDay"`
	ShiftStart      string        `json:"shiftStart"`
	ShiftEnd        string        `json:"shiftEnd"`
	ReportID        string        `json:"reportId"`
	ReportDate      string        `json:"reportDate"`
	ShiftAllow      bool          `json:"shiftAllow"`
	Response        ResponseValue `json:"response"`
	ScheduleStarted bool          `json:"scheduleStarted"`
	FinishReminderSent bool       `json:"finishReminderSent"`

	Vitals                       Vitals           `json:"vitals"`
	RespiratoryMode              *RespiratoryMode `json:"respiratoryMode,omitempty"`
	ClinicalNote                 *string          `json:"clinicalNote,omitempty"`
	FirstCompleteMeasurementDone bool             `json:"firstCompleteMeasurementDone"`

	FinalizationTopics FinalizationTopics `json:"finalizationTopics"`

	PendingAction *PendingAction `json:"pendingAction,omitempty"`
	ResumeAfter   *ResumeAfter   `json:"resumeAfter,omitempty"`
	LastUserText  string         `json:"lastUserText"`
	LastReplyCode string         `json:"lastReplyCode"`
	LastGateFired string         `json:"lastGateFired"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSessionState builds the default (version 0) state created lazily
// on a session's first message.
func NewSessionState(sessionID, phoneNumber string) *SessionState {
	return &SessionState{
		SessionID:   sessionID,
		PhoneNumber: phoneNumber,
		Response:    ResponseNone,
		Version:     0,
	}
}

// ClearClinicalBuffer resets the clinical working set after a
// successful commit, per the lifecycle rule in spec §3.
func (s *SessionState) ClearClinicalBuffer() {
	s.Vitals = Vitals{}
	s.RespiratoryMode = nil
	s.ClinicalNote = nil
}

// ClearFinalizationBuffer resets the finalization working set, called
// after finalize_commit executes successfully.
func (s *SessionState) ClearFinalizationBuffer() {
	s.FinalizationTopics = FinalizationTopics{}
	s.FinishReminderSent = false
}

// BufferEntry is one append-only conversation log row.
type BufferEntry struct {
	SessionID      string    `json:"sessionId"`
	CreatedAtEpoch int64     `json:"createdAtEpoch"`
	Direction      string    `json:"direction"` // "in" | "out"
	Text           string    `json:"text"`
	MessageID      string    `json:"messageId"`
	Meta           string    `json:"meta"` // JSON-encoded, opaque to storage
}

// InboundMessage is the normalized shape produced by ingress handlers,
// independent of the wire transport that delivered it.
type InboundMessage struct {
	MessageID   string
	PhoneNumber string
	Text        string
	Meta        map[string]any
	ReceivedAt  time.Time
}
