package llmgateway

// Intent is the five-subgraph classification plus the undetermined
// fallback, per spec §4.3.
type Intent string

const (
	IntentEscala      Intent = "escala"
	IntentClinico     Intent = "clinico"
	IntentOperacional Intent = "operacional"
	IntentFinalizar   Intent = "finalizar"
	IntentAuxiliar    Intent = "auxiliar"
	IntentIndefinido  Intent = "indefinido"
)

// IntentResult is IntentClassify's output.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Confirmation is ConfirmationClassify's output vocabulary.
type Confirmation string

const (
	ConfirmYes     Confirmation = "yes"
	ConfirmNo      Confirmation = "no"
	ConfirmCancel  Confirmation = "cancel"
	ConfirmUnclear Confirmation = "unclear"
)

// ConfirmationResult wraps the classified confirmation.
type ConfirmationResult struct {
	Answer Confirmation `json:"answer"`
}

// Urgency is OperationalNoteDetect's severity vocabulary.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// OperationalNoteResult is OperationalNoteDetect's output.
type OperationalNoteResult struct {
	IsOperational bool    `json:"isOperational"`
	Urgency       Urgency `json:"urgency"`
}

// ClinicalExtractResult is ClinicalExtract's raw output, pre any
// further validation performed by internal/clinical. Numeric fields
// outside safety ranges and ambiguous PA are expected to already be
// nil with a warning code by the time this struct is populated, per
// spec §4.3 — internal/clinical re-validates regardless.
type ClinicalExtractResult struct {
	PA              *string  `json:"PA"`
	HR              *int     `json:"HR"`
	RR              *int     `json:"RR"`
	SatO2           *int     `json:"SatO2"`
	Temp            *float64 `json:"Temp"`
	RespiratoryMode *string  `json:"respiratoryMode"`
	ClinicalNote    *string  `json:"clinicalNote"`
	Warnings        []string `json:"warnings"`
}

// FinalizationTopicsResult is FinalizationTopicExtract's output: a
// partial fill of whichever of the eight topics the text addressed.
// Fields already collected are never overwritten by the caller.
type FinalizationTopicsResult struct {
	Alimentacao             *string `json:"alimentacao"`
	Evacuacoes              *string `json:"evacuacoes"`
	Sono                    *string `json:"sono"`
	Humor                   *string `json:"humor"`
	Medicacoes              *string `json:"medicacoes"`
	Atividades              *string `json:"atividades"`
	AdicionalClinico        *string `json:"adicional_clinico"`
	AdicionalAdministrativo *string `json:"adicional_administrativo"`
}

// ReplyRequest bundles what GenerateReply needs: the compact state
// summary, the subgraph's outcome code, and the language hint (always
// "pt-BR" in this deployment, kept explicit per spec wording).
type ReplyRequest struct {
	CompactState map[string]any `json:"compactState"`
	OutcomeCode  string         `json:"outcomeCode"`
	LanguageHint string         `json:"languageHint"`
}

// ReplyResult is GenerateReply's output.
type ReplyResult struct {
	Text string `json:"text"`
}
