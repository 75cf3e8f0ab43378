package clinical

import (
	"testing"

	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
	"github.com/stretchr/testify/require"
)

func ptrStr(s string) *string { return &s }
func ptrInt(i int) *int       { return &i }
func ptrF(f float64) *float64 { return &f }

func TestNormalizePAAcceptsBothSeparators(t *testing.T) {
	res := Validate(llmgateway.ClinicalExtractResult{PA: ptrStr("120x80")})
	require.NotNil(t, res.Vitals.PA)
	require.Equal(t, "120x80", *res.Vitals.PA)

	res = Validate(llmgateway.ClinicalExtractResult{PA: ptrStr("120/80")})
	require.NotNil(t, res.Vitals.PA)
	require.Equal(t, "120x80", *res.Vitals.PA)
}

func TestAmbiguousPARejected(t *testing.T) {
	res := Validate(llmgateway.ClinicalExtractResult{PA: ptrStr("12/8")})
	require.Nil(t, res.Vitals.PA)
	require.Contains(t, res.Warnings, "PA_ambigua")
}

func TestRangeBoundariesAcceptedAndRejected(t *testing.T) {
	res := Validate(llmgateway.ClinicalExtractResult{HR: ptrInt(20)})
	require.NotNil(t, res.Vitals.HR)

	res = Validate(llmgateway.ClinicalExtractResult{HR: ptrInt(19)})
	require.Nil(t, res.Vitals.HR)
	require.Contains(t, res.Warnings, "HR_fora_da_faixa")

	res = Validate(llmgateway.ClinicalExtractResult{Temp: ptrF(43.0)})
	require.NotNil(t, res.Vitals.Temp)

	res = Validate(llmgateway.ClinicalExtractResult{Temp: ptrF(43.1)})
	require.Nil(t, res.Vitals.Temp)
}

func TestReadyToCommitRequiresFullTupleBeforeFirstMeasurement(t *testing.T) {
	state := &models.SessionState{}
	require.False(t, ReadyToCommit(state, false))

	note := "paciente estável"
	mode := models.RespiratoryAmbient
	state.Vitals = models.Vitals{PA: ptrStr("120x80"), HR: ptrInt(78), RR: ptrInt(18), SatO2: ptrInt(97), Temp: ptrF(36.8)}
	state.RespiratoryMode = &mode
	state.ClinicalNote = &note
	require.True(t, ReadyToCommit(state, false))
}

func TestReadyToCommitAllowsNoteOnlyAfterFirstMeasurement(t *testing.T) {
	note := "sem alterações"
	state := &models.SessionState{FirstCompleteMeasurementDone: true, ClinicalNote: &note}
	require.True(t, ReadyToCommit(state, true))
}

func TestMergeIncrementalNeverOverwritesConfirmed(t *testing.T) {
	existing := models.Vitals{HR: ptrInt(80)}
	incoming := models.Vitals{HR: ptrInt(90), RR: ptrInt(18)}
	merged := MergeIncremental(existing, incoming)
	require.Equal(t, 80, *merged.HR)
	require.Equal(t, 18, *merged.RR)
}
