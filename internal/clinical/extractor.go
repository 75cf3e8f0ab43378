// Package clinical is the deterministic validator layered on top of
// llmgateway.ClinicalExtract (spec §4.4). Extraction itself lives in
// the LLM gateway per spec §4.3; the only regular expression here
// parses the blood-pressure string. Every value the gateway returns is
// re-validated against the spec's authoritative safety ranges, which
// differ from the original Python extractor's (HR 40-200, RR 8-40,
// Sat 70-100, Temp 30-45): HR, RR and Sat are wider here, Temp is
// narrower (30-43). Spec §4.4 supersedes
// original_source/app/graph/clinical_extractor.py on every numeric bound.
package clinical

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
)

const (
	hrMin, hrMax     = 20, 220
	rrMin, rrMax     = 5, 50
	satMin, satMax   = 50, 100
	tempMin, tempMax = 30.0, 43.0
	paSysMin, paSysMax = 70, 260
	paDiaMin, paDiaMax = 40, 160
)

var paPattern = regexp.MustCompile(`^(\d{2,3})\s*[x/]\s*(\d{2,3})$`)

// Result is the validated, normalized extraction plus any still-missing
// mandatory fields.
type Result struct {
	Vitals          models.Vitals
	RespiratoryMode *models.RespiratoryMode
	ClinicalNote    *string
	Warnings        []string
	Missing         []string
}

// Validate re-applies the spec's ranges and PA normalization to a raw
// gateway extraction, discarding anything out of bounds or ambiguous.
func Validate(raw llmgateway.ClinicalExtractResult) Result {
	var res Result
	res.Warnings = append(res.Warnings, raw.Warnings...)

	if raw.PA != nil {
		if normalized, ok := normalizePA(*raw.PA); ok {
			res.Vitals.PA = &normalized
		} else {
			res.Warnings = append(res.Warnings, "PA_ambigua")
		}
	}
	if raw.HR != nil && *raw.HR >= hrMin && *raw.HR <= hrMax {
		hr := *raw.HR
		res.Vitals.HR = &hr
	} else if raw.HR != nil {
		res.Warnings = append(res.Warnings, "HR_fora_da_faixa")
	}
	if raw.RR != nil && *raw.RR >= rrMin && *raw.RR <= rrMax {
		rr := *raw.RR
		res.Vitals.RR = &rr
	} else if raw.RR != nil {
		res.Warnings = append(res.Warnings, "RR_fora_da_faixa")
	}
	if raw.SatO2 != nil && *raw.SatO2 >= satMin && *raw.SatO2 <= satMax {
		sat := *raw.SatO2
		res.Vitals.SatO2 = &sat
	} else if raw.SatO2 != nil {
		res.Warnings = append(res.Warnings, "SatO2_fora_da_faixa")
	}
	if raw.Temp != nil && *raw.Temp >= tempMin && *raw.Temp <= tempMax {
		temp := *raw.Temp
		res.Vitals.Temp = &temp
	} else if raw.Temp != nil {
		res.Warnings = append(res.Warnings, "Temp_fora_da_faixa")
	}

	if raw.RespiratoryMode != nil {
		if mode, ok := mapRespiratoryMode(*raw.RespiratoryMode); ok {
			res.RespiratoryMode = &mode
		}
	}
	if raw.ClinicalNote != nil && strings.TrimSpace(*raw.ClinicalNote) != "" {
		note := strings.TrimSpace(*raw.ClinicalNote)
		res.ClinicalNote = &note
	}

	return res
}

// normalizePA accepts "120x80" or "120/80" and normalizes to
// "SSSxDDD", validating both sides fall within the spec's PA ranges.
// Systolic-only or otherwise malformed input is ambiguous and rejected
// per spec §4.3's "PA_ambigua" rule.
func normalizePA(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	match := paPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return "", false
	}
	sys, err1 := strconv.Atoi(match[1])
	dia, err2 := strconv.Atoi(match[2])
	if err1 != nil || err2 != nil {
		return "", false
	}
	if sys < paSysMin || sys > paSysMax || dia < paDiaMin || dia > paDiaMax {
		return "", false
	}
	return fmt.Sprintf("%dx%d", sys, dia), true
}

func mapRespiratoryMode(raw string) (models.RespiratoryMode, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ambient", "ar ambiente", "ambiente":
		return models.RespiratoryAmbient, true
	case "supplemental_o2", "oxigenio suplementar", "o2 suplementar":
		return models.RespiratorySupplementalO2, true
	case "mechanical_ventilation", "ventilacao mecanica", "ventilação mecânica":
		return models.RespiratoryMechanicalVent, true
	default:
		return "", false
	}
}

// MergeIncremental overlays newly validated values onto an existing
// vitals buffer without clobbering already-confirmed fields, per
// spec §4.6.2's incremental merge rule: "newly extracted values
// overwrite prior nulls, never overwrite confirmed values."
func MergeIncremental(existing models.Vitals, incoming models.Vitals) models.Vitals {
	merged := existing
	if merged.PA == nil {
		merged.PA = incoming.PA
	}
	if merged.HR == nil {
		merged.HR = incoming.HR
	}
	if merged.RR == nil {
		merged.RR = incoming.RR
	}
	if merged.SatO2 == nil {
		merged.SatO2 = incoming.SatO2
	}
	if merged.Temp == nil {
		merged.Temp = incoming.Temp
	}
	return merged
}

// ReadyToCommit implements the "first complete measurement" rule from
// spec §3 invariant 4 / §4.4: until firstCompleteMeasurementDone,
// a commit requires the full vitals tuple plus respiratoryMode plus a
// clinical note. After the first successful commit, either the full
// tuple + respiratoryMode (note optional) or a standalone note alone
// is sufficient.
func ReadyToCommit(state *models.SessionState, hasNoteOnly bool) bool {
	if !state.FirstCompleteMeasurementDone {
		return state.Vitals.Complete() && state.RespiratoryMode != nil && state.ClinicalNote != nil
	}
	if hasNoteOnly {
		return state.ClinicalNote != nil
	}
	return state.Vitals.Complete() && state.RespiratoryMode != nil
}

// MissingForFirstCommit lists what's still needed before the first
// commit can stage, in a stable order suitable for prompting.
func MissingForFirstCommit(state *models.SessionState) []string {
	missing := state.Vitals.Missing()
	if state.RespiratoryMode == nil {
		missing = append(missing, "modo respiratório")
	}
	if state.ClinicalNote == nil {
		missing = append(missing, "observação clínica")
	}
	return missing
}
