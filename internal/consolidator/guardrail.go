package consolidator

import "strings"

// forbiddenFinalizationLexicon is the finalization vocabulary a reply
// must never contain while finishReminderSent=false, per spec §4.8 and
// the testable property in §8. Kept as a flat slice matched
// case-insensitively rather than a regex, since the failure mode to
// catch is a literal topic mention, not a pattern.
var forbiddenFinalizationLexicon = []string{
	"encerrar o plantão",
	"encerrando o plantão",
	"finalizar o plantão",
	"finalizando o plantão",
	"fechamento do plantão",
	"resumo do plantão",
	"plantão encerrado",
}

// violatesFinalizationGuardrail reports whether text mentions
// finalization vocabulary, used to reject an LLM-generated reply that
// leaked the wrong topic into a turn that must not discuss it.
func violatesFinalizationGuardrail(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range forbiddenFinalizationLexicon {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
