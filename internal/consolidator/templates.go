package consolidator

// fallbackTemplates is the deterministic, outcome-code-keyed reply set
// used when the LLM gateway is unavailable (spec §4.8). Shaped after
// the teacher's WhatsAppTemplates map (internal/services/templates.go):
// a flat map from a short key to the message content, looked up once
// per reply instead of re-derived.
var fallbackTemplates = map[string]string{
	"escala_staged":                "Você confirma sua chegada/saída deste plantão? Responda sim ou não.",
	"escala_staged_pending_intent": "Não entendi se você está confirmando ou cancelando sua presença. Pode repetir?",
	"escala_confirmed":             "Presença confirmada, obrigado!",
	"escala_cancelled":             "Tudo bem, cancelamos essa confirmação. Me avise quando estiver pronto.",
	"escala_commit_failed":         "Não consegui registrar sua confirmação agora. Pode tentar novamente em instantes?",

	"clinical_missing":               "Preciso de mais alguns dados antes de registrar os sinais vitais.",
	"clinical_staged":                "Confere os sinais vitais que registrei? Responda sim para confirmar.",
	"clinical_committed":             "Sinais vitais registrados com sucesso.",
	"clinical_note_only_committed":   "Observação registrada com sucesso.",
	"clinical_rejected_incomplete_first": "Para o primeiro registro do plantão preciso dos sinais vitais completos, do modo respiratório e de uma observação clínica.",
	"clinical_commit_failed":         "Não consegui salvar os sinais vitais agora. Vou manter os dados para tentar de novo.",

	"operational_delivered":        "Anotado, obrigado pelo aviso!",
	"operational_delivery_failed":  "Recebi seu aviso, mas houve um problema ao registrar. Nossa equipe vai verificar.",

	"finalize_topic_collected": "Entendido. O que mais você pode me contar sobre o plantão?",
	"finalize_staged":          "Esse é o resumo do plantão. Posso encerrar? Responda sim para confirmar.",
	"finalize_committed":       "Plantão encerrado com sucesso. Obrigado pelo cuidado de hoje!",
	"finalize_commit_failed":   "Não consegui encerrar o plantão agora. Vou manter o resumo para tentar de novo.",

	"help_generic": "Estou aqui para ajudar com confirmação de presença, registro de sinais vitais, avisos operacionais e encerramento de plantão. Como posso ajudar?",
	"help_context": "Ainda não encontrei os dados do seu plantão. Pode confirmar seu número de telefone cadastrado?",

	"input_error": "Desculpe, não entendi sua mensagem. Pode reformular?",
	"busy":        "Ainda estou processando sua mensagem anterior, só um instante.",
	"timeout":     "Demorei demais para responder, pode tentar de novo?",
	"conflict":    "Tive um problema para salvar sua informação, tente novamente.",
}

func fallbackFor(outcomeCode string) string {
	if text, ok := fallbackTemplates[outcomeCode]; ok {
		return text
	}
	return fallbackTemplates["help_generic"]
}
