// Package llmgateway exposes the six strictly-typed JSON calls the
// router, clinical extractor, and fiscal consolidator depend on
// (spec §4.3). It is grounded on sashabaranov/go-openai's chat
// completions API (as used in MehrdadMiri-chatdoc), wrapped with the
// breaker from internal/circuitbreaker and a bounded malformed-JSON
// retry, same shape as the original's LLM_CIRCUIT_CONFIG usage.
package llmgateway

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/carepulse/shift-orchestrator/internal/circuitbreaker"
)

const maxMalformedRetries = 2

// Gateway wraps an OpenAI client with the six domain calls.
type Gateway struct {
	client         *openai.Client
	intentModel    string
	extractorModel string
	breaker        *circuitbreaker.Breaker
}

// New builds a Gateway. intentModel and extractorModel let the
// cheaper classification calls use a different model than extraction,
// per the INTENT_MODEL/EXTRACTOR_MODEL configuration keys.
func New(apiKey, intentModel, extractorModel string) *Gateway {
	return &Gateway{
		client:         openai.NewClient(apiKey),
		intentModel:    intentModel,
		extractorModel: extractorModel,
		breaker:        circuitbreaker.New("llm-gateway", circuitbreaker.LLMConfig()),
	}
}

// callJSON runs a single temperature-0, JSON-mode chat completion and
// unmarshals the content into out, retrying up to maxMalformedRetries
// times on invalid JSON. The whole attempt is wrapped by the breaker:
// while open, it returns a typed LLMUnavailable error without
// contacting the provider.
func (g *Gateway) callJSON(ctx context.Context, model, systemPrompt, userPrompt string, out any) error {
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		var lastErr error
		for attempt := 0; attempt <= maxMalformedRetries; attempt++ {
			resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       model,
				Temperature: 0,
				ResponseFormat: &openai.ChatCompletionResponseFormat{
					Type: openai.ChatCompletionResponseFormatTypeJSONObject,
				},
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: userPrompt},
				},
			})
			if err != nil {
				lastErr = err
				continue
			}
			if len(resp.Choices) == 0 {
				lastErr = fmt.Errorf("empty completion")
				continue
			}
			content := resp.Choices[0].Message.Content
			if jerr := json.Unmarshal([]byte(content), out); jerr != nil {
				lastErr = jerr
				continue
			}
			return nil
		}
		return lastErr
	})
	if err != nil {
		return apperr.Wrap(apperr.KindLLMUnavailable, "llm gateway call failed", err)
	}
	return nil
}

// IntentClassify maps free text plus a compact state summary to one
// of the five subgraphs or "indefinido".
func (g *Gateway) IntentClassify(ctx context.Context, text string, compactState map[string]any) (IntentResult, error) {
	var out IntentResult
	stateJSON, _ := json.Marshal(compactState)
	err := g.callJSON(ctx, g.intentModel,
		`You classify a home-care caregiver's WhatsApp message into exactly one intent: escala, clinico, operacional, finalizar, auxiliar, or indefinido when unsure. Respond as JSON {"intent":"...","confidence":0.0-1.0}.`,
		fmt.Sprintf("state: %s\nmessage: %s", stateJSON, text),
		&out)
	return out, err
}

// ConfirmationClassify interprets a reply to a pending yes/no
// confirmation.
func (g *Gateway) ConfirmationClassify(ctx context.Context, text string) (ConfirmationResult, error) {
	var out ConfirmationResult
	err := g.callJSON(ctx, g.intentModel,
		`You classify a short caregiver reply to a yes/no confirmation as one of: yes, no, cancel, unclear. Respond as JSON {"answer":"..."}.`,
		text, &out)
	return out, err
}

// OperationalNoteDetect fires on supplies/infrastructure/visitor
// events, never on clinical content.
func (g *Gateway) OperationalNoteDetect(ctx context.Context, text string) (OperationalNoteResult, error) {
	var out OperationalNoteResult
	err := g.callJSON(ctx, g.intentModel,
		`You detect whether a caregiver message reports an operational issue (supplies running out, equipment/infrastructure problems, visitors) as opposed to clinical content. Respond as JSON {"isOperational":bool,"urgency":"low"|"normal"|"high"}.`,
		text, &out)
	return out, err
}

// ClinicalExtract pulls vitals and a clinical note from free text.
// Range/ambiguity enforcement is re-applied downstream by
// internal/clinical regardless of what the model returns.
func (g *Gateway) ClinicalExtract(ctx context.Context, text string) (ClinicalExtractResult, error) {
	var out ClinicalExtractResult
	err := g.callJSON(ctx, g.extractorModel,
		`Extract vital signs and a clinical note from a Brazilian Portuguese caregiver message. Fields: PA ("SSSxDDD" blood pressure), HR (heart rate), RR (respiratory rate), SatO2, Temp (celsius), respiratoryMode (ambient|supplemental_o2|mechanical_ventilation), clinicalNote. Never invent a value; omit unmentioned fields as null. Flag out-of-range or ambiguous readings (e.g. "12/8" blood pressure) as null plus a warning code. Respond as JSON matching the schema exactly, including a "warnings" string array.`,
		text, &out)
	return out, err
}

// FinalizationTopicExtract fills whichever of the eight finalization
// topics the text addresses, given what has already been collected.
func (g *Gateway) FinalizationTopicExtract(ctx context.Context, text string, alreadyCollected map[string]any) (FinalizationTopicsResult, error) {
	var out FinalizationTopicsResult
	collectedJSON, _ := json.Marshal(alreadyCollected)
	err := g.callJSON(ctx, g.extractorModel,
		`Extract shift-closing report topics from a caregiver message: alimentacao, evacuacoes, sono, humor, medicacoes, atividades, adicional_clinico, adicional_administrativo. Never invent a value for a topic not mentioned; leave it null. Respond as JSON with only the topics the message addresses filled in.`,
		fmt.Sprintf("already collected: %s\nmessage: %s", collectedJSON, text),
		&out)
	return out, err
}

// GenerateReply renders the user-facing reply for an outcome code.
// The hard finalization guardrail (never mention finalizing the shift
// while finishReminderSent=false) is enforced by internal/consolidator
// on the returned text, not trusted from the model.
func (g *Gateway) GenerateReply(ctx context.Context, req ReplyRequest) (ReplyResult, error) {
	var out ReplyResult
	stateJSON, _ := json.Marshal(req.CompactState)
	err := g.callJSON(ctx, g.intentModel,
		`You write a short, warm Brazilian Portuguese WhatsApp reply to a home-care caregiver, given the current session state and an internal outcome code describing what just happened. Never invent data the state does not contain, never ask for information already present. Respond as JSON {"text":"..."}.`,
		fmt.Sprintf("state: %s\noutcomeCode: %s\nlanguage: %s", stateJSON, req.OutcomeCode, req.LanguageHint),
		&out)
	return out, err
}
