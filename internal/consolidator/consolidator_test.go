package consolidator

import (
	"context"
	"testing"

	"github.com/carepulse/shift-orchestrator/internal/apperr"
	"github.com/carepulse/shift-orchestrator/internal/llmgateway"
	"github.com/carepulse/shift-orchestrator/internal/models"
	"github.com/stretchr/testify/require"
)

type stubReplyGenerator struct {
	text string
	err  error
}

func (s stubReplyGenerator) GenerateReply(context.Context, llmgateway.ReplyRequest) (llmgateway.ReplyResult, error) {
	return llmgateway.ReplyResult{Text: s.text}, s.err
}

func TestFallsBackWhenLLMUnavailable(t *testing.T) {
	c := New(stubReplyGenerator{err: apperr.New(apperr.KindLLMUnavailable, "down")})
	text := c.Render(context.Background(), &models.SessionState{}, "clinical_staged")
	require.Equal(t, fallbackTemplates["clinical_staged"], text)
}

func TestGuardrailRejectsFinalizationMentionBeforeReminder(t *testing.T) {
	c := New(stubReplyGenerator{text: "Vamos seguir com o encerrar o plantão agora mesmo"})
	state := &models.SessionState{FinishReminderSent: false}
	text := c.Render(context.Background(), state, "clinical_staged")
	require.Equal(t, fallbackTemplates["clinical_staged"], text)
}

func TestPassesThroughWhenReminderSent(t *testing.T) {
	c := New(stubReplyGenerator{text: "Vamos fazer o fechamento do plantão agora"})
	state := &models.SessionState{FinishReminderSent: true}
	text := c.Render(context.Background(), state, "finalize_staged")
	require.Equal(t, "Vamos fazer o fechamento do plantão agora", text)
}
