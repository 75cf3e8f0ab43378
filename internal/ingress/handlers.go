// Package ingress implements the HTTP surface from spec §4.9: the
// message webhook, the template-fired hook, liveness/readiness, and
// the supplemented admin debug endpoint. Handler shape (struct holding
// its dependencies, one method per route) mirrors the teacher's
// internal/handlers/whatsapp.go.
package ingress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/carepulse/shift-orchestrator/internal/engine"
	"github.com/carepulse/shift-orchestrator/internal/idempotency"
	"github.com/carepulse/shift-orchestrator/internal/models"
	"github.com/carepulse/shift-orchestrator/internal/storage"
)

const idempotencyTTL = 10 * time.Minute

// IngestRequest is POST /webhook/ingest's body, per spec §6.1.
type IngestRequest struct {
	MessageID   string         `json:"message_id"`
	PhoneNumber string         `json:"phoneNumber"`
	Text        string         `json:"text"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// IngestResponse is the wire response shape, per spec §6.1.
type IngestResponse struct {
	Reply       string `json:"reply"`
	SessionID   string `json:"sessionId"`
	Status      string `json:"status"`
	OutcomeCode string `json:"outcomeCode"`
}

// TemplateFiredRequest is POST /hooks/template-fired's body, per
// spec §6.2.
type TemplateFiredRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Template    string `json:"template"`
	Metadata    struct {
		HintCamposFaltantes []string `json:"hint_campos_faltantes"`
		FinishReminderSent  *bool    `json:"finishReminderSent"`
		ShiftDay            *string `json:"shiftDay"`
	} `json:"metadata"`
}

// Handlers bundles everything the HTTP routes need.
type Handlers struct {
	Engine        *engine.Engine
	Idempotency   *idempotency.Store
	Store         storage.Store
	ReadCache     storage.ReadCache
	ReadinessPing func(ctx context.Context) error
}

// HandleIngest implements POST /webhook/ingest.
func (h *Handlers) HandleIngest(c *fiber.Ctx) error {
	var req IngestRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(IngestResponse{
			Status: "error", OutcomeCode: "input_error", Reply: "desculpe, não entendi",
		})
	}

	idemKey := c.Get("X-Idempotency-Key")
	if idemKey == "" {
		idemKey = req.MessageID
	}
	if idemKey == "" {
		idemKey = uuid.NewString()
	}

	ctx := c.Context()

	first, err := h.Idempotency.Begin(ctx, idemKey, idempotencyTTL)
	if err == nil && !first {
		if body, cached, _ := h.Idempotency.GetCached(ctx, idemKey); cached {
			c.Set("X-Idempotency-Replay", "true")
			return c.Status(fiber.StatusOK).Send(body)
		}
		c.Set("X-Idempotency-Conflict", "true")
		return c.Status(fiber.StatusConflict).JSON(IngestResponse{
			Status: "busy", OutcomeCode: "busy", Reply: "Ainda estou processando sua mensagem anterior, só um instante.",
		})
	}

	result := h.Engine.ProcessMessage(ctx, models.InboundMessage{
		MessageID:   req.MessageID,
		PhoneNumber: req.PhoneNumber,
		Text:        req.Text,
		Meta:        req.Meta,
		ReceivedAt:  time.Now(),
	})

	resp := IngestResponse{Reply: result.Reply, SessionID: result.SessionID, Status: result.Status, OutcomeCode: result.OutcomeCode}
	statusCode := fiber.StatusOK
	switch result.Status {
	case "busy":
		statusCode = fiber.StatusTooManyRequests
	case "error":
		if result.OutcomeCode == "timeout" {
			statusCode = fiber.StatusRequestTimeout
		} else {
			statusCode = fiber.StatusInternalServerError
		}
	}

	if result.Status == "error" {
		_ = h.Idempotency.EndError(ctx, idemKey)
	} else {
		_ = h.Idempotency.EndOK(ctx, idemKey, mustJSON(resp), idempotencyTTL)
	}
	return c.Status(statusCode).JSON(resp)
}

// HandleTemplateFired implements POST /hooks/template-fired.
func (h *Handlers) HandleTemplateFired(c *fiber.Ctx) error {
	var req TemplateFiredRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error"})
	}

	ctx := c.Context()
	sid := "session_" + digitsOnly(req.PhoneNumber)

	state, version, err := h.Store.LoadSession(ctx, sid)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error"})
	}
	state.SessionID = sid
	state.PhoneNumber = req.PhoneNumber
	if req.Metadata.FinishReminderSent != nil {
		state.FinishReminderSent = *req.Metadata.FinishReminderSent
	}
	if req.Metadata.ShiftDay != nil {
		state.ShiftDay = *req.Metadata.ShiftDay
	}

	if err := h.Store.SaveSession(ctx, state, version); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"status": "conflict"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleHealthz implements GET /healthz: pure liveness, no dependency
// checks.
func (h *Handlers) HandleHealthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// HandleReadyz implements GET /readyz: runs the injected ReadinessPing
// (a Redis ping in main.go) and reports ready when it succeeds or is
// nil. Backend and Postgres reachability are not checked.
func (h *Handlers) HandleReadyz(c *fiber.Ctx) error {
	if h.ReadinessPing != nil {
		if err := h.ReadinessPing(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

// HandleDebugSession implements the supplemented GET
// /debug/sessions/:sessionId — a lock-free read of the last committed
// session state, per spec §5's "readers outside the hot path may read
// the last committed version without the lock."
func (h *Handlers) HandleDebugSession(c *fiber.Ctx) error {
	sid := c.Params("sessionId")
	if state, ok := h.ReadCache.Peek(sid); ok {
		return c.JSON(state)
	}
	state, _, err := h.Store.LoadSession(c.Context(), sid)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": "not_found"})
	}
	return c.JSON(state)
}

func digitsOnly(phone string) string {
	var out []rune
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}

func mustJSON(v any) []byte {
	body, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return body
}
