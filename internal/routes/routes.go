// Package routes wires the ingress handlers into the Fiber app,
// mirroring the teacher's internal/routes/routes.go grouping shape
// (webhooks group, plain top-level health routes, an environment
// switch around signature validation).
package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/carepulse/shift-orchestrator/internal/ingress"
	"github.com/carepulse/shift-orchestrator/internal/middleware"
)

// Config carries the few route-time settings SetupRoutes needs beyond
// the handler bundle itself.
type Config struct {
	Environment           string
	DisableWebhookValidation bool
	TwilioAuthToken       string
	PublicURL             string
	AdminJWTSecret        string
}

// SetupRoutes registers every endpoint from spec §4.9/§6 plus the
// supplemented debug endpoint.
func SetupRoutes(app *fiber.App, h *ingress.Handlers, cfg Config) {
	app.Get("/healthz", h.HandleHealthz)
	app.Get("/readyz", h.HandleReadyz)

	webhooks := app.Group("/webhook")
	if cfg.Environment == "development" || cfg.DisableWebhookValidation {
		webhooks.Post("/ingest", h.HandleIngest)
	} else {
		webhooks.Post("/ingest", ingress.ValidateTwilioSignature(cfg.TwilioAuthToken, cfg.PublicURL), h.HandleIngest)
	}

	hooks := app.Group("/hooks")
	hooks.Post("/template-fired", h.HandleTemplateFired)

	debug := app.Group("/debug", middleware.ValidateAdminJWT(cfg.AdminJWTSecret))
	debug.Get("/sessions/:sessionId", h.HandleDebugSession)
}
