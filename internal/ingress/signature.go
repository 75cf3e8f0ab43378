package ingress

import (
	"github.com/gofiber/fiber/v2"
	"github.com/twilio/twilio-go/client"
)

// ValidateTwilioSignature authenticates inbound webhook deliveries
// using Twilio's own request validator instead of the hand-rolled
// HMAC comparison the teacher wrote in internal/middleware/twilio_auth.go
// — twilio-go is already a module dependency for outbound sends, so
// signature verification reuses client.RequestValidator rather than
// re-implementing its HMAC-SHA1 scheme by hand.
func ValidateTwilioSignature(authToken string, publicURL string) fiber.Handler {
	validator := client.NewRequestValidator(authToken)

	return func(c *fiber.Ctx) error {
		signature := c.Get("X-Twilio-Signature")
		if signature == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing twilio signature"})
		}

		fullURL := publicURL + c.Path()
		params := make(map[string]string)
		c.Request().PostArgs().VisitAll(func(key, value []byte) {
			params[string(key)] = string(value)
		})
		if len(params) == 0 {
			// JSON-body deliveries (spec §4.9 accepts either form
			// upstream) carry nothing to validate against Twilio's
			// form-encoded signature scheme; form deliveries are the
			// ones Twilio itself ever signs this way.
			var body map[string]any
			_ = c.BodyParser(&body)
			for k, v := range body {
				if s, ok := v.(string); ok {
					params[k] = s
				}
			}
		}

		if !validator.Validate(fullURL, params, signature) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid twilio signature"})
		}
		return c.Next()
	}
}
