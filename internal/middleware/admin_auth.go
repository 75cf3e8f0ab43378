// Package middleware holds the cross-cutting Fiber middleware this
// service needs beyond ingress's Twilio signature check: admin JWT
// auth for the debug endpoint, adapted from the teacher's
// payment_auth.go stub (a pass-through placeholder) into a genuine
// check using golang-jwt, the same library family the teacher already
// depended on for its own auth concerns.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ValidateAdminJWT protects the supplemented debug endpoint
// (GET /debug/sessions/:sessionId) with a bearer JWT signed by secret.
func ValidateAdminJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing bearer token"})
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		return c.Next()
	}
}
