package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/services"
)

// ServiceTokenMiddleware guards internal job routes with a shared token sent
// as "Authorization: Bearer <token>" or X-Service-Token.
func ServiceTokenMiddleware(expected string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Get("X-Service-Token")
		if token == "" {
			authHeader := c.Get(fiber.HeaderAuthorization)
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
		if token == "" {
			log.Printf("🚫 [SERVICE_AUTH] Missing service token for %s", c.Path())
			return RenderError(c, services.NewUnauthorizedError("service token missing"))
		}
		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			log.Printf("❌ [SERVICE_AUTH] Invalid token for %s (got prefix: %.6s...)", c.Path(), token)
			return RenderError(c, services.NewUnauthorizedError("invalid service token"))
		}
		return c.Next()
	}
}
