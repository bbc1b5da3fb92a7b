package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/services"
)

// parseBody accepts JSON, urlencoded or multipart bodies. An empty body
// leaves out untouched so the service reports the missing fields.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return services.NewValidationError("INVALID_BODY", "invalid request body")
	}
	return nil
}

func wantsJSON(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON)
}
