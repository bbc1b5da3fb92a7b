package middleware

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/services"
)

const (
	LocalUserID  = "user_id"
	LocalIsAdmin = "is_admin"
)

// AdminLookup reports whether a user holds the admin flag.
type AdminLookup interface {
	IsAdmin(ctx context.Context, id string) (bool, error)
}

// AuthMiddleware resolves the bearer token to a user id and loads the admin
// flag from the profile row. A user without a profile row is not an admin.
func AuthMiddleware(auth services.Authenticator, admins AdminLookup, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get(fiber.HeaderAuthorization))
		if token == "" {
			log.Printf("🚫 [AUTH] Missing bearer token for %s", c.Path())
			return RenderError(c, services.NewUnauthorizedError("Unauthorized"))
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()

		userID, err := auth.Authenticate(ctx, token)
		if err != nil {
			if errors.Is(err, services.ErrTransient) {
				return RenderError(c, &services.AppError{
					Kind: services.KindTransient, Code: "AUTH_UNAVAILABLE",
					Message: "auth provider unavailable, retry later", Err: err,
				})
			}
			log.Printf("❌ [AUTH] Invalid token for %s: %v", c.Path(), err)
			return RenderError(c, services.NewUnauthorizedError("Unauthorized"))
		}

		isAdmin, err := admins.IsAdmin(ctx, userID)
		switch {
		case errors.Is(err, services.ErrNotFound):
			isAdmin = false
		case err != nil:
			return RenderError(c, &services.AppError{
				Kind: services.KindTransient, Code: "STORE_UNAVAILABLE",
				Message: "datastore unavailable, retry later", Err: err,
			})
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalIsAdmin, isAdmin)
		return c.Next()
	}
}

// ActorFrom returns the principal set by AuthMiddleware. The zero Actor
// means the request was not authenticated.
func ActorFrom(c *fiber.Ctx) services.Actor {
	userID, _ := c.Locals(LocalUserID).(string)
	isAdmin, _ := c.Locals(LocalIsAdmin).(bool)
	return services.Actor{UserID: userID, IsAdmin: isAdmin}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
