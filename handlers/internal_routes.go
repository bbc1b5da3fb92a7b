package handlers

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/middleware"
	"rejection-therapy/services"
)

// Pinger is satisfied by the database store.
type Pinger interface {
	Ping(ctx context.Context) error
}

func SetupHealthRoutes(app *fiber.App, db Pinger) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			log.Printf("❌ [HEALTH] database ping failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

// SetupInternalRoutes mounts job triggers under /internal behind the
// service token.
func SetupInternalRoutes(app *fiber.App, serviceToken string, winnerService *services.WinnerService, profileService *services.ProfileService, leaderboardService *services.LeaderboardService) {
	internal := app.Group("/internal", middleware.ServiceTokenMiddleware(serviceToken))

	internal.Post("/jobs/award-retry", func(c *fiber.Ctx) error {
		limit, _ := strconv.Atoi(c.Query("limit", "50"))
		if limit < 1 {
			limit = 50
		}
		applied, failed, err := winnerService.RetryPendingAwards(c.UserContext(), limit)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		log.Printf("[AWARD_RETRY] manual run: applied=%d failed=%d", applied, failed)
		return c.JSON(fiber.Map{"success": true, "applied": applied, "failed": failed})
	})

	internal.Post("/jobs/rank-repair", func(c *fiber.Ctx) error {
		fixed, err := profileService.RepairRanks(c.UserContext())
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "fixed": fixed})
	})

	internal.Post("/jobs/leaderboard-rebuild", func(c *fiber.Ctx) error {
		n, err := leaderboardService.Rebuild(c.UserContext())
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "profiles": n})
	})
}
