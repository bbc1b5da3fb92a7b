package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/middleware"
	"rejection-therapy/services"
)

func SetupProfileRoutes(secured fiber.Router, profileService *services.ProfileService, leaderboardService *services.LeaderboardService) {
	secured.Get("/profile/me", func(c *fiber.Ctx) error {
		actor := middleware.ActorFrom(c)
		view, err := profileService.Progress(c.UserContext(), actor, actor.UserID)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": view})
	})

	secured.Get("/profile/me/history", func(c *fiber.Ctx) error {
		actor := middleware.ActorFrom(c)
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))

		hist, err := profileService.History(c.UserContext(), actor, actor.UserID, page, size)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": hist})
	})

	secured.Get("/leaderboard", func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultLeaderboardLimit)))
		if err != nil || limit < 1 || limit > services.MaxLeaderboardLimit {
			return middleware.RenderError(c, services.NewValidationError("INVALID_LIMIT", "limit must be between 1 and 100"))
		}
		entries, err := leaderboardService.Top(c.UserContext(), limit)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": entries})
	})
}
