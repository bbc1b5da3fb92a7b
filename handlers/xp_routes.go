package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/middleware"
	"rejection-therapy/services"
)

func SetupXPRoutes(secured fiber.Router, xpService *services.XPService) {
	secured.Post("/xp/update", func(c *fiber.Ctx) error {
		var req services.AwardRequest
		if err := parseBody(c, &req); err != nil {
			return middleware.RenderError(c, err)
		}
		actor := middleware.ActorFrom(c)
		log.Printf("[XP] update requested by %s: userId=%s action=%s challengeId=%s", actor.UserID, req.UserID, req.Action, req.ChallengeID)

		res, err := xpService.Award(c.UserContext(), actor, req)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    res,
		})
	})
}
