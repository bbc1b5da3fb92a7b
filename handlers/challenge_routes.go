package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/middleware"
	"rejection-therapy/services"
)

func SetupChallengeRoutes(secured fiber.Router, challengeService *services.ChallengeService, winnerService *services.WinnerService) {
	secured.Get("/challenges", func(c *fiber.Ctx) error {
		year, err := strconv.Atoi(c.Query("year", "0"))
		if err != nil {
			return middleware.RenderError(c, services.NewValidationError("INVALID_YEAR", "year must be a number"))
		}
		list, err := challengeService.ListByYear(c.UserContext(), year)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": list})
	})

	// Registered before /challenges/:id so "current" is not taken as an id.
	secured.Get("/challenges/current", func(c *fiber.Ctx) error {
		ch, err := challengeService.Current(c.UserContext())
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": ch})
	})

	secured.Get("/challenges/:id", func(c *fiber.Ctx) error {
		ch, err := challengeService.Get(c.UserContext(), c.Params("id"))
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": ch})
	})

	secured.Get("/challenges/:id/submissions", func(c *fiber.Ctx) error {
		subs, err := challengeService.Submissions(c.UserContext(), middleware.ActorFrom(c), c.Params("id"))
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": subs})
	})

	secured.Post("/challenges", func(c *fiber.Ctx) error {
		var in services.ChallengeInput
		if err := parseBody(c, &in); err != nil {
			return middleware.RenderError(c, err)
		}
		ch, err := challengeService.Create(c.UserContext(), middleware.ActorFrom(c), in)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": ch})
	})

	secured.Put("/challenges/:id", func(c *fiber.Ctx) error {
		var upd services.ChallengeUpdate
		if err := parseBody(c, &upd); err != nil {
			return middleware.RenderError(c, err)
		}
		ch, err := challengeService.Update(c.UserContext(), middleware.ActorFrom(c), c.Params("id"), upd)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "data": ch})
	})

	secured.Delete("/challenges/:id", func(c *fiber.Ctx) error {
		if err := challengeService.Delete(c.UserContext(), middleware.ActorFrom(c), c.Params("id")); err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{"success": true, "message": "Challenge deleted"})
	})

	secured.Post("/challenges/winner", func(c *fiber.Ctx) error {
		var req services.WinnerRequest
		if err := parseBody(c, &req); err != nil {
			return middleware.RenderError(c, err)
		}
		res, err := winnerService.SelectWinner(c.UserContext(), middleware.ActorFrom(c), req)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		body := fiber.Map{
			"success": true,
			"message": res.Message,
			"data":    res,
		}
		if res.Warning != "" {
			body["warning"] = res.Warning
		}
		return c.JSON(body)
	})
}
