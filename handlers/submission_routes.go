package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/middleware"
	"rejection-therapy/services"
)

const deletedMessage = "Submission deleted successfully"

func SetupSubmissionRoutes(
	secured fiber.Router,
	submissionService *services.SubmissionService,
	reconciliationService *services.ReconciliationService,
	dailyLimitService *services.DailyLimitService,
) {
	secured.Post("/submissions", func(c *fiber.Ctx) error {
		var req services.SubmitRequest
		if err := parseBody(c, &req); err != nil {
			return middleware.RenderError(c, err)
		}
		if fh, err := c.FormFile("video"); err == nil {
			req.Video = &services.VideoUpload{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Size:        fh.Size,
				Open: func() (io.ReadCloser, error) {
					f, err := fh.Open()
					if err != nil {
						return nil, err
					}
					return f, nil
				},
			}
		}

		res, err := submissionService.Submit(c.UserContext(), middleware.ActorFrom(c), req)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"data":    res,
		})
	})

	secured.Post("/submissions/delete", func(c *fiber.Ctx) error {
		var req services.DeleteRequest
		if err := parseBody(c, &req); err != nil {
			return middleware.RenderError(c, err)
		}

		res, err := reconciliationService.DeleteSubmission(c.UserContext(), middleware.ActorFrom(c), req)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		if wantsJSON(c) {
			return c.JSON(fiber.Map{
				"success": true,
				"message": deletedMessage,
				"data":    res,
			})
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": deletedMessage,
		})
	})

	secured.Post("/submissions/check-daily-limit", func(c *fiber.Ctx) error {
		var req struct {
			UserID string `json:"userId" form:"userId"`
		}
		if err := parseBody(c, &req); err != nil {
			return middleware.RenderError(c, err)
		}

		limit, err := dailyLimitService.Check(c.UserContext(), middleware.ActorFrom(c), req.UserID)
		if err != nil {
			return middleware.RenderError(c, err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    limit,
		})
	})
}
