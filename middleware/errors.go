package middleware

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"rejection-therapy/services"
)

var kindStatus = map[services.ErrorKind]int{
	services.KindUnauthorized:  fiber.StatusUnauthorized,
	services.KindForbidden:     fiber.StatusForbidden,
	services.KindNotFound:      fiber.StatusNotFound,
	services.KindInvalidAction: fiber.StatusBadRequest,
	services.KindValidation:    fiber.StatusBadRequest,
	services.KindConflict:      fiber.StatusConflict,
	services.KindLimitExceeded: fiber.StatusTooManyRequests,
	services.KindTransient:     fiber.StatusServiceUnavailable,
	services.KindPersist:       fiber.StatusInternalServerError,
	services.KindInternal:      fiber.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind services.ErrorKind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return fiber.StatusInternalServerError
}

// RenderError writes err as {"error", "kind", "code"}. Internal details are
// logged, never returned.
func RenderError(c *fiber.Ctx, err error) error {
	var appErr *services.AppError
	if !errors.As(err, &appErr) {
		log.Printf("❌ [HTTP] %s %s: %v", c.Method(), c.Path(), err)
		appErr = &services.AppError{Kind: services.KindInternal, Code: "INTERNAL", Message: "internal server error"}
	}

	status := StatusFor(appErr.Kind)
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ [HTTP] %s %s → %d: %v", c.Method(), c.Path(), status, appErr)
	}
	if appErr.Kind == services.KindTransient {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": appErr.Message,
		"kind":  appErr.Kind,
		"code":  appErr.Code,
	})
}

// ErrorHandler is the app-wide fiber error handler. Fiber's own errors
// (unknown route, oversized body) keep their status.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := services.KindInternal
		switch {
		case fe.Code == fiber.StatusNotFound:
			kind = services.KindNotFound
		case fe.Code == fiber.StatusUnauthorized:
			kind = services.KindUnauthorized
		case fe.Code == fiber.StatusForbidden:
			kind = services.KindForbidden
		case fe.Code < fiber.StatusInternalServerError:
			kind = services.KindValidation
		}
		return c.Status(fe.Code).JSON(fiber.Map{
			"error": fe.Message,
			"kind":  kind,
			"code":  "HTTP_" + strconv.Itoa(fe.Code),
		})
	}
	return RenderError(c, err)
}
