package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"code2diagram/internal/diagram"
	u "code2diagram/internal/utils"
)

// ErrorHandler renders every failure as {"error":{"code","message","type"}}.
// Domain errors keep their raw detail out of the body when production is set.
func ErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal Server Error"
		typ := "internal_error"

		var de *diagram.Error
		var fe *fiber.Error
		switch {
		case errors.As(err, &de):
			code = de.Class.Status()
			msg = diagram.PublicMessage(de, !production)
			typ = string(de.Class)
			u.Error("Request failed", "path", c.Path(), "status", code, "class", typ, "error", err)
		case errors.As(err, &fe):
			code = fe.Code
			msg = fe.Message
			typ = errorType(code)
			u.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)
		default:
			u.Error("Request failed", "path", c.Path(), "status", code, "error", err)
		}

		return c.Status(code).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    code,
				"message": msg,
				"type":    typ,
			},
		})
	}
}

func errorType(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnprocessableEntity:
		return "validation_error"
	case fiber.StatusUnauthorized:
		return "auth_error"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusTooManyRequests:
		return "rate_limit_error"
	case fiber.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "request_error"
	}
}
