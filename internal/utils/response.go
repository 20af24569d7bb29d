package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func JSONSuccess(c *fiber.Ctx, status int, payload interface{}) error {
	return c.Status(status).JSON(fiber.Map{"status": "ok", "data": payload})
}

func JSONError(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "code": code, "message": msg})
}

// ErrorHandler renders every error returned by a route as the JSON error envelope.
// Server-side failures are logged with the request id and hidden from the client.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code, msg := Classify(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Any("request_id", c.Locals(RequestIDKey)),
				zap.Error(err),
			)
		}

		var vf *ValidationFailure
		if errors.As(err, &vf) && len(vf.Fields) > 0 {
			return c.Status(status).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": msg,
				"errors":  vf.Fields,
			})
		}
		return JSONError(c, status, code, msg)
	}
}
