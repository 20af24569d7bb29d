package middleware

import (
	"time"

	"github.com/fathima-sithara/placement-service/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates the caller's X-Request-ID or assigns a new one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Locals(utils.RequestIDKey, id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

// ZapLogger logs one line per request. Errors are rendered here so the logged
// status matches the response.
func ZapLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()
		if chainErr != nil {
			if err := c.App().ErrorHandler(c, chainErr); err != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		latency := time.Since(start)
		status := c.Response().StatusCode()

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.Any("request_id", c.Locals(utils.RequestIDKey)),
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("HTTP Request Error", append(fields, zap.Error(chainErr))...)
		case chainErr != nil:
			logger.Info("HTTP Request", append(fields, zap.String("error", chainErr.Error()))...)
		default:
			logger.Info("HTTP Request", fields...)
		}
		return nil
	}
}
