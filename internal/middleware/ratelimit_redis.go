package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fathima-sithara/placement-service/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// counter is the part of redis.Cmdable the limiter needs.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimiter is a fixed-window counter shared by every instance through Redis.
type RateLimiter struct {
	Redis  counter
	Prefix string
	Limit  int // requests
	Window time.Duration
	log    *zap.Logger
}

func NewRateLimiter(r counter, prefix string, limit int, window time.Duration, logger *zap.Logger) *RateLimiter {
	return &RateLimiter{Redis: r, Prefix: prefix, Limit: limit, Window: window, log: logger}
}

// MiddlewareByKey counts requests per key. An empty key is not limited, and a
// Redis failure lets the request through.
func (r *RateLimiter) MiddlewareByKey(keyFunc func(c *fiber.Ctx) string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := keyFunc(c)
		if key == "" || r.Limit <= 0 {
			return c.Next()
		}
		ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
		defer cancel()

		redisKey := fmt.Sprintf("%s:%s", r.Prefix, key)
		count, err := r.Redis.Incr(ctx, redisKey).Result()
		if err != nil {
			r.log.Warn("rate limiter unavailable", zap.String("prefix", r.Prefix), zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			r.Redis.Expire(ctx, redisKey, r.Window)
		}
		if count > int64(r.Limit) {
			r.log.Warn("rate limit exceeded", zap.String("prefix", r.Prefix), zap.String("path", c.Path()))
			c.Set(fiber.HeaderRetryAfter, fmt.Sprintf("%d", int(r.Window.Seconds())))
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
		}
		return c.Next()
	}
}

// KeyByEmail limits by the normalized "email" field of a JSON body.
func KeyByEmail(c *fiber.Ctx) string {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return ""
	}
	return models.NormalizeEmail(body.Email)
}
