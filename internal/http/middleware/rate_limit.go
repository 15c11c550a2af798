package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

const rateLimitTimeout = 100 * time.Millisecond

// RateLimit is a fixed-window limiter keyed by caller. Authenticated callers
// are limited per username, anonymous ones per IP. When Redis cannot be
// reached the request is let through.
func RateLimit(rdb redis.Cmdable, cfg RateLimitConfig, logger *zap.Logger) fiber.Handler {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ratelimit"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if cfg.MaxRequests <= 0 || cfg.Window <= 0 {
			return c.Next()
		}

		key := cfg.KeyPrefix + ":ip:" + c.IP()
		if ident, ok := IdentityFrom(c); ok {
			key = cfg.KeyPrefix + ":user:" + ident.Username
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), rateLimitTimeout)
		defer cancel()

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limit unavailable, allowing request", zap.String("key", key), zap.Error(err))
			return c.Next()
		}
		if count == 1 {
			// First hit of the window starts its clock.
			if err := rdb.Expire(ctx, key, cfg.Window).Err(); err != nil {
				logger.Warn("rate limit window not armed", zap.String("key", key), zap.Error(err))
			}
		}

		remaining := int64(cfg.MaxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(cfg.MaxRequests) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(cfg.Window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
