package ratelimit

import (
	"fmt"
	"strconv"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
)

// Middleware returns a Fiber handler that limits requests by client IP.
// Limiter errors let the request through with an X-RateLimit-Error header.
func Middleware(limiter Limiter, limit int, logger types.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()

		result, err := limiter.Allow(c.UserContext(), ip)
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "ip", ip, "error", err)
			c.Set("X-RateLimit-Error", err.Error())
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			return sendRateLimitExceeded(c, result)
		}
		return c.Next()
	}
}

// sendRateLimitExceeded sends a 429 Too Many Requests response.
func sendRateLimitExceeded(c *fiber.Ctx, result *Result) error {
	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}

	c.Set("Retry-After", strconv.Itoa(retryAfter))

	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":       "Too Many Requests",
		"message":     fmt.Sprintf("Rate limit exceeded. Please retry after %d seconds.", retryAfter),
		"retry_after": retryAfter,
	})
}
