package ratelimit

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// Middleware checks the caller's budget for the given route class before
// letting the request proceed. Identity defaults to the client IP; pass a
// keyFn to key on something else (e.g. the authenticated user ID).
func (l *Limiter) Middleware(class RouteClass, keyFn func(c *fiber.Ctx) string) fiber.Handler {
	if keyFn == nil {
		keyFn = func(c *fiber.Ctx) string { return c.IP() }
	}
	return func(c *fiber.Ctx) error {
		result, err := l.Allow(c.Context(), class, keyFn(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			c.Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": ErrExceeded().Error(),
			})
		}

		return c.Next()
	}
}
