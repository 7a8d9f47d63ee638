package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/JonasWeigert/TeamDesk/internal/pkg/metrics"
	"github.com/JonasWeigert/TeamDesk/internal/pkg/ratelimit"
)

// RateLimit gates a route with a fixed-window limit keyed by client IP.
// Limiter unavailability passes traffic through (fail-open policy).
func RateLimit(l *ratelimit.Limiter, bucket string, perMinute int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision := l.Allow(c.Context(), bucket, c.IP(), perMinute, time.Minute)
		metrics.RateLimitDecisions.WithLabelValues(bucket, decision.String()).Inc()
		if decision == ratelimit.Limited {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		}
		return c.Next()
	}
}
