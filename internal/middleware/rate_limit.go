package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "custody:rl:"

var rateLimitNow = time.Now

// PrincipalRateLimit caps requests per authenticated principal (or client
// IP before authentication) per minute using a fixed Redis window.
func PrincipalRateLimit(cache *redis.Client, scope string, maxPerMin int, logger *slog.Logger) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 30
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		subject := c.IP()
		if p, ok := Principal(c); ok {
			subject = p.Hex()
		}
		window := rateLimitNow().UTC().Unix() / 60
		key := rateLimitPrefix + scope + ":" + subject + ":" + strconv.FormatInt(window, 10)

		ctx := c.UserContext()
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			logger.Warn("rate limit unavailable", slog.String("scope", scope), slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, 2*time.Minute)
		}
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "rate limit exceeded, try again later")
		}
		return c.Next()
	}
}
