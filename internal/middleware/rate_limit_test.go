package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody/internal/identity"
	"github.com/congo-pay/custody/internal/logging"
)

func fixedWindow(t *testing.T, at time.Time) *time.Time {
	t.Helper()
	now := at
	rateLimitNow = func() time.Time { return now }
	t.Cleanup(func() { rateLimitNow = time.Now })
	return &now
}

func setupLimitedApp(cache *redis.Client, max int) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		if p := c.Get(PrincipalHeader); p != "" {
			c.Locals(identity.PrincipalLocal, common.HexToAddress(p))
		}
		return c.Next()
	})
	app.Post("/send", PrincipalRateLimit(cache, "send", max, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func hit(t *testing.T, app *fiber.App, principal string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/send", nil)
	if principal != "" {
		req.Header.Set(PrincipalHeader, principal)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode, resp.Header.Get(fiber.HeaderRetryAfter)
}

func TestPrincipalRateLimit_BlocksAfterQuota(t *testing.T) {
	now := fixedWindow(t, time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC))
	app := setupLimitedApp(newCache(t), 2)
	alice := common.HexToAddress("0x00000000000000000000000000000000000a11ce").Hex()
	bob := common.HexToAddress("0x0000000000000000000000000000000000000b0b").Hex()

	for i := 0; i < 2; i++ {
		status, _ := hit(t, app, alice)
		require.Equal(t, fiber.StatusCreated, status)
	}
	status, retry := hit(t, app, alice)
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "60", retry)

	status, _ = hit(t, app, bob)
	assert.Equal(t, fiber.StatusCreated, status, "quota is per principal")

	*now = now.Add(time.Minute)
	status, _ = hit(t, app, alice)
	assert.Equal(t, fiber.StatusCreated, status, "next window starts fresh")
}

func TestPrincipalRateLimit_NilCacheAndOutageFailOpen(t *testing.T) {
	fixedWindow(t, time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC))

	app := setupLimitedApp(nil, 1)
	for i := 0; i < 3; i++ {
		status, _ := hit(t, app, "")
		assert.Equal(t, fiber.StatusCreated, status)
	}

	down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { down.Close() })
	app = setupLimitedApp(down, 1)
	for i := 0; i < 2; i++ {
		status, _ := hit(t, app, "")
		assert.Equal(t, fiber.StatusCreated, status)
	}
}
