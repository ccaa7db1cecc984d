package identity

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func TestIssueAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	token, err := svc.Issue(ctx, alice)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(token, TokenPrefix))

	require.NoError(t, svc.Authenticate(ctx, alice, token))
	assert.ErrorIs(t, svc.Authenticate(ctx, alice, token+"x"), ErrInvalidCredentials)
	assert.ErrorIs(t, svc.Authenticate(ctx, alice, ""), ErrInvalidCredentials)

	rotated, err := svc.Issue(ctx, alice)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Authenticate(ctx, alice, token), ErrInvalidCredentials)
	require.NoError(t, svc.Authenticate(ctx, alice, rotated))
}

func TestAuthenticateUnknownPrincipal(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	err := svc.Authenticate(context.Background(), alice, "cst_whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSeedAcceptsGeneratedHash(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	token, hash, err := GenerateToken()
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword(hash, []byte(token)))

	require.NoError(t, svc.Seed(ctx, alice, string(hash)))
	require.NoError(t, svc.Authenticate(ctx, alice, token))

	assert.Error(t, svc.Seed(ctx, alice, "not-a-hash"))
}

func TestHandlerRotateRequiresPrincipal(t *testing.T) {
	h := NewHandler(NewService(NewMemoryRepository()))
	app := fiber.New()
	app.Post("/anon", h.Rotate)
	app.Post("/rotate", func(c *fiber.Ctx) error {
		c.Locals(PrincipalLocal, alice)
		return c.Next()
	}, h.Rotate)

	resp, err := app.Test(httptest.NewRequest("POST", "/anon", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/rotate", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}
