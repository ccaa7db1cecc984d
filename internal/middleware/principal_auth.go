package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/identity"
)

// PrincipalHeader names the caller's address.
const PrincipalHeader = "X-Principal"

// PrincipalAuth authenticates the X-Principal header against the bearer
// token and stores the principal in locals.
func PrincipalAuth(svc *identity.Service, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(PrincipalHeader))
		if !common.IsHexAddress(raw) {
			return fiber.NewError(http.StatusUnauthorized, "missing or malformed "+PrincipalHeader)
		}
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		principal := common.HexToAddress(raw)
		if err := svc.Authenticate(c.UserContext(), principal, token); err != nil {
			if !errors.Is(err, identity.ErrInvalidCredentials) {
				logger.Error("credential lookup failed", slog.String("principal", principal.Hex()), slog.Any("error", err))
				return fiber.NewError(http.StatusInternalServerError, "credential store failure")
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid credentials")
		}

		c.Locals(identity.PrincipalLocal, principal)
		return c.Next()
	}
}

// Principal returns the authenticated principal, if any.
func Principal(c *fiber.Ctx) (common.Address, bool) {
	p, ok := c.Locals(identity.PrincipalLocal).(common.Address)
	return p, ok
}
