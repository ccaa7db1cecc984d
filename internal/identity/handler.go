package identity

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// PrincipalLocal is the Fiber locals key holding the authenticated
// principal.
const PrincipalLocal = "principal"

// Handler exposes credential endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type tokenResponse struct {
	Principal string `json:"principal"`
	Token     string `json:"token"`
}

// Rotate replaces the caller's token. The previous token stops working.
func (h *Handler) Rotate(c *fiber.Ctx) error {
	principal, ok := c.Locals(PrincipalLocal).(common.Address)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	token, err := h.service.Issue(c.UserContext(), principal)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(tokenResponse{Principal: principal.Hex(), Token: token})
}

// WhoAmI echoes the authenticated principal.
func (h *Handler) WhoAmI(c *fiber.Ctx) error {
	principal, ok := c.Locals(PrincipalLocal).(common.Address)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	return c.JSON(fiber.Map{"principal": principal.Hex()})
}
