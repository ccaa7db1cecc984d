package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/identity"
)

// RegisterIdentityRoutes wires credential endpoints.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler, auth fiber.Handler) {
	r.Get("/whoami", auth, h.WhoAmI)
	r.Post("/credentials/rotate", auth, h.Rotate)
}
