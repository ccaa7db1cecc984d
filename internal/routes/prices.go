package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/deposit"
	"github.com/congo-pay/custody/internal/price"
)

// RegisterPriceRoutes wires the quote listing.
func RegisterPriceRoutes(r fiber.Router, h *price.Handler) {
	r.Get("/prices", h.List)
}

// RegisterDepositRoutes wires the deposit simulator used in development.
func RegisterDepositRoutes(r fiber.Router, h *deposit.Handler, idempotent fiber.Handler) {
	r.Post("/deposits", idempotent, h.Create)
}
