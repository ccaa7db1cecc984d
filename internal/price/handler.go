package price

import (
	"github.com/gofiber/fiber/v2"
)

// Handler exposes configured quotes.
type Handler struct {
	quotes *Static
}

// NewHandler constructs a price handler.
func NewHandler(quotes *Static) *Handler {
	return &Handler{quotes: quotes}
}

// List returns every configured quote.
func (h *Handler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"currency": h.quotes.Currency(),
		"quotes":   h.quotes.All(),
	})
}
