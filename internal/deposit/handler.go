package deposit

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// Handler exposes the deposit simulator.
type Handler struct {
	service *Service
}

// NewHandler constructs a deposit handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type depositRequest struct {
	AssetID   string `json:"asset_id"`
	From      string `json:"from"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference"`
}

// Create credits a simulated inbound transfer.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	from := strings.TrimSpace(req.From)
	if !common.IsHexAddress(from) {
		return fiber.NewError(http.StatusBadRequest, "from must be a hex address")
	}

	receipt, err := h.service.Deposit(c.UserContext(), Input{
		AssetID:   strings.TrimSpace(req.AssetID),
		From:      common.HexToAddress(from),
		Amount:    req.Amount,
		Reference: strings.TrimSpace(req.Reference),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicate):
			return c.Status(http.StatusOK).JSON(receipt)
		case errors.Is(err, ErrInvalid):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(receipt)
}
