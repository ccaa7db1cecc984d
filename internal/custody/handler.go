package custody

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/congo-pay/custody/internal/asset"
	"github.com/congo-pay/custody/internal/ledger"
	"github.com/congo-pay/custody/internal/middleware"
	"github.com/congo-pay/custody/internal/price"
)

// Handler exposes the vault over HTTP.
type Handler struct {
	engine *Engine
	assets *asset.Registry
	quoter price.Quoter
}

// NewHandler constructs a custody handler. quoter may be nil.
func NewHandler(engine *Engine, assets *asset.Registry, quoter price.Quoter) *Handler {
	return &Handler{engine: engine, assets: assets, quoter: quoter}
}

// apiError carries an HTTP status and a stable code to the error handler.
type apiError struct {
	status int
	code   string
	msg    string
}

func (e *apiError) Error() string     { return e.msg }
func (e *apiError) StatusCode() int   { return e.status }
func (e *apiError) ErrorCode() string { return e.code }

func toHTTP(err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ErrAlreadyOwner), errors.Is(err, ErrLastOwner):
		status = http.StatusConflict
	case errors.Is(err, ErrNotAnOwner), errors.Is(err, ErrIndexOutOfRange):
		status = http.StatusNotFound
	case errors.Is(err, ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrTransferFailed):
		status = http.StatusBadGateway
	}
	return &apiError{status: status, code: Code(err), msg: err.Error()}
}

func badRequest(msg string) error {
	return &apiError{status: http.StatusBadRequest, code: Code(ErrInvalidArgument), msg: msg}
}

func caller(c *fiber.Ctx) (common.Address, error) {
	p, ok := middleware.Principal(c)
	if !ok {
		return common.Address{}, fiber.NewError(http.StatusUnauthorized, "missing principal")
	}
	return p, nil
}

type ownerRequest struct {
	Principal string `json:"principal"`
}

type ownerResponse struct {
	Principal string `json:"principal"`
	IsOwner   bool   `json:"is_owner"`
	AddedAt   string `json:"added_at,omitempty"`
}

// ListOwners returns the owner set.
func (h *Handler) ListOwners(c *fiber.Ctx) error {
	owners := h.engine.Owners()
	return c.JSON(fiber.Map{
		"custody": h.engine.Address().Hex(),
		"count":   len(owners),
		"owners":  owners,
	})
}

// GetOwner reports whether a principal is an owner.
func (h *Handler) GetOwner(c *fiber.Ctx) error {
	p, err := ParsePrincipal(c.Params("principal"))
	if err != nil {
		return toHTTP(err)
	}
	resp := ownerResponse{Principal: p.Hex()}
	if o, ok := h.engine.Owner(p); ok {
		resp.IsOwner = true
		resp.AddedAt = o.AddedAt.Format(timeLayout)
	}
	return c.JSON(resp)
}

// AddOwner adds the principal in the request body.
func (h *Handler) AddOwner(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req ownerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err.Error())
	}
	p, err := ParsePrincipal(req.Principal)
	if err != nil {
		return toHTTP(err)
	}
	if err := h.engine.AddOwner(c.UserContext(), who, p); err != nil {
		return toHTTP(err)
	}
	o, _ := h.engine.Owner(p)
	return c.Status(http.StatusCreated).JSON(ownerResponse{
		Principal: p.Hex(),
		IsOwner:   true,
		AddedAt:   o.AddedAt.Format(timeLayout),
	})
}

// RemoveOwner removes the principal named in the path.
func (h *Handler) RemoveOwner(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	p, err := ParsePrincipal(c.Params("principal"))
	if err != nil {
		return toHTTP(err)
	}
	if err := h.engine.RemoveOwner(c.UserContext(), who, p); err != nil {
		return toHTTP(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

type sendRequest struct {
	AssetID string `json:"asset_id"`
	To      string `json:"to"`
	Amount  uint64 `json:"amount"`
	Note    string `json:"note"`
}

func (h *Handler) parseSend(c *fiber.Ctx) (SendInput, error) {
	who, err := caller(c)
	if err != nil {
		return SendInput{}, err
	}
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return SendInput{}, badRequest(err.Error())
	}
	to, err := ParsePrincipal(req.To)
	if err != nil {
		return SendInput{}, toHTTP(err)
	}
	return SendInput{
		Caller:  who,
		AssetID: strings.TrimSpace(req.AssetID),
		To:      to,
		Amount:  req.Amount,
		Note:    req.Note,
	}, nil
}

// SendNative transfers native currency out of custody.
func (h *Handler) SendNative(c *fiber.Ctx) error {
	in, err := h.parseSend(c)
	if err != nil {
		return err
	}
	rec, err := h.engine.SendNative(c.UserContext(), in)
	if err != nil {
		return toHTTP(err)
	}
	return c.Status(http.StatusCreated).JSON(rec)
}

// SendFungible transfers a fungible asset out of custody.
func (h *Handler) SendFungible(c *fiber.Ctx) error {
	in, err := h.parseSend(c)
	if err != nil {
		return err
	}
	if in.AssetID == "" {
		return badRequest("asset_id is required")
	}
	rec, err := h.engine.SendFungible(c.UserContext(), in)
	if err != nil {
		return toHTTP(err)
	}
	return c.Status(http.StatusCreated).JSON(rec)
}

type balanceResponse struct {
	Asset    string           `json:"asset"`
	Symbol   string           `json:"symbol"`
	Decimals int32            `json:"decimals"`
	Amount   uint64           `json:"amount"`
	Units    decimal.Decimal  `json:"units"`
	Value    *decimal.Decimal `json:"value,omitempty"`
}

func (h *Handler) balance(c *fiber.Ctx, id string) (balanceResponse, error) {
	meta, err := h.assets.Meta(id)
	if err != nil {
		return balanceResponse{}, toHTTP(ErrInvalidArgument)
	}
	var amount uint64
	if id == asset.NativeSymbol {
		amount, err = h.engine.BalanceNative(c.UserContext())
	} else {
		amount, err = h.engine.BalanceOf(c.UserContext(), id)
	}
	if err != nil {
		return balanceResponse{}, toHTTP(err)
	}
	resp := balanceResponse{
		Asset:    id,
		Symbol:   meta.Symbol,
		Decimals: meta.Decimals,
		Amount:   amount,
		Units:    price.Units(amount, meta.Decimals),
	}
	if h.quoter != nil {
		if unit, err := h.quoter.Quote(c.UserContext(), id); err == nil {
			v := price.Value(amount, meta.Decimals, unit)
			resp.Value = &v
		}
	}
	return resp, nil
}

// Balances lists custody balances for every registered asset.
func (h *Handler) Balances(c *fiber.Ctx) error {
	ids := []string{asset.NativeSymbol}
	for _, m := range h.assets.Tokens() {
		ids = append(ids, m.ID)
	}
	out := make([]balanceResponse, 0, len(ids))
	for _, id := range ids {
		b, err := h.balance(c, id)
		if err != nil {
			return err
		}
		out = append(out, b)
	}
	return c.JSON(fiber.Map{"custody": h.engine.Address().Hex(), "balances": out})
}

// BalanceNative returns the native pool balance.
func (h *Handler) BalanceNative(c *fiber.Ctx) error {
	b, err := h.balance(c, asset.NativeSymbol)
	if err != nil {
		return err
	}
	return c.JSON(b)
}

// BalanceOf returns the custody balance of one asset.
func (h *Handler) BalanceOf(c *fiber.Ctx) error {
	id := c.Params("assetId")
	if _, err := h.assets.Meta(id); err != nil {
		return &apiError{status: http.StatusNotFound, code: Code(ErrInvalidArgument), msg: err.Error()}
	}
	b, err := h.balance(c, id)
	if err != nil {
		return err
	}
	return c.JSON(b)
}

// Ledger returns every record in order.
func (h *Handler) Ledger(c *fiber.Ctx) error {
	records, err := h.engine.LedgerAll(c.UserContext())
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(fiber.Map{"length": len(records), "records": records})
}

// LedgerLength returns the number of records.
func (h *Handler) LedgerLength(c *fiber.Ctx) error {
	n, err := h.engine.LedgerLength(c.UserContext())
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(fiber.Map{"length": n})
}

// LedgerGet returns the record at the path index.
func (h *Handler) LedgerGet(c *fiber.Ctx) error {
	index, err := strconv.ParseUint(c.Params("index"), 10, 64)
	if err != nil {
		return badRequest("index must be a non-negative integer")
	}
	rec, err := h.engine.LedgerGet(c.UserContext(), index)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(rec)
}

// VerifyLedger checks the hash chain.
func (h *Handler) VerifyLedger(c *fiber.Ctx) error {
	n, err := h.engine.LedgerLength(c.UserContext())
	if err != nil {
		return toHTTP(err)
	}
	if err := h.engine.VerifyLedger(c.UserContext()); err != nil {
		if errors.Is(err, ledger.ErrChainBroken) {
			return c.Status(http.StatusConflict).JSON(fiber.Map{"valid": false, "length": n, "error": err.Error()})
		}
		return toHTTP(err)
	}
	return c.JSON(fiber.Map{"valid": true, "length": n})
}

const timeLayout = "2006-01-02T15:04:05.999999Z07:00"
