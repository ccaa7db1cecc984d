package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/custody"
)

// RegisterCustodyRoutes wires owner, transfer, balance and ledger endpoints.
// Reads are public; mutations need an authenticated principal.
func RegisterCustodyRoutes(r fiber.Router, h *custody.Handler, auth, idempotent, sendLimit fiber.Handler) {
	r.Get("/owners", h.ListOwners)
	r.Get("/owners/:principal", h.GetOwner)
	r.Post("/owners", auth, idempotent, h.AddOwner)
	r.Delete("/owners/:principal", auth, idempotent, h.RemoveOwner)

	r.Post("/transfers/native", auth, sendLimit, idempotent, h.SendNative)
	r.Post("/transfers/fungible", auth, sendLimit, idempotent, h.SendFungible)

	r.Get("/balances", h.Balances)
	r.Get("/balances/native", h.BalanceNative)
	r.Get("/balances/:assetId", h.BalanceOf)

	r.Get("/ledger", h.Ledger)
	r.Get("/ledger/length", h.LedgerLength)
	r.Get("/ledger/verify", h.VerifyLedger)
	r.Get("/ledger/:index", h.LedgerGet)
}
