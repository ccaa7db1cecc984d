// Package asset holds the balance-and-transfer capabilities the custody
// engine moves value through: the native pool and one adapter per fungible
// asset.
package asset

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrUnknownAsset is returned when no adapter is registered for an id.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrRejected is returned by the native pool when the underlying book
	// refuses a move. Nothing was transferred.
	ErrRejected = errors.New("transfer rejected")

	// ErrInvalidAmount is returned for zero-value moves and credits.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// NativeSymbol is the id under which the native currency is registered.
const NativeSymbol = "native"

// Meta describes an asset for display and valuation.
type Meta struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// Native is the custody pool's own currency. Transfer is all-or-nothing:
// on error nothing moved.
type Native interface {
	Balance(ctx context.Context) (uint64, error)
	Transfer(ctx context.Context, to common.Address, amount uint64) error
}

// Fungible is an externally tracked asset. Transfer may report failure by
// returning false without an error.
type Fungible interface {
	BalanceOf(ctx context.Context, holder common.Address) (uint64, error)
	Transfer(ctx context.Context, to common.Address, amount uint64) (bool, error)
}

// Depositor accepts inbound value credited to the custody principal.
type Depositor interface {
	Deposit(ctx context.Context, from common.Address, amount uint64) error
}

// Book tracks balances per holder for a single asset.
type Book interface {
	BalanceOf(ctx context.Context, holder common.Address) (uint64, error)
	// Move debits from and credits to. It reports false, leaving both
	// balances untouched, when from holds less than amount.
	Move(ctx context.Context, from, to common.Address, amount uint64) (bool, error)
	Credit(ctx context.Context, holder common.Address, amount uint64) error
}
