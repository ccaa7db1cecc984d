// Package price quotes unit prices for custody assets. Quotes come from
// static configuration and are not a market feed.
package price

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoQuote is returned for assets without a configured price.
var ErrNoQuote = errors.New("no quote for asset")

// Quoter returns the unit price of an asset in the quote currency.
type Quoter interface {
	Quote(ctx context.Context, assetID string) (decimal.Decimal, error)
}

// Static serves fixed prices.
type Static struct {
	currency string
	prices   map[string]decimal.Decimal
}

// NewStatic parses prices given as decimal strings keyed by asset id.
func NewStatic(currency string, prices map[string]string) (*Static, error) {
	s := &Static{currency: strings.ToUpper(currency), prices: make(map[string]decimal.Decimal, len(prices))}
	for id, raw := range prices {
		p, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("price for %s: %w", id, err)
		}
		if p.IsNegative() {
			return nil, fmt.Errorf("price for %s is negative", id)
		}
		s.prices[id] = p
	}
	return s, nil
}

// Currency is the quote currency code.
func (s *Static) Currency() string {
	return s.currency
}

// Quote returns the configured unit price.
func (s *Static) Quote(_ context.Context, assetID string) (decimal.Decimal, error) {
	p, ok := s.prices[assetID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNoQuote, assetID)
	}
	return p, nil
}

// Quote pairs an asset with its unit price.
type Quote struct {
	AssetID  string          `json:"asset_id"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
}

// All lists every configured quote ordered by asset id.
func (s *Static) All() []Quote {
	out := make([]Quote, 0, len(s.prices))
	for id, p := range s.prices {
		out = append(out, Quote{AssetID: id, Price: p, Currency: s.currency})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out
}

// Units converts an amount in the smallest unit to whole units.
func Units(amount uint64, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals)
}

// Value prices an amount given in the smallest unit.
func Value(amount uint64, decimals int32, unitPrice decimal.Decimal) decimal.Decimal {
	return Units(amount, decimals).Mul(unitPrice)
}
