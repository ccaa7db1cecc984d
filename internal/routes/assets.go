package routes

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/custody/internal/asset"
)

func commonAddress(s string) common.Address {
	return common.HexToAddress(strings.TrimSpace(s))
}

// buildAssets registers the native pool and every configured token, backed
// by Redis when available.
func buildAssets(ctx context.Context, d Deps) (*asset.Registry, error) {
	custody := d.Cfg.Custody()
	book := func(id string) asset.Book {
		if d.Cache != nil {
			return asset.NewRedisBook(d.Cache, id)
		}
		return asset.NewMemoryBook()
	}

	nativeBook := book(asset.NativeSymbol)
	if err := seed(ctx, nativeBook, custody, d.Cfg.NativeSeedBalance); err != nil {
		return nil, fmt.Errorf("seed native balance: %w", err)
	}
	registry := asset.NewRegistry(
		asset.Meta{Symbol: d.Cfg.NativeSymbol, Decimals: d.Cfg.NativeDecimals},
		asset.NewNativePool(nativeBook, custody),
	)

	tokens, err := d.Cfg.TokenList()
	if err != nil {
		return nil, err
	}
	for _, tok := range tokens {
		b := book(tok.ID)
		if err := seed(ctx, b, custody, tok.Seed); err != nil {
			return nil, fmt.Errorf("seed %s balance: %w", tok.ID, err)
		}
		meta := asset.Meta{ID: tok.ID, Symbol: strings.ToUpper(tok.ID), Decimals: tok.Decimals}
		if err := registry.Register(meta, asset.NewToken(b, custody)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// seed credits amount only to an empty balance so restarts against a
// persistent book do not mint twice.
func seed(ctx context.Context, b asset.Book, holder common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	current, err := b.BalanceOf(ctx, holder)
	if err != nil {
		return err
	}
	if current > 0 {
		return nil
	}
	return b.Credit(ctx, holder, amount)
}
