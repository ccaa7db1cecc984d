package asset

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NativePool is the native-currency adapter: the custody principal's own
// balance in a book.
type NativePool struct {
	book    Book
	custody common.Address
}

// NewNativePool wraps book as the native adapter for custody.
func NewNativePool(book Book, custody common.Address) *NativePool {
	return &NativePool{book: book, custody: custody}
}

// Balance returns what the custody principal holds.
func (p *NativePool) Balance(ctx context.Context) (uint64, error) {
	return p.book.BalanceOf(ctx, p.custody)
}

// Transfer moves amount out of the pool or fails without moving anything.
func (p *NativePool) Transfer(ctx context.Context, to common.Address, amount uint64) error {
	ok, err := p.book.Move(ctx, p.custody, to, amount)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: native transfer of %d", ErrRejected, amount)
	}
	return nil
}

// Deposit credits inbound native value to the pool.
func (p *NativePool) Deposit(ctx context.Context, _ common.Address, amount uint64) error {
	return p.book.Credit(ctx, p.custody, amount)
}

// Token is a fungible-asset adapter whose transfers are made on behalf of
// the custody principal.
type Token struct {
	book    Book
	custody common.Address
}

// NewToken wraps book as a fungible adapter for custody.
func NewToken(book Book, custody common.Address) *Token {
	return &Token{book: book, custody: custody}
}

// BalanceOf returns the holder's balance.
func (t *Token) BalanceOf(ctx context.Context, holder common.Address) (uint64, error) {
	return t.book.BalanceOf(ctx, holder)
}

// Transfer reports false when the custody balance does not cover amount.
func (t *Token) Transfer(ctx context.Context, to common.Address, amount uint64) (bool, error) {
	return t.book.Move(ctx, t.custody, to, amount)
}

// Deposit credits inbound tokens to the custody principal.
func (t *Token) Deposit(ctx context.Context, _ common.Address, amount uint64) error {
	return t.book.Credit(ctx, t.custody, amount)
}
