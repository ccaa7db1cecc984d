package asset

import (
	"context"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type memoryBook struct {
	mu       sync.Mutex
	balances map[common.Address]uint64
}

// NewMemoryBook creates a concurrency-safe in-memory balance book.
func NewMemoryBook() Book {
	return &memoryBook{balances: make(map[common.Address]uint64)}
}

func (b *memoryBook) BalanceOf(ctx context.Context, holder common.Address) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[holder], nil
}

func (b *memoryBook) Move(ctx context.Context, from, to common.Address, amount uint64) (bool, error) {
	if amount == 0 {
		return false, ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.balances[from] < amount {
		return false, nil
	}
	if from != to && b.balances[to] > math.MaxUint64-amount {
		return false, nil
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return true, nil
}

func (b *memoryBook) Credit(ctx context.Context, holder common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balances[holder] > math.MaxUint64-amount {
		return ErrRejected
	}
	b.balances[holder] += amount
	return nil
}
