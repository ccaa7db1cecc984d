package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type inMemoryLedger struct {
	mu      sync.RWMutex
	records []Record
}

// NewInMemory creates a concurrency-safe in-memory ledger used in development
// and tests.
func NewInMemory() Ledger {
	return &inMemoryLedger{}
}

func (l *inMemoryLedger) Append(_ context.Context, record Record) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := common.Hash{}
	if n := len(l.records); n > 0 {
		prev = l.records[n-1].Hash
	}
	sealed, err := seal(record, uint64(len(l.records)), prev)
	if err != nil {
		return Record{}, err
	}
	l.records = append(l.records, sealed)
	return sealed, nil
}

func (l *inMemoryLedger) Get(_ context.Context, index uint64) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.records)) {
		return Record{}, ErrIndexOutOfRange
	}
	return l.records[index], nil
}

func (l *inMemoryLedger) Len(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.records)), nil
}

func (l *inMemoryLedger) All(_ context.Context) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out, nil
}
