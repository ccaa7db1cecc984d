package identity

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type memoryRepository struct {
	mu    sync.RWMutex
	creds map[common.Address]Credential
}

// NewMemoryRepository builds an in-memory credential store.
func NewMemoryRepository() Repository {
	return &memoryRepository{creds: make(map[common.Address]Credential)}
}

func (r *memoryRepository) Put(_ context.Context, cred Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[cred.Principal] = cred
	return nil
}

func (r *memoryRepository) Find(_ context.Context, principal common.Address) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[principal]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}
