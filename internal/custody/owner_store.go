package custody

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OwnerStore persists the owner set. The engine keeps the authoritative
// copy in memory and writes through before changing it.
type OwnerStore interface {
	Load(ctx context.Context) ([]Owner, error)
	Add(ctx context.Context, owner Owner) error
	Remove(ctx context.Context, principal common.Address) error
}

type memoryOwnerStore struct {
	mu     sync.Mutex
	owners map[common.Address]Owner
}

// NewMemoryOwnerStore returns a process-local owner store.
func NewMemoryOwnerStore() OwnerStore {
	return &memoryOwnerStore{owners: make(map[common.Address]Owner)}
}

func (s *memoryOwnerStore) Load(context.Context) ([]Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Owner, 0, len(s.owners))
	for _, o := range s.owners {
		out = append(out, o)
	}
	return out, nil
}

func (s *memoryOwnerStore) Add(_ context.Context, owner Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[owner.Principal] = owner
	return nil
}

func (s *memoryOwnerStore) Remove(_ context.Context, principal common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.owners, principal)
	return nil
}

// PostgresOwnerStore keeps owners in the custody_owners table.
type PostgresOwnerStore struct {
	db *pgxpool.Pool
}

// NewPostgresOwnerStore constructs a Postgres-backed owner store.
func NewPostgresOwnerStore(db *pgxpool.Pool) *PostgresOwnerStore {
	return &PostgresOwnerStore{db: db}
}

// Load returns every persisted owner.
func (s *PostgresOwnerStore) Load(ctx context.Context) ([]Owner, error) {
	rows, err := s.db.Query(ctx, `SELECT principal, added_at FROM custody_owners ORDER BY added_at, principal`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Owner
	for rows.Next() {
		var (
			principal string
			addedAt   time.Time
		)
		if err := rows.Scan(&principal, &addedAt); err != nil {
			return nil, err
		}
		if !common.IsHexAddress(principal) {
			return nil, fmt.Errorf("stored owner %q is not an address", principal)
		}
		out = append(out, Owner{Principal: common.HexToAddress(principal), AddedAt: addedAt.UTC()})
	}
	return out, rows.Err()
}

// Add inserts the owner row.
func (s *PostgresOwnerStore) Add(ctx context.Context, owner Owner) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO custody_owners (principal, added_at) VALUES ($1, $2)`,
		owner.Principal.Hex(), owner.AddedAt,
	)
	return err
}

// Remove deletes the owner row.
func (s *PostgresOwnerStore) Remove(ctx context.Context, principal common.Address) error {
	_, err := s.db.Exec(ctx, `DELETE FROM custody_owners WHERE principal = $1`, principal.Hex())
	return err
}
