package identity

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a principal has no credential.
var ErrNotFound = errors.New("credential not found")

// Repository persists credentials. Put replaces any existing credential.
type Repository interface {
	Put(ctx context.Context, cred Credential) error
	Find(ctx context.Context, principal common.Address) (Credential, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed credential repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Put upserts the principal's credential.
func (r *PostgresRepository) Put(ctx context.Context, cred Credential) error {
	_, err := r.db.Exec(ctx, `INSERT INTO api_credentials (principal, secret_hash, created_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (principal) DO UPDATE SET secret_hash = EXCLUDED.secret_hash, created_at = EXCLUDED.created_at`,
		cred.Principal.Hex(), cred.SecretHash, cred.CreatedAt.UTC())
	return err
}

// Find fetches the credential for principal.
func (r *PostgresRepository) Find(ctx context.Context, principal common.Address) (Credential, error) {
	row := r.db.QueryRow(ctx, `SELECT secret_hash, created_at FROM api_credentials WHERE principal = $1`, principal.Hex())
	var (
		cred      = Credential{Principal: principal}
		createdAt time.Time
	)
	if err := row.Scan(&cred.SecretHash, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, err
	}
	cred.CreatedAt = createdAt.UTC()
	return cred, nil
}
