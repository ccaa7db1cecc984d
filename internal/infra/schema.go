package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied in order on startup. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS custody_owners (
        principal TEXT PRIMARY KEY,
        added_at  TIMESTAMPTZ NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS transfer_records (
        idx            BIGINT PRIMARY KEY,
        asset_kind     TEXT NOT NULL,
        asset_id       TEXT NOT NULL DEFAULT '',
        from_principal TEXT NOT NULL,
        to_principal   TEXT NOT NULL,
        amount         NUMERIC(20, 0) NOT NULL CHECK (amount > 0),
        note           TEXT NOT NULL DEFAULT '',
        created_at     TIMESTAMPTZ NOT NULL,
        prev_hash      TEXT NOT NULL,
        hash           TEXT NOT NULL UNIQUE
    )`,
	`CREATE OR REPLACE RULE transfer_records_no_update AS ON UPDATE TO transfer_records DO INSTEAD NOTHING`,
	`CREATE OR REPLACE RULE transfer_records_no_delete AS ON DELETE TO transfer_records DO INSTEAD NOTHING`,
	`CREATE TABLE IF NOT EXISTS api_credentials (
        principal   TEXT PRIMARY KEY,
        secret_hash BYTEA NOT NULL,
        created_at  TIMESTAMPTZ NOT NULL
    )`,
}

// Migrate creates the tables used by the Postgres-backed stores.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
