package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// appendLockKey serializes appends across connections with a transaction
// scoped advisory lock.
const appendLockKey = 0x6c6564676572

const selectColumns = `idx, asset_kind, asset_id, from_principal, to_principal, amount::text, note, created_at, prev_hash, hash`

// PostgresLedger persists transfer records in PostgreSQL. The table carries
// rules that discard UPDATE and DELETE statements.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Append stores the record after the current tip.
func (l *PostgresLedger) Append(ctx context.Context, record Record) (Record, error) {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return Record{}, fmt.Errorf("lock ledger: %w", err)
	}

	var (
		next    int64
		prevHex string
	)
	err = tx.QueryRow(ctx, `SELECT idx + 1, hash FROM transfer_records ORDER BY idx DESC LIMIT 1`).Scan(&next, &prevHex)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("read ledger tip: %w", err)
	}
	prev := common.Hash{}
	if prevHex != "" {
		prev = common.HexToHash(prevHex)
	}

	sealed, err := seal(record, uint64(next), prev)
	if err != nil {
		return Record{}, err
	}

	const insert = `INSERT INTO transfer_records
        (idx, asset_kind, asset_id, from_principal, to_principal, amount, note, created_at, prev_hash, hash)
        VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10)`
	if _, err := tx.Exec(ctx, insert,
		int64(sealed.Index),
		string(sealed.Asset.Kind),
		sealed.Asset.ID,
		sealed.From.Hex(),
		sealed.To.Hex(),
		strconv.FormatUint(sealed.Amount, 10),
		sealed.Note,
		sealed.Timestamp,
		sealed.PrevHash.Hex(),
		sealed.Hash.Hex(),
	); err != nil {
		return Record{}, fmt.Errorf("insert record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Record{}, err
	}
	return sealed, nil
}

// Get returns the record stored at index.
func (l *PostgresLedger) Get(ctx context.Context, index uint64) (Record, error) {
	if index > math.MaxInt64 {
		return Record{}, ErrIndexOutOfRange
	}
	row := l.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM transfer_records WHERE idx = $1`, int64(index))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrIndexOutOfRange
		}
		return Record{}, err
	}
	return rec, nil
}

// Len returns the number of stored records.
func (l *PostgresLedger) Len(ctx context.Context) (uint64, error) {
	var n int64
	if err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM transfer_records`).Scan(&n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// All returns every record in insertion order.
func (l *PostgresLedger) All(ctx context.Context) ([]Record, error) {
	rows, err := l.db.Query(ctx, `SELECT `+selectColumns+` FROM transfer_records ORDER BY idx`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec       Record
		idx       int64
		kind      string
		from, to  string
		amount    string
		createdAt time.Time
		prev, sum string
	)
	if err := row.Scan(&idx, &kind, &rec.Asset.ID, &from, &to, &amount, &rec.Note, &createdAt, &prev, &sum); err != nil {
		return Record{}, err
	}
	rec.Index = uint64(idx)
	value, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("record %d amount: %w", rec.Index, err)
	}
	rec.Asset.Kind = AssetKind(kind)
	rec.From = common.HexToAddress(from)
	rec.To = common.HexToAddress(to)
	rec.Amount = value
	rec.Timestamp = createdAt.UTC()
	rec.PrevHash = common.HexToHash(prev)
	rec.Hash = common.HexToHash(sum)
	return rec, nil
}
