package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrIndexOutOfRange is returned when reading past the end of the ledger.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrChainBroken indicates a stored record no longer matches its hash or
	// its predecessor's hash.
	ErrChainBroken = errors.New("ledger hash chain broken")

	// ErrInvalidNote rejects notes that cannot be stored or hashed
	// faithfully: invalid UTF-8 or a NUL byte.
	ErrInvalidNote = errors.New("note must be valid UTF-8 without NUL bytes")
)

// AssetKind distinguishes the native currency from fungible assets.
type AssetKind string

const (
	AssetKindNative   AssetKind = "native"
	AssetKindFungible AssetKind = "fungible"
)

// Asset tags which value a record moved.
type Asset struct {
	Kind AssetKind `json:"kind"`
	ID   string    `json:"id,omitempty"`
}

// Native returns the native currency tag.
func Native() Asset {
	return Asset{Kind: AssetKindNative}
}

// Fungible returns the tag for the fungible asset with the given id.
func Fungible(id string) Asset {
	return Asset{Kind: AssetKindFungible, ID: id}
}

// String renders the tag as "native" or "fungible:<id>".
func (a Asset) String() string {
	if a.Kind == AssetKindNative {
		return string(AssetKindNative)
	}
	return fmt.Sprintf("%s:%s", a.Kind, a.ID)
}

// ParseAsset is the inverse of Asset.String.
func ParseAsset(s string) (Asset, error) {
	if s == string(AssetKindNative) {
		return Native(), nil
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok || AssetKind(kind) != AssetKindFungible || id == "" {
		return Asset{}, fmt.Errorf("invalid asset tag %q", s)
	}
	return Fungible(id), nil
}

// Record is a completed outgoing transfer. Records are immutable once
// appended.
type Record struct {
	Index     uint64         `json:"index"`
	Asset     Asset          `json:"asset"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Amount    uint64         `json:"amount"`
	Timestamp time.Time      `json:"timestamp"`
	Note      string         `json:"note"`
	PrevHash  common.Hash    `json:"prev_hash"`
	Hash      common.Hash    `json:"hash"`
}

// Ledger is the append-only transfer log. Append is the only mutator.
type Ledger interface {
	// Append stores the record at the next position, filling in Index,
	// PrevHash and Hash, and returns the stored copy.
	Append(ctx context.Context, record Record) (Record, error)
	Get(ctx context.Context, index uint64) (Record, error)
	Len(ctx context.Context) (uint64, error)
	// All returns a snapshot copy in insertion order.
	All(ctx context.Context) ([]Record, error)
}

// Verify walks every record and checks the hash chain.
func Verify(ctx context.Context, l Ledger) error {
	records, err := l.All(ctx)
	if err != nil {
		return err
	}
	prev := common.Hash{}
	for i, rec := range records {
		if rec.Index != uint64(i) {
			return fmt.Errorf("%w: record %d stored at position %d", ErrChainBroken, rec.Index, i)
		}
		if rec.PrevHash != prev {
			return fmt.Errorf("%w: record %d prev hash mismatch", ErrChainBroken, i)
		}
		sum, err := hashRecord(rec)
		if err != nil {
			return err
		}
		if sum != rec.Hash {
			return fmt.Errorf("%w: record %d hash mismatch", ErrChainBroken, i)
		}
		prev = rec.Hash
	}
	return nil
}

// seal assigns position and chain hashes to a record about to be stored.
func seal(record Record, index uint64, prev common.Hash) (Record, error) {
	if !utf8.ValidString(record.Note) || strings.ContainsRune(record.Note, 0) {
		return Record{}, ErrInvalidNote
	}
	record.Index = index
	record.PrevHash = prev
	record.Timestamp = record.Timestamp.UTC().Truncate(time.Microsecond)
	sum, err := hashRecord(record)
	if err != nil {
		return Record{}, err
	}
	record.Hash = sum
	return record, nil
}
