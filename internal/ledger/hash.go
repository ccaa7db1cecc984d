package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"
)

// hashedFields is the canonical shape hashed for each record. Amount is a
// decimal string so values above 2^53 survive JSON number handling.
type hashedFields struct {
	Index     uint64 `json:"index"`
	Asset     string `json:"asset"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Timestamp string `json:"timestamp"`
	Note      string `json:"note"`
	PrevHash  string `json:"prev_hash"`
}

func hashRecord(r Record) (common.Hash, error) {
	raw, err := json.Marshal(hashedFields{
		Index:     r.Index,
		Asset:     r.Asset.String(),
		From:      r.From.Hex(),
		To:        r.To.Hex(),
		Amount:    strconv.FormatUint(r.Amount, 10),
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339Nano),
		Note:      r.Note,
		PrevHash:  r.PrevHash.Hex(),
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode record: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return common.Hash{}, fmt.Errorf("canonicalize record: %w", err)
	}
	return crypto.Keccak256Hash(canonical), nil
}
