// Package deposit credits inbound value to the custody principal. Deposits
// are not ledgered and need no owner; they only produce a Received event.
package deposit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/congo-pay/custody/internal/asset"
	"github.com/congo-pay/custody/internal/ledger"
	"github.com/congo-pay/custody/internal/notification"
)

var (
	// ErrDuplicate is returned when a reference was already credited.
	ErrDuplicate = errors.New("deposit already credited")

	// ErrInvalid is returned for malformed deposits.
	ErrInvalid = errors.New("invalid deposit")
)

// Service credits deposits through the asset adapters.
type Service struct {
	assets  *asset.Registry
	custody common.Address
	sink    notification.Sink
	logger  *slog.Logger
	now     func() time.Time

	mu   sync.Mutex
	seen map[string]Receipt
}

// NewService constructs a deposit service.
func NewService(assets *asset.Registry, custody common.Address, sink notification.Sink, logger *slog.Logger) (*Service, error) {
	if assets == nil {
		return nil, fmt.Errorf("asset registry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		assets:  assets,
		custody: custody,
		sink:    sink,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		seen:    make(map[string]Receipt),
	}, nil
}

// Input describes an inbound transfer.
type Input struct {
	AssetID   string
	From      common.Address
	Amount    uint64
	Reference string
}

// Receipt is the outcome of a credited deposit.
type Receipt struct {
	Reference  string         `json:"reference"`
	Asset      string         `json:"asset"`
	From       common.Address `json:"from"`
	To         common.Address `json:"to"`
	Amount     uint64         `json:"amount"`
	ReceivedAt time.Time      `json:"received_at"`
}

// Deposit credits input.Amount to the custody principal and emits Received.
// A repeated reference returns the original receipt with ErrDuplicate.
func (s *Service) Deposit(ctx context.Context, input Input) (Receipt, error) {
	if input.Amount == 0 {
		return Receipt{}, fmt.Errorf("%w: amount must be positive", ErrInvalid)
	}
	if input.From == (common.Address{}) {
		return Receipt{}, fmt.Errorf("%w: zero sender", ErrInvalid)
	}
	if input.AssetID == "" {
		input.AssetID = asset.NativeSymbol
	}
	if input.Reference == "" {
		input.Reference = uuid.NewString()
	}
	depositor, err := s.assets.Depositor(input.AssetID)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prior, ok := s.seen[input.Reference]; ok {
		return prior, ErrDuplicate
	}

	if err := depositor.Deposit(ctx, input.From, input.Amount); err != nil {
		return Receipt{}, fmt.Errorf("credit deposit: %w", err)
	}

	tag := ledger.Native()
	if input.AssetID != asset.NativeSymbol {
		tag = ledger.Fungible(input.AssetID)
	}
	receipt := Receipt{
		Reference:  input.Reference,
		Asset:      tag.String(),
		From:       input.From,
		To:         s.custody,
		Amount:     input.Amount,
		ReceivedAt: s.now(),
	}
	s.seen[input.Reference] = receipt

	if s.sink != nil {
		ev := notification.NewEvent(notification.KindReceived, receipt.ReceivedAt)
		from, to := receipt.From, receipt.To
		ev.Asset = receipt.Asset
		ev.From, ev.To = &from, &to
		ev.Amount = receipt.Amount
		ev.Note = receipt.Reference
		if err := s.sink.Emit(context.WithoutCancel(ctx), ev); err != nil {
			s.logger.Warn("notification failed", slog.String("event_id", ev.ID), slog.String("error", err.Error()))
		}
	}
	return receipt, nil
}
