package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Kind names a custody event.
type Kind string

const (
	KindOwnerAdded   Kind = "owner_added"
	KindOwnerRemoved Kind = "owner_removed"
	KindSent         Kind = "sent"
	KindReceived     Kind = "received"
)

// Event describes something that already happened to the vault. Owner
// events carry Actor and Owner; transfer events carry Asset, From, To,
// Amount and Note, plus Index for ledgered sends.
type Event struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Actor      *common.Address `json:"actor,omitempty"`
	Owner      *common.Address `json:"owner,omitempty"`
	Asset      string          `json:"asset,omitempty"`
	From       *common.Address `json:"from,omitempty"`
	To         *common.Address `json:"to,omitempty"`
	Amount     uint64          `json:"amount,omitempty"`
	Note       string          `json:"note,omitempty"`
	Index      *uint64         `json:"index,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent stamps a fresh id on an event of the given kind.
func NewEvent(kind Kind, at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: kind, OccurredAt: at.UTC()}
}

// Sink receives committed events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// LoggerSink writes events to the structured logger.
type LoggerSink struct {
	logger *slog.Logger
}

// NewLoggerSink constructs a logging sink.
func NewLoggerSink(logger *slog.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Emit writes the event to the structured logger.
func (s *LoggerSink) Emit(_ context.Context, event Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("kind", string(event.Kind)),
		slog.Time("occurred_at", event.OccurredAt),
	}
	if event.Actor != nil {
		attrs = append(attrs, slog.String("actor", event.Actor.Hex()))
	}
	if event.Owner != nil {
		attrs = append(attrs, slog.String("owner", event.Owner.Hex()))
	}
	if event.Asset != "" {
		attrs = append(attrs, slog.String("asset", event.Asset), slog.Uint64("amount", event.Amount))
	}
	if event.To != nil {
		attrs = append(attrs, slog.String("to", event.To.Hex()))
	}
	if event.From != nil {
		attrs = append(attrs, slog.String("from", event.From.Hex()))
	}
	if event.Index != nil {
		attrs = append(attrs, slog.Uint64("index", *event.Index))
	}
	if event.Note != "" {
		attrs = append(attrs, slog.String("note", event.Note))
	}
	s.logger.Info("notification", attrs...)
	return nil
}

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

// Emit delivers to all sinks even when some fail.
func (m Multi) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
