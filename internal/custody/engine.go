// Package custody implements the shared-custody vault: an owner set that
// gates every outgoing movement of pooled value and an append-only ledger
// recording each one.
package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/custody/internal/asset"
	"github.com/congo-pay/custody/internal/ledger"
	"github.com/congo-pay/custody/internal/notification"
)

const (
	DefaultAdapterTimeout = 5 * time.Second
	DefaultStoreTimeout   = 5 * time.Second
	DefaultNoteMaxLength  = 1024
)

// Deps are the collaborators of an Engine. Custody, Assets, Ledger and
// Owners are required.
type Deps struct {
	Custody        common.Address
	Assets         *asset.Registry
	Ledger         ledger.Ledger
	Owners         OwnerStore
	Sink           notification.Sink
	Clock          Clock
	Logger         *slog.Logger
	InitialOwners  []common.Address
	AdapterTimeout time.Duration
	StoreTimeout   time.Duration
	NoteMaxLength  int
}

// Engine serializes every mutation of the vault behind one writer lock.
type Engine struct {
	mu       sync.RWMutex
	owners   *registry
	custody  common.Address
	assets   *asset.Registry
	ledger   ledger.Ledger
	store    OwnerStore
	sink     notification.Sink
	clock    Clock
	logger   *slog.Logger
	timeout  time.Duration
	storeTTL time.Duration
	noteMax  int
}

// SendInput describes an outgoing transfer. AssetID is ignored for native
// sends.
type SendInput struct {
	Caller  common.Address
	AssetID string
	To      common.Address
	Amount  uint64
	Note    string
}

// NewEngine loads the persisted owner set, seeding it from InitialOwners
// when the store is empty.
func NewEngine(ctx context.Context, deps Deps) (*Engine, error) {
	switch {
	case deps.Custody == (common.Address{}):
		return nil, errors.New("custody address is required")
	case deps.Assets == nil || deps.Assets.Native() == nil:
		return nil, errors.New("native asset adapter is required")
	case deps.Ledger == nil:
		return nil, errors.New("ledger is required")
	case deps.Owners == nil:
		return nil, errors.New("owner store is required")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.AdapterTimeout <= 0 {
		deps.AdapterTimeout = DefaultAdapterTimeout
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = DefaultStoreTimeout
	}
	if deps.NoteMaxLength <= 0 {
		deps.NoteMaxLength = DefaultNoteMaxLength
	}

	owners, err := deps.Owners.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}
	if len(owners) == 0 {
		now := deps.Clock.Now()
		seen := make(map[common.Address]bool, len(deps.InitialOwners))
		for _, p := range deps.InitialOwners {
			if p == (common.Address{}) || seen[p] {
				continue
			}
			seen[p] = true
			o := Owner{Principal: p, AddedAt: now}
			if err := deps.Owners.Add(ctx, o); err != nil {
				return nil, fmt.Errorf("seed owner %s: %w", p.Hex(), err)
			}
			owners = append(owners, o)
		}
		deps.Logger.Info("owner set seeded", slog.Int("owners", len(owners)))
	}
	if len(owners) == 0 {
		return nil, errors.New("at least one owner is required")
	}

	return &Engine{
		owners:   newRegistry(owners),
		custody:  deps.Custody,
		assets:   deps.Assets,
		ledger:   deps.Ledger,
		store:    deps.Owners,
		sink:     deps.Sink,
		clock:    deps.Clock,
		logger:   deps.Logger,
		timeout:  deps.AdapterTimeout,
		storeTTL: deps.StoreTimeout,
		noteMax:  deps.NoteMaxLength,
	}, nil
}

// Address returns the custody principal transfers are made from.
func (e *Engine) Address() common.Address {
	return e.custody
}

// AddOwner lets an existing owner add a new one.
func (e *Engine) AddOwner(ctx context.Context, caller, newOwner common.Address) error {
	if newOwner == (common.Address{}) {
		return fmt.Errorf("%w: zero principal", ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.owners.checkAdd(caller, newOwner); err != nil {
		return err
	}
	o := Owner{Principal: newOwner, AddedAt: e.clock.Now()}
	if err := e.persist(ctx, func(ctx context.Context) error { return e.store.Add(ctx, o) }); err != nil {
		return fmt.Errorf("persist owner: %w", err)
	}
	e.owners.insert(o)

	ev := notification.NewEvent(notification.KindOwnerAdded, o.AddedAt)
	ev.Actor, ev.Owner = &caller, &newOwner
	e.emit(ctx, ev)
	return nil
}

// RemoveOwner lets an owner remove any owner, itself included, as long as
// one remains.
func (e *Engine) RemoveOwner(ctx context.Context, caller, target common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.owners.checkRemove(caller, target); err != nil {
		return err
	}
	if err := e.persist(ctx, func(ctx context.Context) error { return e.store.Remove(ctx, target) }); err != nil {
		return fmt.Errorf("persist owner removal: %w", err)
	}
	e.owners.delete(target)

	ev := notification.NewEvent(notification.KindOwnerRemoved, e.clock.Now())
	ev.Actor, ev.Owner = &caller, &target
	e.emit(ctx, ev)
	return nil
}

// SendNative moves native currency out of the pool and records it.
func (e *Engine) SendNative(ctx context.Context, in SendInput) (ledger.Record, error) {
	if err := e.validateSend(in); err != nil {
		return ledger.Record{}, err
	}
	native := e.assets.Native()

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.owners.isOwner(in.Caller) {
		return ledger.Record{}, ErrUnauthorized
	}
	available, err := withTimeout(ctx, e.timeout, native.Balance)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: read native balance: %v", ErrTransferFailed, err)
	}
	if in.Amount > available {
		return ledger.Record{}, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientBalance, in.Amount, available)
	}
	_, err = withTimeout(ctx, e.timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, native.Transfer(ctx, in.To, in.Amount)
	})
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: native transfer: %v", ErrTransferFailed, err)
	}
	return e.commit(ctx, ledger.Native(), in)
}

// SendFungible moves a fungible asset out of custody and records it. An
// adapter reporting false is a failure and nothing is recorded.
func (e *Engine) SendFungible(ctx context.Context, in SendInput) (ledger.Record, error) {
	if err := e.validateSend(in); err != nil {
		return ledger.Record{}, err
	}
	token, err := e.assets.Fungible(in.AssetID)
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.owners.isOwner(in.Caller) {
		return ledger.Record{}, ErrUnauthorized
	}
	available, err := withTimeout(ctx, e.timeout, func(ctx context.Context) (uint64, error) {
		return token.BalanceOf(ctx, e.custody)
	})
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: read %s balance: %v", ErrTransferFailed, in.AssetID, err)
	}
	if in.Amount > available {
		return ledger.Record{}, fmt.Errorf("%w: requested %d %s, available %d", ErrInsufficientBalance, in.Amount, in.AssetID, available)
	}
	ok, err := withTimeout(ctx, e.timeout, func(ctx context.Context) (bool, error) {
		return token.Transfer(ctx, in.To, in.Amount)
	})
	if err != nil {
		return ledger.Record{}, fmt.Errorf("%w: %s transfer: %v", ErrTransferFailed, in.AssetID, err)
	}
	if !ok {
		return ledger.Record{}, fmt.Errorf("%w: %s adapter reported failure", ErrTransferFailed, in.AssetID)
	}
	return e.commit(ctx, ledger.Fungible(in.AssetID), in)
}

// commit appends the record for a transfer that already happened and
// emits Sent. Callers hold the write lock.
func (e *Engine) commit(ctx context.Context, tag ledger.Asset, in SendInput) (ledger.Record, error) {
	draft := ledger.Record{
		Asset:     tag,
		From:      e.custody,
		To:        in.To,
		Amount:    in.Amount,
		Timestamp: e.clock.Now(),
		Note:      in.Note,
	}
	rec, err := withTimeout(context.WithoutCancel(ctx), e.storeTTL, func(ctx context.Context) (ledger.Record, error) {
		return e.ledger.Append(ctx, draft)
	})
	if err != nil {
		// Value already left custody; the operator has to reconcile.
		e.logger.Error("transfer executed but not recorded",
			slog.String("asset", tag.String()),
			slog.String("to", in.To.Hex()),
			slog.Uint64("amount", in.Amount),
			slog.String("error", err.Error()),
		)
		return ledger.Record{}, fmt.Errorf("record transfer: %w", err)
	}

	ev := notification.NewEvent(notification.KindSent, rec.Timestamp)
	from, to, index := rec.From, rec.To, rec.Index
	ev.Actor = &in.Caller
	ev.Asset = tag.String()
	ev.From, ev.To = &from, &to
	ev.Amount = rec.Amount
	ev.Note = rec.Note
	ev.Index = &index
	e.emit(ctx, ev)
	return rec, nil
}

func (e *Engine) validateSend(in SendInput) error {
	switch {
	case in.To == (common.Address{}):
		return fmt.Errorf("%w: zero recipient", ErrInvalidArgument)
	case in.Amount == 0:
		return fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	case len(in.Note) > e.noteMax:
		return fmt.Errorf("%w: note exceeds %d bytes", ErrInvalidArgument, e.noteMax)
	case !utf8.ValidString(in.Note):
		return fmt.Errorf("%w: note is not valid UTF-8", ErrInvalidArgument)
	case strings.ContainsRune(in.Note, 0):
		return fmt.Errorf("%w: note contains a NUL byte", ErrInvalidArgument)
	}
	return nil
}

// persist runs an owner-store write under the store deadline. Callers hold
// the write lock, so a hung store must not keep it.
func (e *Engine) persist(ctx context.Context, write func(context.Context) error) error {
	_, err := withTimeout(context.WithoutCancel(ctx), e.storeTTL, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, write(ctx)
	})
	return err
}

// emit delivers a committed event. Sink failures are logged only.
func (e *Engine) emit(ctx context.Context, ev notification.Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Emit(context.WithoutCancel(ctx), ev); err != nil {
		e.logger.Warn("notification failed",
			slog.String("event_id", ev.ID),
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// BalanceNative returns the pool's native balance.
func (e *Engine) BalanceNative(ctx context.Context) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return withTimeout(ctx, e.timeout, e.assets.Native().Balance)
}

// BalanceOf returns the custody balance of a fungible asset.
func (e *Engine) BalanceOf(ctx context.Context, assetID string) (uint64, error) {
	token, err := e.assets.Fungible(assetID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return withTimeout(ctx, e.timeout, func(ctx context.Context) (uint64, error) {
		return token.BalanceOf(ctx, e.custody)
	})
}

// LedgerLength returns the number of recorded transfers.
func (e *Engine) LedgerLength(ctx context.Context) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Len(ctx)
}

// LedgerGet returns the record at index.
func (e *Engine) LedgerGet(ctx context.Context, index uint64) (ledger.Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.Get(ctx, index)
}

// LedgerAll returns a copy of every record in order.
func (e *Engine) LedgerAll(ctx context.Context) ([]ledger.Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.All(ctx)
}

// VerifyLedger checks the hash chain of every stored record.
func (e *Engine) VerifyLedger(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ledger.Verify(ctx, e.ledger)
}

// IsOwner reports whether p is currently an owner.
func (e *Engine) IsOwner(p common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owners.isOwner(p)
}

// Owner returns the owner entry for p.
func (e *Engine) Owner(p common.Address) (Owner, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.owners.owners[p]
	return o, ok
}

// Owners lists owners in the order they were added.
func (e *Engine) Owners() []Owner {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owners.list()
}

// OwnerCount returns the size of the owner set.
func (e *Engine) OwnerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owners.count()
}

// withTimeout bounds an adapter call. A call that outlives d is abandoned
// and reported as context.DeadlineExceeded; it is not rolled back.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
