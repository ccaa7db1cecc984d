package custody

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody/internal/asset"
	"github.com/congo-pay/custody/internal/ledger"
	"github.com/congo-pay/custody/internal/logging"
	"github.com/congo-pay/custody/internal/notification"
)

var (
	vault = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
	dave  = common.HexToAddress("0x000000000000000000000000000000000000da7e")
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingSink struct {
	mu     sync.Mutex
	events []notification.Event
	err    error
}

func (s *recordingSink) Emit(_ context.Context, ev notification.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) kinds() []notification.Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notification.Kind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

type mockFungible struct {
	mock.Mock
}

func (m *mockFungible) BalanceOf(ctx context.Context, holder common.Address) (uint64, error) {
	args := m.Called(ctx, holder)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockFungible) Transfer(ctx context.Context, to common.Address, amount uint64) (bool, error) {
	args := m.Called(ctx, to, amount)
	return args.Bool(0), args.Error(1)
}

type fixture struct {
	engine    *Engine
	native    asset.Book
	gold      asset.Book
	ledger    ledger.Ledger
	sink      *recordingSink
	registry  *asset.Registry
	ownerRepo OwnerStore
}

type fixtureOption func(*Deps)

func newFixture(t *testing.T, nativeBalance, goldBalance uint64, opts ...fixtureOption) *fixture {
	t.Helper()
	ctx := context.Background()

	nativeBook := asset.NewMemoryBook()
	goldBook := asset.NewMemoryBook()
	if nativeBalance > 0 {
		require.NoError(t, nativeBook.Credit(ctx, vault, nativeBalance))
	}
	if goldBalance > 0 {
		require.NoError(t, goldBook.Credit(ctx, vault, goldBalance))
	}

	reg := asset.NewRegistry(asset.Meta{Symbol: "CST", Decimals: 2}, asset.NewNativePool(nativeBook, vault))
	require.NoError(t, reg.Register(asset.Meta{ID: "gold", Symbol: "GLD", Decimals: 0}, asset.NewToken(goldBook, vault)))

	f := &fixture{
		native:    nativeBook,
		gold:      goldBook,
		ledger:    ledger.NewInMemory(),
		sink:      &recordingSink{},
		registry:  reg,
		ownerRepo: NewMemoryOwnerStore(),
	}
	deps := Deps{
		Custody:        vault,
		Assets:         reg,
		Ledger:         f.ledger,
		Owners:         f.ownerRepo,
		Sink:           f.sink,
		Clock:          newStepClock(),
		Logger:         logging.Discard(),
		InitialOwners:  []common.Address{alice},
		AdapterTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	engine, err := NewEngine(ctx, deps)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func principals(owners []Owner) []common.Address {
	out := make([]common.Address, 0, len(owners))
	for _, o := range owners {
		out = append(out, o.Principal)
	}
	return out
}

func TestNewEngineSeedsInitialOwners(t *testing.T) {
	f := newFixture(t, 0, 0, func(d *Deps) {
		d.InitialOwners = []common.Address{alice, bob, alice, {}}
	})
	assert.Equal(t, 2, f.engine.OwnerCount())

	stored, err := f.ownerRepo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestNewEngineKeepsPersistedOwners(t *testing.T) {
	store := NewMemoryOwnerStore()
	require.NoError(t, store.Add(context.Background(), Owner{Principal: carol, AddedAt: time.Now()}))

	f := newFixture(t, 0, 0, func(d *Deps) { d.Owners = store })
	assert.Equal(t, []common.Address{carol}, principals(f.engine.Owners()))
	assert.False(t, f.engine.IsOwner(alice))
}

func TestNewEngineRequiresAnOwner(t *testing.T) {
	reg := asset.NewRegistry(asset.Meta{}, asset.NewNativePool(asset.NewMemoryBook(), vault))
	_, err := NewEngine(context.Background(), Deps{
		Custody: vault,
		Assets:  reg,
		Ledger:  ledger.NewInMemory(),
		Owners:  NewMemoryOwnerStore(),
	})
	assert.Error(t, err)
}

func TestOwnerRotation(t *testing.T) {
	f := newFixture(t, 0, 0)
	ctx := context.Background()

	require.NoError(t, f.engine.AddOwner(ctx, alice, bob))
	assert.Equal(t, 2, f.engine.OwnerCount())

	require.NoError(t, f.engine.RemoveOwner(ctx, bob, alice))
	assert.Equal(t, []common.Address{bob}, principals(f.engine.Owners()))

	err := f.engine.RemoveOwner(ctx, bob, bob)
	assert.ErrorIs(t, err, ErrLastOwner)
	assert.Equal(t, []common.Address{bob}, principals(f.engine.Owners()))

	assert.Equal(t, []notification.Kind{notification.KindOwnerAdded, notification.KindOwnerRemoved}, f.sink.kinds())
	removed := f.sink.events[1]
	assert.Equal(t, bob, *removed.Actor)
	assert.Equal(t, alice, *removed.Owner)
}

func TestAddOwnerRejections(t *testing.T) {
	f := newFixture(t, 0, 0)
	ctx := context.Background()
	require.NoError(t, f.engine.AddOwner(ctx, alice, bob))

	assert.ErrorIs(t, f.engine.AddOwner(ctx, alice, bob), ErrAlreadyOwner)
	assert.ErrorIs(t, f.engine.AddOwner(ctx, carol, dave), ErrUnauthorized)
	assert.ErrorIs(t, f.engine.RemoveOwner(ctx, alice, carol), ErrNotAnOwner)
	assert.ErrorIs(t, f.engine.AddOwner(ctx, alice, common.Address{}), ErrInvalidArgument)

	assert.ElementsMatch(t, []common.Address{alice, bob}, principals(f.engine.Owners()))
	assert.Len(t, f.sink.kinds(), 1)
}

func TestRemoveSelfWhileOthersRemain(t *testing.T) {
	f := newFixture(t, 0, 0)
	ctx := context.Background()
	require.NoError(t, f.engine.AddOwner(ctx, alice, bob))

	require.NoError(t, f.engine.RemoveOwner(ctx, alice, alice))
	assert.False(t, f.engine.IsOwner(alice))
	assert.ErrorIs(t, f.engine.AddOwner(ctx, alice, carol), ErrUnauthorized)
}

func TestOwnerCountNeverDropsBelowOne(t *testing.T) {
	f := newFixture(t, 0, 0)
	ctx := context.Background()
	pool := []common.Address{alice, bob, carol, dave}
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		caller := pool[rng.Intn(len(pool))]
		target := pool[rng.Intn(len(pool))]
		if rng.Intn(2) == 0 {
			_ = f.engine.AddOwner(ctx, caller, target)
		} else {
			_ = f.engine.RemoveOwner(ctx, caller, target)
		}
		require.GreaterOrEqual(t, f.engine.OwnerCount(), 1)
		require.Len(t, f.engine.Owners(), f.engine.OwnerCount())
	}
}

func TestSendNativeRecordsTransfer(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()

	rec, err := f.engine.SendNative(ctx, SendInput{Caller: alice, To: carol, Amount: 5, Note: "rent"})
	require.NoError(t, err)

	assert.EqualValues(t, 0, rec.Index)
	assert.Equal(t, ledger.Native(), rec.Asset)
	assert.Equal(t, vault, rec.From)
	assert.Equal(t, carol, rec.To)
	assert.EqualValues(t, 5, rec.Amount)
	assert.Equal(t, "rent", rec.Note)

	n, err := f.engine.LedgerLength(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stored, err := f.engine.LedgerGet(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, rec, stored)

	balance, err := f.engine.BalanceNative(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, balance)
	received, err := f.native.BalanceOf(ctx, carol)
	require.NoError(t, err)
	assert.EqualValues(t, 5, received)

	require.Equal(t, []notification.Kind{notification.KindSent}, f.sink.kinds())
	ev := f.sink.events[0]
	assert.Equal(t, "native", ev.Asset)
	assert.Equal(t, carol, *ev.To)
	assert.EqualValues(t, 5, ev.Amount)
	assert.EqualValues(t, 0, *ev.Index)

	require.NoError(t, f.engine.VerifyLedger(ctx))
}

func TestSendNativeInsufficientBalance(t *testing.T) {
	f := newFixture(t, 5, 0)
	ctx := context.Background()

	_, err := f.engine.SendNative(ctx, SendInput{Caller: alice, To: carol, Amount: 100})
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	n, _ := f.engine.LedgerLength(ctx)
	assert.Zero(t, n)
	balance, _ := f.engine.BalanceNative(ctx)
	assert.EqualValues(t, 5, balance)
	assert.Empty(t, f.sink.kinds())
}

func TestConcurrentSendsCannotOverdraw(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.SendNative(ctx, SendInput{Caller: alice, To: bob, Amount: 6})
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientBalance):
			short++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)

	n, _ := f.engine.LedgerLength(ctx)
	assert.EqualValues(t, 1, n)
	balance, _ := f.engine.BalanceNative(ctx)
	assert.EqualValues(t, 4, balance)
}

func TestSendFungibleRecordsTransfer(t *testing.T) {
	f := newFixture(t, 0, 50)
	ctx := context.Background()

	rec, err := f.engine.SendFungible(ctx, SendInput{Caller: alice, AssetID: "gold", To: dave, Amount: 20, Note: "payout"})
	require.NoError(t, err)
	assert.Equal(t, ledger.Fungible("gold"), rec.Asset)

	left, err := f.engine.BalanceOf(ctx, "gold")
	require.NoError(t, err)
	assert.EqualValues(t, 30, left)
	got, _ := f.gold.BalanceOf(ctx, dave)
	assert.EqualValues(t, 20, got)
	assert.Equal(t, "fungible:gold", f.sink.events[0].Asset)
}

func TestSendFungibleFalseIsTransferFailed(t *testing.T) {
	token := &mockFungible{}
	token.On("BalanceOf", mock.Anything, vault).Return(uint64(50), nil)
	token.On("Transfer", mock.Anything, dave, uint64(20)).Return(false, nil).Once()

	f := newFixture(t, 0, 0)
	require.NoError(t, f.registry.Register(asset.Meta{ID: "silver"}, token))
	ctx := context.Background()

	_, err := f.engine.SendFungible(ctx, SendInput{Caller: alice, AssetID: "silver", To: dave, Amount: 20})
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.NotErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, "TRANSFER_FAILED", Code(err))

	n, _ := f.engine.LedgerLength(ctx)
	assert.Zero(t, n)
	assert.Empty(t, f.sink.kinds())
	token.AssertExpectations(t)
}

func TestSendFungibleAdapterError(t *testing.T) {
	token := &mockFungible{}
	token.On("BalanceOf", mock.Anything, vault).Return(uint64(50), nil)
	token.On("Transfer", mock.Anything, dave, uint64(1)).Return(false, errors.New("node unreachable"))

	f := newFixture(t, 0, 0)
	require.NoError(t, f.registry.Register(asset.Meta{ID: "silver"}, token))

	_, err := f.engine.SendFungible(context.Background(), SendInput{Caller: alice, AssetID: "silver", To: dave, Amount: 1})
	assert.ErrorIs(t, err, ErrTransferFailed)
}

func TestSendFungibleBalanceCheckSkipsTransfer(t *testing.T) {
	token := &mockFungible{}
	token.On("BalanceOf", mock.Anything, vault).Return(uint64(3), nil)

	f := newFixture(t, 0, 0)
	require.NoError(t, f.registry.Register(asset.Meta{ID: "silver"}, token))

	_, err := f.engine.SendFungible(context.Background(), SendInput{Caller: alice, AssetID: "silver", To: dave, Amount: 4})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	token.AssertNotCalled(t, "Transfer", mock.Anything, mock.Anything, mock.Anything)
}

type stalledNative struct {
	release chan struct{}
}

func (s *stalledNative) Balance(context.Context) (uint64, error) { return 100, nil }

func (s *stalledNative) Transfer(context.Context, common.Address, uint64) error {
	<-s.release
	return nil
}

func TestAdapterTimeoutIsTransferFailed(t *testing.T) {
	stalled := &stalledNative{release: make(chan struct{})}
	defer close(stalled.release)

	reg := asset.NewRegistry(asset.Meta{}, stalled)
	engine, err := NewEngine(context.Background(), Deps{
		Custody:        vault,
		Assets:         reg,
		Ledger:         ledger.NewInMemory(),
		Owners:         NewMemoryOwnerStore(),
		Logger:         logging.Discard(),
		InitialOwners:  []common.Address{alice},
		AdapterTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = engine.SendNative(context.Background(), SendInput{Caller: alice, To: bob, Amount: 1})
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.ErrorContains(t, err, context.DeadlineExceeded.Error())

	n, _ := engine.LedgerLength(context.Background())
	assert.Zero(t, n)
}

func TestNonOwnersCannotMutate(t *testing.T) {
	f := newFixture(t, 10, 10)
	ctx := context.Background()

	ops := map[string]func() error{
		"add":    func() error { return f.engine.AddOwner(ctx, carol, dave) },
		"remove": func() error { return f.engine.RemoveOwner(ctx, carol, alice) },
		"native": func() error {
			_, err := f.engine.SendNative(ctx, SendInput{Caller: carol, To: dave, Amount: 1})
			return err
		},
		"fungible": func() error {
			_, err := f.engine.SendFungible(ctx, SendInput{Caller: carol, AssetID: "gold", To: dave, Amount: 1})
			return err
		},
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, op(), ErrUnauthorized)
		})
	}
	n, _ := f.engine.LedgerLength(ctx)
	assert.Zero(t, n)
	assert.Equal(t, []common.Address{alice}, principals(f.engine.Owners()))
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, 10, 10, func(d *Deps) { d.NoteMaxLength = 8 })
	ctx := context.Background()

	cases := map[string]SendInput{
		"zero amount":    {Caller: alice, To: bob, Amount: 0},
		"zero recipient": {Caller: alice, Amount: 1},
		"long note":      {Caller: alice, To: bob, Amount: 1, Note: strings.Repeat("x", 9)},
		"nul in note":    {Caller: alice, To: bob, Amount: 1, Note: "rent\x00"},
		"invalid utf8":   {Caller: alice, To: bob, Amount: 1, Note: "\xff\xfe"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.engine.SendNative(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}

	_, err := f.engine.SendFungible(ctx, SendInput{Caller: alice, AssetID: "gold", To: bob, Amount: 1, Note: "x\x00"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.engine.SendFungible(ctx, SendInput{Caller: alice, AssetID: "unobtainium", To: bob, Amount: 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	native, _ := f.engine.BalanceNative(ctx)
	gold, _ := f.engine.BalanceOf(ctx, "gold")
	assert.EqualValues(t, 10, native)
	assert.EqualValues(t, 10, gold)
	_, err = f.engine.BalanceOf(ctx, "unobtainium")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestLedgerGetOutOfRange(t *testing.T) {
	f := newFixture(t, 10, 0)
	_, err := f.engine.LedgerGet(context.Background(), 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, "INDEX_OUT_OF_RANGE", Code(err))
}

func TestLedgerAllIsSnapshot(t *testing.T) {
	f := newFixture(t, 10, 0)
	ctx := context.Background()
	_, err := f.engine.SendNative(ctx, SendInput{Caller: alice, To: bob, Amount: 1})
	require.NoError(t, err)

	all, err := f.engine.LedgerAll(ctx)
	require.NoError(t, err)
	all[0].Amount = 999

	rec, err := f.engine.LedgerGet(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rec.Amount)
}

func TestSinkFailureKeepsCommittedState(t *testing.T) {
	f := newFixture(t, 10, 0)
	f.sink.err = errors.New("bus down")
	ctx := context.Background()

	require.NoError(t, f.engine.AddOwner(ctx, alice, bob))
	_, err := f.engine.SendNative(ctx, SendInput{Caller: alice, To: bob, Amount: 2})
	require.NoError(t, err)

	assert.True(t, f.engine.IsOwner(bob))
	n, _ := f.engine.LedgerLength(ctx)
	assert.EqualValues(t, 1, n)
}

type failingLedger struct {
	ledger.Ledger
}

func (failingLedger) Append(context.Context, ledger.Record) (ledger.Record, error) {
	return ledger.Record{}, errors.New("disk full")
}

func TestLedgerFailureAfterTransferIsInternal(t *testing.T) {
	f := newFixture(t, 10, 0, func(d *Deps) { d.Ledger = failingLedger{Ledger: ledger.NewInMemory()} })

	_, err := f.engine.SendNative(context.Background(), SendInput{Caller: alice, To: bob, Amount: 3})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, "INTERNAL", Code(err))
	assert.Empty(t, f.sink.kinds())
}

type failingOwnerStore struct {
	OwnerStore
}

func (failingOwnerStore) Add(context.Context, Owner) error { return errors.New("db down") }

func (failingOwnerStore) Remove(context.Context, common.Address) error {
	return errors.New("db down")
}

func TestOwnerStoreFailureLeavesSetUnchanged(t *testing.T) {
	store := NewMemoryOwnerStore()
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, Owner{Principal: alice, AddedAt: time.Now()}))
	require.NoError(t, store.Add(ctx, Owner{Principal: bob, AddedAt: time.Now()}))

	f := newFixture(t, 0, 0, func(d *Deps) { d.Owners = failingOwnerStore{OwnerStore: store} })

	assert.Error(t, f.engine.AddOwner(ctx, alice, carol))
	assert.Error(t, f.engine.RemoveOwner(ctx, alice, bob))
	assert.ElementsMatch(t, []common.Address{alice, bob}, principals(f.engine.Owners()))
	assert.Empty(t, f.sink.kinds())
}

func TestCode(t *testing.T) {
	cases := map[error]string{
		nil:                    "",
		ErrUnauthorized:        "UNAUTHORIZED",
		ErrAlreadyOwner:        "ALREADY_OWNER",
		ErrNotAnOwner:          "NOT_AN_OWNER",
		ErrLastOwner:           "LAST_OWNER",
		ErrInsufficientBalance: "INSUFFICIENT_BALANCE",
		ErrTransferFailed:      "TRANSFER_FAILED",
		ErrIndexOutOfRange:     "INDEX_OUT_OF_RANGE",
		ErrInvalidArgument:     "INVALID_ARGUMENT",
		errors.New("boom"):     "INTERNAL",
	}
	for err, want := range cases {
		assert.Equal(t, want, Code(err))
	}
}

func TestParsePrincipal(t *testing.T) {
	p, err := ParsePrincipal(" 0x00000000000000000000000000000000000A11CE ")
	require.NoError(t, err)
	assert.Equal(t, alice, p)

	for _, bad := range []string{"", "a11ce", "0x1234", "00000000000000000000000000000000000a11ce", "0x0000000000000000000000000000000000000000"} {
		_, err := ParsePrincipal(bad)
		assert.ErrorIs(t, err, ErrInvalidArgument, bad)
	}
}

func TestConcurrentOwnerRemovalKeepsOneOwner(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t, 0, 0)
		ctx := context.Background()
		require.NoError(t, f.engine.AddOwner(ctx, alice, bob))

		var (
			wg   sync.WaitGroup
			errs = make([]error, 2)
		)
		wg.Add(2)
		go func() { defer wg.Done(); errs[0] = f.engine.RemoveOwner(ctx, alice, bob) }()
		go func() { defer wg.Done(); errs[1] = f.engine.RemoveOwner(ctx, bob, alice) }()
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, ErrUnauthorized, "the loser is no longer an owner")
		}
		require.Equal(t, 1, ok)
		require.Equal(t, 1, f.engine.OwnerCount())

		persisted, err := f.ownerRepo.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, principals(f.engine.Owners()), principals(persisted))
	}
}

// hungLedger models a database that never answers: Append returns only
// when its context ends.
type hungLedger struct {
	ledger.Ledger
}

func (hungLedger) Append(ctx context.Context, _ ledger.Record) (ledger.Record, error) {
	<-ctx.Done()
	return ledger.Record{}, ctx.Err()
}

type hungOwnerStore struct {
	OwnerStore
}

func (hungOwnerStore) Add(ctx context.Context, _ Owner) error {
	<-ctx.Done()
	return ctx.Err()
}

func (hungOwnerStore) Remove(ctx context.Context, _ common.Address) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHungLedgerReleasesWriterLock(t *testing.T) {
	f := newFixture(t, 10, 0, func(d *Deps) {
		d.Ledger = hungLedger{Ledger: ledger.NewInMemory()}
		d.StoreTimeout = 100 * time.Millisecond
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.SendNative(context.Background(), SendInput{Caller: alice, To: bob, Amount: 1})
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, "INTERNAL", Code(err))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return after the store deadline")
	}

	reads := make(chan bool, 1)
	go func() { reads <- f.engine.IsOwner(alice) }()
	select {
	case isOwner := <-reads:
		assert.True(t, isOwner)
	case <-time.After(time.Second):
		t.Fatal("reads still blocked after a timed out append")
	}
	assert.Empty(t, f.sink.kinds())
}

func TestHungOwnerStoreLeavesSetUnchanged(t *testing.T) {
	store := NewMemoryOwnerStore()
	ctx := context.Background()
	require.NoError(t, store.Add(ctx, Owner{Principal: alice, AddedAt: time.Now()}))
	require.NoError(t, store.Add(ctx, Owner{Principal: bob, AddedAt: time.Now()}))

	f := newFixture(t, 0, 0, func(d *Deps) {
		d.Owners = hungOwnerStore{OwnerStore: store}
		d.StoreTimeout = 50 * time.Millisecond
	})

	start := time.Now()
	assert.ErrorIs(t, f.engine.AddOwner(ctx, alice, carol), context.DeadlineExceeded)
	assert.ErrorIs(t, f.engine.RemoveOwner(ctx, alice, bob), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.ElementsMatch(t, []common.Address{alice, bob}, principals(f.engine.Owners()))
	assert.Empty(t, f.sink.kinds())
}
