package raffle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testFee      = uint64(100)
	testInterval = 30 * time.Second
)

var (
	errRecipientRejected = errors.New("recipient cannot receive funds")
	deployTime           = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: deployTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeCoordinator struct {
	mu       sync.Mutex
	nextID   RequestID
	requests []RandomWordsRequest
	err      error
}

func (c *fakeCoordinator) RequestRandomWords(_ context.Context, req RandomWordsRequest) (RequestID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.nextID++
	c.requests = append(c.requests, req)
	return c.nextID, nil
}

func (c *fakeCoordinator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type fakeBank struct {
	mu        sync.Mutex
	balances  map[Address]uint64
	rejecting map[Address]bool
}

func newFakeBank() *fakeBank {
	return &fakeBank{balances: map[Address]uint64{}, rejecting: map[Address]bool{}}
}

func (b *fakeBank) Transfer(_ context.Context, to Address, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejecting[to] {
		return errRecipientRejected
	}
	b.balances[to] += amount
	return nil
}

func (b *fakeBank) balance(a Address) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[a]
}

func (b *fakeBank) setRejecting(a Address, v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejecting[a] = v
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveRound(r Round) error {
	args := m.Called(r)
	return args.Error(0)
}

type settlingStore struct {
	mock.Mock
}

func (m *settlingStore) SaveRound(r Round) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *settlingStore) SettleRound(_ context.Context, winner Address, amount uint64, next Round) error {
	args := m.Called(winner, amount, next)
	return args.Error(0)
}

type recorder struct {
	events []Event
}

func (r *recorder) Notify(e Event) {
	r.events = append(r.events, e)
}

type fixture struct {
	raffle      *Raffle
	clock       *fakeClock
	coordinator *fakeCoordinator
	bank        *fakeBank
	events      *recorder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clock:       newFakeClock(),
		coordinator: &fakeCoordinator{},
		bank:        newFakeBank(),
		events:      &recorder{},
	}
	opts = append([]Option{WithClock(f.clock.Now), WithListener(f.events)}, opts...)
	r, err := New(testConfig(), f.coordinator, f.bank, opts...)
	require.NoError(t, err)
	f.raffle = r
	return f
}

func testConfig() Config {
	return Config{
		EntranceFee:          testFee,
		Interval:             testInterval,
		SubscriptionID:       1,
		RequestConfirmations: DefaultRequestConfirmations,
		CallbackGasLimit:     500000,
		NumWords:             DefaultNumWords,
	}
}

func address(b byte) Address {
	var a Address
	a[0] = b
	a[len(a)-1] = b
	return a
}

// ready enters the given players with the exact fee and moves past the interval.
func (f *fixture) ready(t *testing.T, players ...Address) {
	t.Helper()
	for _, p := range players {
		_, err := f.raffle.Enter(context.Background(), p, testFee)
		require.NoError(t, err)
	}
	f.clock.Advance(testInterval + time.Second)
}

func words(v ...int64) []*big.Int {
	out := make([]*big.Int, len(v))
	for i, x := range v {
		out[i] = big.NewInt(x)
	}
	return out
}
