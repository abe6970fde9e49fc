package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/raffle/internal/raffle"
)

type mockUpkeeper struct {
	mock.Mock
}

func (m *mockUpkeeper) CheckUpkeep(checkData []byte) (bool, []byte) {
	args := m.Called(checkData)
	return args.Bool(0), args.Get(1).([]byte)
}

func (m *mockUpkeeper) PerformUpkeep(ctx context.Context, performData []byte) (raffle.RequestID, error) {
	args := m.Called(ctx, performData)
	return args.Get(0).(raffle.RequestID), args.Error(1)
}

func TestTick(t *testing.T) {
	t.Run("skips when not needed", func(t *testing.T) {
		u := &mockUpkeeper{}
		u.On("CheckUpkeep", []byte(nil)).Return(false, []byte{})

		performed, err := NewKeeper(u).Tick(context.Background())
		require.NoError(t, err)
		assert.False(t, performed)
		u.AssertNotCalled(t, "PerformUpkeep", mock.Anything, mock.Anything)
	})

	t.Run("performs when needed", func(t *testing.T) {
		u := &mockUpkeeper{}
		u.On("CheckUpkeep", []byte("data")).Return(true, []byte{})
		u.On("PerformUpkeep", mock.Anything, []byte{}).Return(raffle.RequestID(3), nil)

		var got raffle.RequestID
		k := NewKeeper(u, WithCheckData([]byte("data")), OnPerformed(func(id raffle.RequestID) { got = id }))
		performed, err := k.Tick(context.Background())
		require.NoError(t, err)
		assert.True(t, performed)
		assert.Equal(t, raffle.RequestID(3), got)
		u.AssertExpectations(t)
	})

	t.Run("lost race is not an error", func(t *testing.T) {
		u := &mockUpkeeper{}
		u.On("CheckUpkeep", mock.Anything).Return(true, []byte{})
		u.On("PerformUpkeep", mock.Anything, mock.Anything).
			Return(raffle.RequestID(0), &raffle.UpkeepNotNeededError{State: raffle.Calculating})

		performed, err := NewKeeper(u).Tick(context.Background())
		require.NoError(t, err)
		assert.False(t, performed)
	})

	t.Run("other errors are returned", func(t *testing.T) {
		u := &mockUpkeeper{}
		u.On("CheckUpkeep", mock.Anything).Return(true, []byte{})
		u.On("PerformUpkeep", mock.Anything, mock.Anything).Return(raffle.RequestID(0), assert.AnError)

		performed, err := NewKeeper(u).Tick(context.Background())
		require.ErrorIs(t, err, assert.AnError)
		assert.False(t, performed)
	})
}

type stubCoordinator struct {
	mu  sync.Mutex
	ids []raffle.RequestID
}

func (c *stubCoordinator) RequestRandomWords(context.Context, raffle.RandomWordsRequest) (raffle.RequestID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := raffle.RequestID(len(c.ids) + 1)
	c.ids = append(c.ids, id)
	return id, nil
}

func (c *stubCoordinator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

type nopBank struct{}

func (nopBank) Transfer(context.Context, raffle.Address, uint64) error { return nil }

func TestRunPerformsUpkeepOnce(t *testing.T) {
	start := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
	coordinator := &stubCoordinator{}
	r, err := raffle.New(raffle.Config{EntranceFee: 1, Interval: time.Minute, NumWords: 1}, coordinator, nopBank{},
		raffle.WithClock(func() time.Time { return start.Add(time.Hour) }),
		raffle.WithRound(raffle.NewRound(start)))
	require.NoError(t, err)
	_, err = r.Enter(context.Background(), raffle.Address{1}, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- NewKeeper(r, WithPollInterval(time.Millisecond)).Run(ctx)
	}()

	require.Eventually(t, func() bool { return r.State() == raffle.Calculating }, 5*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// the round is calculating so later polls never request again
	assert.Equal(t, 1, coordinator.count())
}
