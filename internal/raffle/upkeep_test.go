package raffle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckUpkeep(t *testing.T) {
	t.Run("false if nobody entered", func(t *testing.T) {
		f := newFixture(t)
		f.clock.Advance(testInterval + time.Second)

		needed, performData := f.raffle.CheckUpkeep(nil)
		assert.False(t, needed)
		assert.Empty(t, performData)
	})

	t.Run("false if the round is not open", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t, address(1))
		_, err := f.raffle.PerformUpkeep(context.Background(), nil)
		require.NoError(t, err)

		needed, _ := f.raffle.CheckUpkeep([]byte("0x"))
		assert.False(t, needed)
		assert.Equal(t, Calculating, f.raffle.State())
	})

	t.Run("false if not enough time has passed", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.raffle.Enter(context.Background(), address(1), testFee)
		require.NoError(t, err)
		f.clock.Advance(testInterval - 5*time.Second)

		needed, _ := f.raffle.CheckUpkeep(nil)
		assert.False(t, needed)
	})

	t.Run("true if time passed, has players, balance and is open", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t, address(1))

		needed, performData := f.raffle.CheckUpkeep(nil)
		assert.True(t, needed)
		assert.Equal(t, []byte{}, performData)
	})

	t.Run("true exactly at the interval", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.raffle.Enter(context.Background(), address(1), testFee)
		require.NoError(t, err)
		f.clock.Advance(testInterval)

		assert.True(t, f.raffle.IsUpkeepNeeded(f.clock.Now()))
		assert.False(t, f.raffle.IsUpkeepNeeded(f.clock.Now().Add(-time.Nanosecond)))
	})
}

func TestUpkeepConditions(t *testing.T) {
	f := newFixture(t)
	start := f.clock.Now()

	c := f.raffle.UpkeepConditions(start)
	assert.Equal(t, UpkeepConditions{IsOpen: true}, c)
	assert.False(t, c.Needed())

	c = f.raffle.UpkeepConditions(start.Add(testInterval))
	assert.Equal(t, UpkeepConditions{TimePassed: true, IsOpen: true}, c)

	_, err := f.raffle.Enter(context.Background(), address(1), testFee)
	require.NoError(t, err)
	c = f.raffle.UpkeepConditions(start)
	assert.Equal(t, UpkeepConditions{IsOpen: true, HasBalance: true, HasPlayers: true}, c)

	c = f.raffle.UpkeepConditions(start.Add(testInterval))
	assert.True(t, c.Needed())
}

func TestUpkeepPredicateIsConjunction(t *testing.T) {
	later := deployTime.Add(testInterval)
	tests := []struct {
		name  string
		round Round
		now   time.Time
		want  bool
	}{
		{"all hold", Round{Players: []Address{address(1)}, Pool: testFee, LastTimestamp: deployTime}, later, true},
		{"time not elapsed", Round{Players: []Address{address(1)}, Pool: testFee, LastTimestamp: deployTime}, deployTime, false},
		{"not open", Round{State: Calculating, PendingRequest: 1, Players: []Address{address(1)}, Pool: testFee, LastTimestamp: deployTime}, later, false},
		{"empty pool", Round{Players: []Address{address(1)}, LastTimestamp: deployTime}, later, false},
		{"no players", Round{Pool: testFee, LastTimestamp: deployTime}, later, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.round.upkeepConditions(testInterval, tc.now).Needed())
		})
	}
}

func TestCheckUpkeepHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	f.ready(t, address(1), address(2))

	before := f.raffle.Snapshot()
	eventsBefore := len(f.events.events)
	for range 10 {
		needed, _ := f.raffle.CheckUpkeep(nil)
		require.True(t, needed)
		f.raffle.IsUpkeepNeeded(f.clock.Now())
	}

	assert.Equal(t, before, f.raffle.Snapshot())
	assert.Equal(t, 0, f.coordinator.count())
	assert.Len(t, f.events.events, eventsBefore)
}

func TestPerformUpkeep(t *testing.T) {
	t.Run("runs when check upkeep is true", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t, address(1))

		id, err := f.raffle.PerformUpkeep(context.Background(), nil)
		require.NoError(t, err)
		assert.Greater(t, uint64(id), uint64(0))
	})

	t.Run("reverts when check upkeep is false", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.raffle.PerformUpkeep(context.Background(), []byte("0x"))
		require.ErrorIs(t, err, ErrUpkeepNotNeeded)
		assert.True(t, IsUpkeepNotNeeded(err))

		var notNeeded *UpkeepNotNeededError
		require.True(t, errors.As(err, &notNeeded))
		assert.Equal(t, UpkeepNotNeededError{Balance: 0, Players: 0, State: Open}, *notNeeded)
		assert.Equal(t, 0, f.coordinator.count())
	})

	t.Run("updates the state and records the request id", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t, address(1))

		id, err := f.raffle.PerformUpkeep(context.Background(), nil)
		require.NoError(t, err)

		assert.Equal(t, Calculating, f.raffle.State())
		assert.Equal(t, id, f.raffle.PendingRequest())
		require.Equal(t, 1, f.coordinator.count())
		assert.Equal(t, RandomWordsRequest{
			SubscriptionID:       1,
			RequestConfirmations: DefaultRequestConfirmations,
			CallbackGasLimit:     500000,
			NumWords:             DefaultNumWords,
		}, f.coordinator.requests[0])
		assert.Equal(t, WinnerRequested{RequestID: id}, f.events.events[len(f.events.events)-1])
	})

	t.Run("second call without fulfillment is refused", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t, address(1))

		first, err := f.raffle.PerformUpkeep(context.Background(), nil)
		require.NoError(t, err)

		_, err = f.raffle.PerformUpkeep(context.Background(), nil)
		require.ErrorIs(t, err, ErrUpkeepNotNeeded)

		var notNeeded *UpkeepNotNeededError
		require.ErrorAs(t, err, &notNeeded)
		assert.Equal(t, Calculating, notNeeded.State)
		assert.Equal(t, 1, notNeeded.Players)
		assert.Equal(t, testFee, notNeeded.Balance)

		assert.Equal(t, 1, f.coordinator.count())
		assert.Equal(t, first, f.raffle.PendingRequest())
	})

	t.Run("coordinator failure keeps the round open", func(t *testing.T) {
		f := newFixture(t)
		f.ready(t, address(1))
		f.coordinator.err = assert.AnError

		_, err := f.raffle.PerformUpkeep(context.Background(), nil)
		require.ErrorIs(t, err, ErrRandomnessRequest)
		require.ErrorIs(t, err, assert.AnError)

		assert.Equal(t, Open, f.raffle.State())
		assert.Equal(t, RequestID(0), f.raffle.PendingRequest())

		f.coordinator.err = nil
		_, err = f.raffle.PerformUpkeep(context.Background(), nil)
		require.NoError(t, err)
	})

	t.Run("fails iff the predicate is false at the same instant", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.raffle.Enter(context.Background(), address(1), testFee)
		require.NoError(t, err)

		for _, step := range []time.Duration{0, testInterval / 2, testInterval / 2} {
			f.clock.Advance(step)
			needed := f.raffle.IsUpkeepNeeded(f.clock.Now())
			_, err := f.raffle.PerformUpkeep(context.Background(), nil)
			assert.Equal(t, needed, err == nil, "after %s", step)
		}
		assert.Equal(t, Calculating, f.raffle.State())
	})
}
