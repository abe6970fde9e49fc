package raffle

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientPayment is returned when an entry pays less than the entrance fee.
	ErrInsufficientPayment = errors.New("raffle: not enough paid to enter")

	// ErrRoundNotOpen is returned when an entry is attempted while a winner is being calculated.
	ErrRoundNotOpen = errors.New("raffle: round is not open")

	// ErrUpkeepNotNeeded is returned by PerformUpkeep when the upkeep predicate is false.
	// The concrete error is an *UpkeepNotNeededError.
	ErrUpkeepNotNeeded = errors.New("raffle: upkeep not needed")

	// ErrUnknownRequest is returned when a fulfillment does not match the single
	// pending randomness request.
	ErrUnknownRequest = errors.New("raffle: unknown randomness request")

	// ErrPayoutFailed is returned when the pool could not be transferred to the winner.
	// The round is left untouched in CALCULATING.
	ErrPayoutFailed = errors.New("raffle: payout to winner failed")

	ErrPoolOverflow          = errors.New("raffle: pool overflow")
	ErrNoRandomWords         = errors.New("raffle: fulfillment carries no random words")
	ErrRandomnessRequest     = errors.New("raffle: randomness request failed")
	ErrPlayerIndexOutOfRange = errors.New("raffle: player index out of range")
	ErrInvalidConfig         = errors.New("raffle: invalid config")
	ErrInvalidRound          = errors.New("raffle: invalid round")
	ErrPersist               = errors.New("raffle: persist round")
)

// UpkeepNotNeededError reports the round values at the moment upkeep was refused.
type UpkeepNotNeededError struct {
	Balance uint64
	Players int
	State   State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("%s (balance=%d, players=%d, state=%s)", ErrUpkeepNotNeeded, e.Balance, e.Players, e.State)
}

func (e *UpkeepNotNeededError) Is(target error) bool {
	return target == ErrUpkeepNotNeeded
}
