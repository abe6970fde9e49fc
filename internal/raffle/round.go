package raffle

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/eigerco/raffle/internal/crypto"
)

type Address = crypto.Address

// RequestID correlates a randomness request with its fulfillment. Zero is never issued.
type RequestID uint64

const (
	DefaultRequestConfirmations = 3
	DefaultNumWords             = 1
)

// Config is fixed for the lifetime of a deployment.
type Config struct {
	EntranceFee uint64
	// Interval is the minimum time between round resolutions.
	Interval time.Duration

	// Randomness request parameters, forwarded to the coordinator untouched.
	KeyHash              crypto.Hash
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
}

func (c Config) Validate() error {
	if c.EntranceFee == 0 {
		return fmt.Errorf("%w: entrance fee must be positive", ErrInvalidConfig)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if c.NumWords == 0 {
		return fmt.Errorf("%w: at least one random word is required", ErrInvalidConfig)
	}
	return nil
}

// RandomWordsRequest is what the raffle asks the coordinator for.
type RandomWordsRequest struct {
	KeyHash              crypto.Hash
	SubscriptionID       uint64
	RequestConfirmations uint16
	CallbackGasLimit     uint32
	NumWords             uint32
}

// RandomWordsRequest builds the request parameters of this deployment.
func (c Config) RandomWordsRequest() RandomWordsRequest {
	return RandomWordsRequest{
		KeyHash:              c.KeyHash,
		SubscriptionID:       c.SubscriptionID,
		RequestConfirmations: c.RequestConfirmations,
		CallbackGasLimit:     c.CallbackGasLimit,
		NumWords:             c.NumWords,
	}
}

// Coordinator is the randomness oracle. It must return immediately; the random
// words arrive later through FulfillRandomWords.
type Coordinator interface {
	RequestRandomWords(ctx context.Context, req RandomWordsRequest) (RequestID, error)
}

// Consumer is the callback side handed to a coordinator.
type Consumer interface {
	FulfillRandomWords(ctx context.Context, id RequestID, words []*big.Int) error
}

// Bank pays the pool out to the winner.
type Bank interface {
	Transfer(ctx context.Context, to Address, amount uint64) error
}

// Store keeps a durable copy of the round.
type Store interface {
	SaveRound(Round) error
}

// Settler is a Store that can pay the winner and save the settled round as one
// atomic write. When the configured Store implements it, fulfillment uses
// SettleRound instead of Bank.Transfer followed by SaveRound.
type Settler interface {
	SettleRound(ctx context.Context, winner Address, amount uint64, next Round) error
}

// Round is the single live round. It cycles OPEN -> CALCULATING -> OPEN forever.
type Round struct {
	State   State
	Players []Address
	Pool    uint64
	// LastTimestamp is the deployment time until the first winner is picked.
	LastTimestamp time.Time
	// PendingRequest is zero iff State is Open.
	PendingRequest RequestID
	RecentWinner   Address
	// Generation counts completed rounds.
	Generation uint64
	// LastRequest is the most recent request id issued to this deployment. It
	// survives settlement so ids are never reused.
	LastRequest RequestID
}

// NewRound returns the initial round of a deployment.
func NewRound(now time.Time) Round {
	return Round{State: Open, LastTimestamp: now}
}

func (r Round) Validate() error {
	if !r.State.Valid() {
		return fmt.Errorf("%w: unknown state %d", ErrInvalidRound, r.State)
	}
	if (r.State == Open) != (r.PendingRequest == 0) {
		return fmt.Errorf("%w: state %s with pending request %d", ErrInvalidRound, r.State, r.PendingRequest)
	}
	if r.PendingRequest > r.LastRequest {
		return fmt.Errorf("%w: pending request %d after last issued %d", ErrInvalidRound, r.PendingRequest, r.LastRequest)
	}
	if r.State == Calculating && len(r.Players) == 0 {
		return fmt.Errorf("%w: calculating without players", ErrInvalidRound)
	}
	return nil
}

func (r Round) clone() Round {
	c := r
	c.Players = append([]Address(nil), r.Players...)
	return c
}
