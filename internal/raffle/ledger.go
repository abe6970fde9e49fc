package raffle

import (
	"fmt"
	"time"

	"github.com/eigerco/raffle/internal/safemath"
)

// admit validates an entry against the round and returns the round with the
// participant appended. The receiver is not modified.
func (r Round) admit(fee uint64, participant Address, amountPaid uint64) (Round, int, error) {
	if amountPaid < fee {
		return Round{}, 0, fmt.Errorf("%w: paid %d, fee is %d", ErrInsufficientPayment, amountPaid, fee)
	}
	if r.State != Open {
		return Round{}, 0, ErrRoundNotOpen
	}
	pool, ok := safemath.Add64(r.Pool, amountPaid)
	if !ok {
		return Round{}, 0, ErrPoolOverflow
	}

	next := r.clone()
	next.Players = append(next.Players, participant)
	next.Pool = pool
	return next, len(next.Players) - 1, nil
}

// settle returns the round after the winner has been paid: players cleared,
// pool zeroed and back to Open.
func (r Round) settle(winner Address, at time.Time) Round {
	return Round{
		State:         Open,
		LastTimestamp: at,
		RecentWinner:  winner,
		Generation:    r.Generation + 1,
		LastRequest:   r.LastRequest,
	}
}
