package raffle

import (
	"context"
	"fmt"
	"math/big"
)

var _ Consumer = (*Raffle)(nil)

// FulfillRandomWords resolves the round for the pending request id. The pool is
// paid before anything is reset; if the payout fails the round stays in
// CALCULATING with the same pending id so the fulfillment can be retried. With a
// Settler store the payout and the settled round are written together.
func (r *Raffle) FulfillRandomWords(ctx context.Context, id RequestID, words []*big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == 0 || id != r.round.PendingRequest {
		return fmt.Errorf("%w: %d", ErrUnknownRequest, id)
	}
	if len(words) == 0 || words[0] == nil {
		return ErrNoRandomWords
	}

	winner := r.round.Players[winnerIndex(words[0], len(r.round.Players))]
	amount := r.round.Pool

	if settler, ok := r.store.(Settler); ok {
		next := r.round.settle(winner, r.now())
		if err := settler.SettleRound(ctx, winner, amount, next); err != nil {
			r.log.Error().Err(err).Stringer("winner", winner).Uint64("amount", amount).Uint64("request_id", uint64(id)).Msg("settlement failed")
			return fmt.Errorf("%w: %w", ErrPayoutFailed, err)
		}
		r.round = next
		r.picked(winner, amount, id)
		return nil
	}

	if err := r.bank.Transfer(ctx, winner, amount); err != nil {
		r.log.Error().Err(err).Stringer("winner", winner).Uint64("amount", amount).Uint64("request_id", uint64(id)).Msg("payout failed")
		return fmt.Errorf("%w: %w", ErrPayoutFailed, err)
	}

	// The payout is final from here on, so the in-memory round always advances.
	next := r.round.settle(winner, r.now())
	persistErr := r.persist(next)
	r.round = next

	if persistErr != nil {
		r.log.Error().Err(persistErr).Uint64("generation", next.Generation).Msg("round settled but not persisted")
	}
	r.picked(winner, amount, id)
	return persistErr
}

func (r *Raffle) picked(winner Address, amount uint64, id RequestID) {
	r.log.Info().Stringer("winner", winner).Uint64("amount", amount).Uint64("request_id", uint64(id)).Msg("winner picked")
	r.emit(WinnerPicked{Winner: winner, Amount: amount, RequestID: id})
}

// winnerIndex is word mod n.
func winnerIndex(word *big.Int, n int) int {
	idx := new(big.Int).Mod(word, big.NewInt(int64(n)))
	return int(idx.Int64())
}
