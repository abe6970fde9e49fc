package raffle

import (
	"context"
	"errors"
	"fmt"
)

// PerformUpkeep moves an eligible round to CALCULATING and asks the coordinator
// for randomness. The predicate is re-evaluated under the lock, so no entry and
// no second request can slip in between the check and the state change.
// performData is ignored.
func (r *Raffle) PerformUpkeep(ctx context.Context, performData []byte) (RequestID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.round.upkeepConditions(r.cfg.Interval, r.now()).Needed() {
		return 0, &UpkeepNotNeededError{
			Balance: r.round.Pool,
			Players: len(r.round.Players),
			State:   r.round.State,
		}
	}

	id, err := r.coordinator.RequestRandomWords(ctx, r.cfg.RandomWordsRequest())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRandomnessRequest, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: coordinator returned the zero request id", ErrRandomnessRequest)
	}
	if id <= r.round.LastRequest {
		return 0, fmt.Errorf("%w: request id %d already issued (last %d)", ErrRandomnessRequest, id, r.round.LastRequest)
	}

	next := r.round.clone()
	next.State = Calculating
	next.PendingRequest = id
	next.LastRequest = id
	if err := r.persist(next); err != nil {
		return 0, err
	}
	r.round = next

	r.log.Info().Uint64("request_id", uint64(id)).Int("players", len(next.Players)).Uint64("pool", next.Pool).Msg("winner requested")
	r.emit(WinnerRequested{RequestID: id})
	return id, nil
}

// IsUpkeepNotNeeded reports whether err is a refused upkeep.
func IsUpkeepNotNeeded(err error) bool {
	return errors.Is(err, ErrUpkeepNotNeeded)
}
