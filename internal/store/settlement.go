package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/raffle"
)

var (
	_ raffle.Store   = (*Settlement)(nil)
	_ raffle.Settler = (*Settlement)(nil)
)

var ErrSeparateStores = errors.New("round store and escrow use different databases")

// Settlement is the round store of a raffle whose pool is held in escrow. The
// payout to the winner and the settled round go into the same batch, so a
// stored round is either still CALCULATING with a funded escrow or settled
// with the winner paid.
type Settlement struct {
	*Raffle
	escrow *Escrow
}

func NewSettlement(rounds *Raffle, escrow *Escrow) (*Settlement, error) {
	if rounds.db != escrow.accounts.db {
		return nil, ErrSeparateStores
	}
	return &Settlement{Raffle: rounds, escrow: escrow}, nil
}

func (s *Settlement) SettleRound(_ context.Context, winner crypto.Address, amount uint64, next raffle.Round) error {
	accounts := s.escrow.accounts
	accounts.mu.Lock()
	defer accounts.mu.Unlock()

	batch := s.db.NewBatch()
	defer batch.Close() //nolint:errcheck

	if err := accounts.stageMove(batch, s.escrow.address, winner, amount); err != nil {
		return err
	}
	if err := s.stageRound(batch, next); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf(ErrFailedBatchCommit, err)
	}

	s.log.Debug().
		Stringer("winner", winner).
		Uint64("amount", amount).
		Uint64("generation", next.Generation).
		Msg("round settled")
	return nil
}
