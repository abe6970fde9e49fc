package service

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/oracle"
	"github.com/eigerco/raffle/internal/raffle"
	"github.com/eigerco/raffle/internal/store"
)

var (
	// ErrOnlyCoordinator is returned when anyone but the oracle operator fulfills.
	ErrOnlyCoordinator = errors.New("service: only the coordinator can fulfill")
	ErrFaucetDisabled  = errors.New("service: deposits are disabled")
)

// Fulfiller is the coordinator side the service forwards remote fulfillments to.
type Fulfiller interface {
	FulfillWithWords(ctx context.Context, id raffle.RequestID, words []*big.Int) error
	Pending() []oracle.Request
}

// Status is everything a client needs to render the round.
type Status struct {
	State          raffle.State
	Players        int
	Pool           uint64
	EntranceFee    uint64
	Interval       time.Duration
	LastTimestamp  time.Time
	RecentWinner   crypto.Address
	PendingRequest raffle.RequestID
	Generation     uint64
	UpkeepNeeded   bool
	Escrow         crypto.Address
}

// Service puts accounts in front of the raffle: entries are paid out of the
// player's balance into escrow and the winner is paid out of escrow.
type Service struct {
	raffle    *raffle.Raffle
	accounts  *store.Accounts
	escrow    *store.Escrow
	fulfiller Fulfiller
	oracleKey ed25519.PublicKey
	faucet    bool
	log       zerolog.Logger
}

type Option func(*Service)

// WithOracleKey allows remote fulfillments signed by key. Without it every
// remote fulfillment is refused.
func WithOracleKey(key ed25519.PublicKey) Option {
	return func(s *Service) {
		s.oracleKey = key
	}
}

// WithFaucet lets Deposit credit accounts out of nothing. Only for development
// and test deployments.
func WithFaucet(enabled bool) Option {
	return func(s *Service) {
		s.faucet = enabled
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

func New(r *raffle.Raffle, accounts *store.Accounts, escrow *store.Escrow, fulfiller Fulfiller, opts ...Option) *Service {
	s := &Service{
		raffle:    r,
		accounts:  accounts,
		escrow:    escrow,
		fulfiller: fulfiller,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enter moves amount from the player into escrow and enters the raffle. The
// payment is refunded when the raffle rejects the entry.
func (s *Service) Enter(ctx context.Context, player crypto.Address, amount uint64) (int, error) {
	if err := s.escrow.Collect(player, amount); err != nil {
		return 0, fmt.Errorf("collect entrance fee: %w", err)
	}
	index, err := s.raffle.Enter(ctx, player, amount)
	if err != nil {
		if refundErr := s.escrow.Refund(player, amount); refundErr != nil {
			s.log.Error().Err(refundErr).Stringer("player", player).Uint64("amount", amount).Msg("refund failed")
			return 0, errors.Join(err, fmt.Errorf("refund: %w", refundErr))
		}
		return 0, err
	}
	return index, nil
}

// Deposit funds addr when the faucet is enabled.
func (s *Service) Deposit(addr crypto.Address, amount uint64) error {
	if !s.faucet {
		return ErrFaucetDisabled
	}
	return s.accounts.Deposit(addr, amount)
}

func (s *Service) Balance(addr crypto.Address) (uint64, error) {
	return s.accounts.Balance(addr)
}

func (s *Service) Player(index int) (crypto.Address, error) {
	return s.raffle.Player(index)
}

func (s *Service) CheckUpkeep(checkData []byte) (bool, []byte) {
	return s.raffle.CheckUpkeep(checkData)
}

func (s *Service) PerformUpkeep(ctx context.Context, performData []byte) (raffle.RequestID, error) {
	return s.raffle.PerformUpkeep(ctx, performData)
}

// FulfillRandomWords forwards a fulfillment from caller to the coordinator.
func (s *Service) FulfillRandomWords(ctx context.Context, caller ed25519.PublicKey, id raffle.RequestID, words []*big.Int) error {
	if len(s.oracleKey) == 0 || !bytes.Equal(caller, s.oracleKey) {
		s.log.Warn().Stringer("caller", crypto.AddressFromPublicKey(caller)).Uint64("request_id", uint64(id)).Msg("fulfillment refused")
		return ErrOnlyCoordinator
	}
	return s.fulfiller.FulfillWithWords(ctx, id, words)
}

func (s *Service) PendingRequests() []oracle.Request {
	return s.fulfiller.Pending()
}

func (s *Service) Status() Status {
	round := s.raffle.Snapshot()
	needed, _ := s.raffle.CheckUpkeep(nil)
	return Status{
		State:          round.State,
		Players:        len(round.Players),
		Pool:           round.Pool,
		EntranceFee:    s.raffle.EntranceFee(),
		Interval:       s.raffle.Interval(),
		LastTimestamp:  round.LastTimestamp,
		RecentWinner:   round.RecentWinner,
		PendingRequest: round.PendingRequest,
		Generation:     round.Generation,
		UpkeepNeeded:   needed,
		Escrow:         s.escrow.Address(),
	}
}
