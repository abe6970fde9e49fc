package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/raffle"
	"github.com/eigerco/raffle/internal/safemath"
	"github.com/eigerco/raffle/pkg/db"
	"github.com/eigerco/raffle/pkg/db/pebble"
)

// Accounts keeps account balances. Every balance change goes through a batch so
// a move is never half applied.
type Accounts struct {
	db  db.KVStore
	log zerolog.Logger
	mu  sync.Mutex
}

func NewAccounts(db db.KVStore, log zerolog.Logger) *Accounts {
	return &Accounts{db: db, log: log}
}

// Balance returns zero for unknown accounts.
func (a *Accounts) Balance(addr crypto.Address) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance(addr)
}

// Deposit credits amount to addr out of thin air. Used to fund accounts.
func (a *Accounts) Deposit(addr crypto.Address, amount uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.balance(addr)
	if err != nil {
		return err
	}
	next, ok := safemath.Add64(current, amount)
	if !ok {
		return ErrBalanceOverflow
	}
	if err := a.db.Put(makeKey(prefixBalance, addr[:]), encodeBalance(next)); err != nil {
		return fmt.Errorf("put balance: %w", err)
	}
	return nil
}

// Move transfers amount from one account to another atomically.
func (a *Accounts) Move(from, to crypto.Address, amount uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	batch := a.db.NewBatch()
	defer batch.Close() //nolint:errcheck

	if err := a.stageMove(batch, from, to, amount); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf(ErrFailedBatchCommit, err)
	}

	a.log.Debug().Stringer("from", from).Stringer("to", to).Uint64("amount", amount).Msg("funds moved")
	return nil
}

// stageMove writes the balances of a move into batch. The caller holds a.mu
// until the batch is committed.
func (a *Accounts) stageMove(batch db.Batch, from, to crypto.Address, amount uint64) error {
	rejecting, err := a.rejecting(to)
	if err != nil {
		return err
	}
	if rejecting {
		return fmt.Errorf("%w: %s", ErrRecipientRejected, to)
	}
	if from == to {
		return nil
	}

	fromBalance, err := a.balance(from)
	if err != nil {
		return err
	}
	toBalance, err := a.balance(to)
	if err != nil {
		return err
	}
	fromNext, ok := safemath.Sub64(fromBalance, amount)
	if !ok {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, from, fromBalance, amount)
	}
	toNext, ok := safemath.Add64(toBalance, amount)
	if !ok {
		return ErrBalanceOverflow
	}

	if err := batch.Put(makeKey(prefixBalance, from[:]), encodeBalance(fromNext)); err != nil {
		return fmt.Errorf("put balance: %w", err)
	}
	if err := batch.Put(makeKey(prefixBalance, to[:]), encodeBalance(toNext)); err != nil {
		return fmt.Errorf("put balance: %w", err)
	}
	return nil
}

// SetRejecting marks addr as unable to receive funds.
func (a *Accounts) SetRejecting(addr crypto.Address, rejecting bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := makeKey(prefixRejecting, addr[:])
	if rejecting {
		return a.db.Put(key, []byte{1})
	}
	return a.db.Delete(key)
}

// Escrow returns a raffle.Bank that pays out of the escrow account.
func (a *Accounts) Escrow(escrow crypto.Address) *Escrow {
	return &Escrow{accounts: a, address: escrow}
}

func (a *Accounts) balance(addr crypto.Address) (uint64, error) {
	bytes, err := a.db.Get(makeKey(prefixBalance, addr[:]))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if len(bytes) != 8 {
		return 0, fmt.Errorf("balance of %s has %d bytes", addr, len(bytes))
	}
	return binary.BigEndian.Uint64(bytes), nil
}

func (a *Accounts) rejecting(addr crypto.Address) (bool, error) {
	_, err := a.db.Get(makeKey(prefixRejecting, addr[:]))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get rejecting flag: %w", err)
	}
	return true, nil
}

func encodeBalance(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

var _ raffle.Bank = (*Escrow)(nil)

// Escrow holds entry fees until they are paid to a winner.
type Escrow struct {
	accounts *Accounts
	address  crypto.Address
}

func (e *Escrow) Address() crypto.Address {
	return e.address
}

// Collect moves an entry fee from the player into escrow.
func (e *Escrow) Collect(from crypto.Address, amount uint64) error {
	return e.accounts.Move(from, e.address, amount)
}

// Refund returns funds to a player whose entry was rejected.
func (e *Escrow) Refund(to crypto.Address, amount uint64) error {
	return e.accounts.Move(e.address, to, amount)
}

func (e *Escrow) Transfer(_ context.Context, to crypto.Address, amount uint64) error {
	return e.accounts.Move(e.address, to, amount)
}

func (e *Escrow) Balance() (uint64, error) {
	return e.accounts.Balance(e.address)
}
