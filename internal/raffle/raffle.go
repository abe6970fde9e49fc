package raffle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Raffle owns the live round. Enter, PerformUpkeep and FulfillRandomWords run
// one at a time; getters read a consistent snapshot.
type Raffle struct {
	mu       sync.RWMutex
	cfg      Config
	round    Round
	restored bool

	coordinator Coordinator
	bank        Bank
	store       Store
	listeners   []Listener
	now         func() time.Time
	log         zerolog.Logger
}

type Option func(*Raffle)

func WithStore(s Store) Option {
	return func(r *Raffle) {
		r.store = s
	}
}

func WithListener(l Listener) Option {
	return func(r *Raffle) {
		r.listeners = append(r.listeners, l)
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Raffle) {
		r.now = now
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Raffle) {
		r.log = l
	}
}

// WithRound resumes from a previously persisted round instead of starting a new one.
func WithRound(round Round) Option {
	return func(r *Raffle) {
		r.round = round.clone()
		r.restored = true
	}
}

func New(cfg Config, coordinator Coordinator, bank Bank, opts ...Option) (*Raffle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if coordinator == nil || bank == nil {
		return nil, fmt.Errorf("%w: coordinator and bank are required", ErrInvalidConfig)
	}
	r := &Raffle{
		cfg:         cfg,
		coordinator: coordinator,
		bank:        bank,
		now:         time.Now,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if !r.restored {
		r.round = NewRound(r.now())
	}
	if err := r.round.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Enter adds participant to the round, returning its 0-based index.
func (r *Raffle) Enter(ctx context.Context, participant Address, amountPaid uint64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, index, err := r.round.admit(r.cfg.EntranceFee, participant, amountPaid)
	if err != nil {
		return 0, err
	}
	if err := r.persist(next); err != nil {
		return 0, err
	}
	r.round = next

	r.log.Info().Stringer("player", participant).Int("index", index).Uint64("paid", amountPaid).Msg("player entered")
	r.emit(Entered{Player: participant, Index: index})
	return index, nil
}

func (r *Raffle) persist(next Round) error {
	if r.store == nil {
		return nil
	}
	if err := r.store.SaveRound(next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (r *Raffle) emit(e Event) {
	for _, l := range r.listeners {
		l.Notify(e)
	}
}

func (r *Raffle) EntranceFee() uint64 {
	return r.cfg.EntranceFee
}

func (r *Raffle) Interval() time.Duration {
	return r.cfg.Interval
}

func (r *Raffle) NumWords() uint32 {
	return r.cfg.NumWords
}

func (r *Raffle) RequestConfirmations() uint16 {
	return r.cfg.RequestConfirmations
}

func (r *Raffle) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.round.State
}

func (r *Raffle) Player(index int) (Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.round.Players) {
		return Address{}, fmt.Errorf("%w: %d of %d", ErrPlayerIndexOutOfRange, index, len(r.round.Players))
	}
	return r.round.Players[index], nil
}

func (r *Raffle) NumberOfPlayers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.round.Players)
}

func (r *Raffle) Pool() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.round.Pool
}

func (r *Raffle) RecentWinner() Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.round.RecentWinner
}

func (r *Raffle) LatestTimestamp() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.round.LastTimestamp
}

func (r *Raffle) PendingRequest() RequestID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.round.PendingRequest
}

// Snapshot returns a copy of the whole round.
func (r *Raffle) Snapshot() Round {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.round.clone()
}
