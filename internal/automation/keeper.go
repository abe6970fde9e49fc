package automation

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/eigerco/raffle/internal/raffle"
)

const DefaultPollInterval = time.Second

// Upkeeper is the automation-compatible side of a contract.
type Upkeeper interface {
	CheckUpkeep(checkData []byte) (upkeepNeeded bool, performData []byte)
	PerformUpkeep(ctx context.Context, performData []byte) (raffle.RequestID, error)
}

// Keeper polls an Upkeeper and performs upkeep whenever the check says it is needed.
type Keeper struct {
	target       Upkeeper
	pollInterval time.Duration
	checkData    []byte
	onPerformed  func(raffle.RequestID)
	log          zerolog.Logger
}

type Option func(*Keeper)

func WithPollInterval(d time.Duration) Option {
	return func(k *Keeper) {
		k.pollInterval = d
	}
}

func WithCheckData(data []byte) Option {
	return func(k *Keeper) {
		k.checkData = data
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(k *Keeper) {
		k.log = l
	}
}

// OnPerformed is called with the request id after every successful upkeep.
func OnPerformed(fn func(raffle.RequestID)) Option {
	return func(k *Keeper) {
		k.onPerformed = fn
	}
}

func NewKeeper(target Upkeeper, opts ...Option) *Keeper {
	k := &Keeper{
		target:       target,
		pollInterval: DefaultPollInterval,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.pollInterval <= 0 {
		k.pollInterval = DefaultPollInterval
	}
	return k
}

// Run polls until ctx is done.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.pollInterval)
	defer ticker.Stop()

	k.log.Info().Dur("poll_interval", k.pollInterval).Msg("keeper started")
	for {
		select {
		case <-ctx.Done():
			k.log.Info().Msg("keeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := k.Tick(ctx); err != nil {
				k.log.Warn().Err(err).Msg("upkeep failed")
			}
		}
	}
}

// Tick runs one check and, if needed, one upkeep. It reports whether upkeep was
// performed. Losing the race to another caller is not an error.
func (k *Keeper) Tick(ctx context.Context) (bool, error) {
	needed, performData := k.target.CheckUpkeep(k.checkData)
	if !needed {
		return false, nil
	}

	id, err := k.target.PerformUpkeep(ctx, performData)
	if err != nil {
		if errors.Is(err, raffle.ErrUpkeepNotNeeded) {
			k.log.Debug().Err(err).Msg("upkeep no longer needed")
			return false, nil
		}
		return false, err
	}

	k.log.Info().Uint64("request_id", uint64(id)).Msg("upkeep performed")
	if k.onPerformed != nil {
		k.onPerformed(id)
	}
	return true, nil
}
