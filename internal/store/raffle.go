package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/raffle"
	"github.com/eigerco/raffle/pkg/db"
	"github.com/eigerco/raffle/pkg/db/pebble"
)

var _ raffle.Store = (*Raffle)(nil)

// roundRecord is the persisted round header. Players are stored under their own keys.
type roundRecord struct {
	State          uint8  `msgpack:"state"`
	Pool           uint64 `msgpack:"pool"`
	LastTimestamp  int64  `msgpack:"last_ts"`
	PendingRequest uint64 `msgpack:"pending"`
	RecentWinner   []byte `msgpack:"winner"`
	Generation     uint64 `msgpack:"gen"`
	Players        uint32 `msgpack:"players"`
	LastRequest    uint64 `msgpack:"last_request"`
}

// Raffle persists the live round.
type Raffle struct {
	db  db.KVStore
	log zerolog.Logger
}

func NewRaffle(db db.KVStore, log zerolog.Logger) *Raffle {
	return &Raffle{db: db, log: log}
}

// SaveRound writes the round header and its players in one batch. Players of the
// same generation are append-only, so only new ones are written; a new generation
// replaces the whole player set.
func (s *Raffle) SaveRound(r raffle.Round) error {
	batch := s.db.NewBatch()
	defer batch.Close() //nolint:errcheck

	if err := s.stageRound(batch, r); err != nil {
		return err
	}
	if err := batch.Commit(); err != nil {
		return fmt.Errorf(ErrFailedBatchCommit, err)
	}
	s.log.Debug().Uint64("generation", r.Generation).Int("players", len(r.Players)).Stringer("state", r.State).Msg("round saved")
	return nil
}

// stageRound writes r into batch relative to the currently stored round.
func (s *Raffle) stageRound(batch db.Batch, r raffle.Round) error {
	prev, err := s.header()
	if err != nil && !errors.Is(err, ErrRoundNotFound) {
		return err
	}
	found := err == nil

	from := 0
	if found && prev.Generation == r.Generation && int(prev.Players) <= len(r.Players) {
		from = int(prev.Players)
	} else if found {
		if err := batch.DeleteRange([]byte{prefixPlayer}, []byte{prefixPlayer + 1}); err != nil {
			return fmt.Errorf("clear players: %w", err)
		}
	}
	for i := from; i < len(r.Players); i++ {
		if err := batch.Put(makePlayerKey(uint32(i)), r.Players[i][:]); err != nil {
			return fmt.Errorf("put player %d: %w", i, err)
		}
	}

	rec := roundRecord{
		State:          uint8(r.State),
		Pool:           r.Pool,
		LastTimestamp:  r.LastTimestamp.UnixNano(),
		PendingRequest: uint64(r.PendingRequest),
		RecentWinner:   r.RecentWinner[:],
		Generation:     r.Generation,
		Players:        uint32(len(r.Players)),
		LastRequest:    uint64(r.LastRequest),
	}
	bytes, err := msgpack.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal round: %w", err)
	}
	if err := batch.Put([]byte{prefixRound}, bytes); err != nil {
		return fmt.Errorf("put round: %w", err)
	}
	return nil
}

// LoadRound returns the persisted round or ErrRoundNotFound.
func (s *Raffle) LoadRound() (raffle.Round, error) {
	rec, err := s.header()
	if err != nil {
		return raffle.Round{}, err
	}

	iter, err := s.db.NewIterator([]byte{prefixPlayer}, []byte{prefixPlayer + 1})
	if err != nil {
		return raffle.Round{}, fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close() //nolint:errcheck

	players := make([]crypto.Address, 0, rec.Players)
	for iter.Next() {
		value, err := iter.Value()
		if err != nil {
			return raffle.Round{}, fmt.Errorf("get iterator value: %w", err)
		}
		if len(value) != crypto.AddressSize {
			return raffle.Round{}, fmt.Errorf("%w: %s record of %d bytes", ErrCorruptRound, PrefixToString(prefixPlayer), len(value))
		}
		players = append(players, crypto.Address(value))
	}
	if len(players) != int(rec.Players) {
		return raffle.Round{}, fmt.Errorf("%w: header has %d players, found %d", ErrCorruptRound, rec.Players, len(players))
	}
	if len(rec.RecentWinner) != crypto.AddressSize {
		return raffle.Round{}, fmt.Errorf("%w: winner of %d bytes", ErrCorruptRound, len(rec.RecentWinner))
	}

	round := raffle.Round{
		State:          raffle.State(rec.State),
		Players:        players,
		Pool:           rec.Pool,
		LastTimestamp:  time.Unix(0, rec.LastTimestamp).UTC(),
		PendingRequest: raffle.RequestID(rec.PendingRequest),
		RecentWinner:   crypto.Address(rec.RecentWinner),
		Generation:     rec.Generation,
		LastRequest:    raffle.RequestID(rec.LastRequest),
	}
	if len(round.Players) == 0 {
		round.Players = nil
	}
	return round, nil
}

func (s *Raffle) header() (roundRecord, error) {
	bytes, err := s.db.Get([]byte{prefixRound})
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return roundRecord{}, ErrRoundNotFound
		}
		return roundRecord{}, fmt.Errorf("get round: %w", err)
	}
	var rec roundRecord
	if err := msgpack.Unmarshal(bytes, &rec); err != nil {
		return roundRecord{}, fmt.Errorf("%w: %s record: %v", ErrCorruptRound, PrefixToString(prefixRound), err)
	}
	return rec, nil
}
