package store

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/raffle/pkg/db/pebble"
)

func newKVStore(t *testing.T) *pebble.KVStore {
	t.Helper()
	db, err := pebble.NewKVStore()
	require.NoError(t, err)
	t.Cleanup(func() {
		err := db.Close()
		require.NoError(t, err, "failed to close db")
	})
	return db
}

func newRaffleStore(t *testing.T) *Raffle {
	return NewRaffle(newKVStore(t), zerolog.Nop())
}

func newAccounts(t *testing.T) *Accounts {
	return NewAccounts(newKVStore(t), zerolog.Nop())
}
