package testutils

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/raffle/internal/crypto"
)

func RandomHash(t *testing.T) crypto.Hash {
	var hash crypto.Hash
	_, err := rand.Read(hash[:])
	require.NoError(t, err)
	return hash
}

func RandomAddress(t *testing.T) crypto.Address {
	var addr crypto.Address
	_, err := rand.Read(addr[:])
	require.NoError(t, err)
	return addr
}

func RandomAddresses(t *testing.T, n int) []crypto.Address {
	addrs := make([]crypto.Address, n)
	for i := range addrs {
		addrs[i] = RandomAddress(t)
	}
	return addrs
}

func RandomED25519Keys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	pub, prv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, prv
}
