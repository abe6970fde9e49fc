package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeccakData(t *testing.T) {
	// keccak256("") is a well known constant
	h := KeccakData(nil)
	assert.Equal(t, "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470", hex.EncodeToString(h[:]))
}

func TestHashDataDiffersFromKeccak(t *testing.T) {
	data := []byte("raffle")
	assert.NotEqual(t, HashData(data), KeccakData(data))
	assert.Equal(t, HashData(data), HashData(data))
}

func TestAddressRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	addr := AddressFromPublicKey(pub)
	require.False(t, addr.IsZero())
	assert.Equal(t, addr, AddressFromPublicKey(pub))

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	text, err := addr.MarshalText()
	require.NoError(t, err)
	var decoded Address
	require.NoError(t, decoded.UnmarshalText(text))
	assert.Equal(t, addr, decoded)
}

func TestParseAddressInvalid(t *testing.T) {
	_, err := ParseAddress("0x1234")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseAddress("zz")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
