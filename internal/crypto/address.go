package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const AddressSize = 20

var ErrInvalidAddress = errors.New("invalid address")

// Address identifies an account: a raffle participant, the escrow, or the oracle.
type Address [AddressSize]byte

// AddressFromPublicKey takes the last 20 bytes of blake2b-256(pub).
func AddressFromPublicKey(pub ed25519.PublicKey) Address {
	h := HashData(pub)
	var a Address
	copy(a[:], h[HashSize-AddressSize:])
	return a
}

// ParseAddress decodes a hex address with an optional 0x prefix.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != AddressSize {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressSize, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
