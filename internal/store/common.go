package store

import (
	"encoding/binary"
	"errors"
)

var (
	ErrRoundNotFound     = errors.New("round not found")
	ErrCorruptRound      = errors.New("stored round is corrupt")
	ErrRecipientRejected = errors.New("recipient cannot receive funds")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance overflow")
)

// Prefix constants for all store types
const (
	prefixRound byte = iota + 1
	prefixPlayer
	prefixBalance
	prefixRejecting
)

// PrefixToString converts a prefix byte to a string
func PrefixToString(p byte) string {
	switch p {
	case prefixRound:
		return "round"
	case prefixPlayer:
		return "player"
	case prefixBalance:
		return "balance"
	case prefixRejecting:
		return "rejecting"
	default:
		return "unknown"
	}
}

// makeKey creates a key from a prefix and an identifier
func makeKey(prefix byte, id []byte) []byte {
	key := make([]byte, 1+len(id))
	key[0] = prefix
	copy(key[1:], id)
	return key
}

// makePlayerKey is [prefix(1 byte)][index(4 bytes, big endian)] so that
// iteration yields players in entry order.
func makePlayerKey(index uint32) []byte {
	key := make([]byte, 5)
	key[0] = prefixPlayer
	binary.BigEndian.PutUint32(key[1:], index)
	return key
}

const (
	ErrFailedBatchCommit = "failed to commit batch: %w"
)
