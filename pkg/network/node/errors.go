package node

import (
	"errors"
	"fmt"

	"github.com/eigerco/raffle/internal/oracle"
	"github.com/eigerco/raffle/internal/raffle"
	"github.com/eigerco/raffle/internal/service"
	"github.com/eigerco/raffle/internal/store"
	"github.com/eigerco/raffle/pkg/network/protocol"
)

var (
	ErrBadRequest    = errors.New("node: malformed request")
	ErrUnknownMethod = errors.New("node: unknown method")
	ErrInternal      = errors.New("node: internal error")
)

const codeInternal protocol.Code = 0xffff

// errorCodes is matched in order, so wrapping errors come before the errors
// they may wrap.
var errorCodes = []struct {
	code protocol.Code
	err  error
}{
	{1, raffle.ErrInsufficientPayment},
	{2, raffle.ErrRoundNotOpen},
	{3, raffle.ErrUpkeepNotNeeded},
	{4, raffle.ErrUnknownRequest},
	{5, raffle.ErrPayoutFailed},
	{6, raffle.ErrPoolOverflow},
	{7, raffle.ErrNoRandomWords},
	{8, raffle.ErrRandomnessRequest},
	{9, raffle.ErrPlayerIndexOutOfRange},
	{10, raffle.ErrPersist},
	{11, service.ErrOnlyCoordinator},
	{12, oracle.ErrNonexistentRequest},
	{13, store.ErrInsufficientFunds},
	{14, store.ErrRecipientRejected},
	{15, store.ErrBalanceOverflow},
	{16, ErrBadRequest},
	{17, ErrUnknownMethod},
	{18, service.ErrFaucetDisabled},
}

func codeOf(err error) protocol.Code {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return codeInternal
}

func sentinelOf(code protocol.Code) error {
	for _, e := range errorCodes {
		if e.code == code {
			return e.err
		}
	}
	return ErrInternal
}

// RemoteError is a failure reported by the server. It matches the sentinel
// error its code stands for, so errors.Is works across the wire.
type RemoteError struct {
	Code    protocol.Code
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return sentinelOf(e.Code)
}
