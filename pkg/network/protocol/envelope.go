package protocol

import (
	"context"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack"
)

// Method selects the operation a request stream carries.
type Method uint8

const (
	MethodStatus Method = iota + 1
	MethodEnter
	MethodPlayer
	MethodCheckUpkeep
	MethodPerformUpkeep
	MethodFulfillRandomWords
	MethodPendingRequests
	MethodBalance
	MethodDeposit
)

func (m Method) String() string {
	switch m {
	case MethodStatus:
		return "status"
	case MethodEnter:
		return "enter"
	case MethodPlayer:
		return "player"
	case MethodCheckUpkeep:
		return "checkUpkeep"
	case MethodPerformUpkeep:
		return "performUpkeep"
	case MethodFulfillRandomWords:
		return "fulfillRandomWords"
	case MethodPendingRequests:
		return "pendingRequests"
	case MethodBalance:
		return "balance"
	case MethodDeposit:
		return "deposit"
	}
	return fmt.Sprintf("Method(%d)", uint8(m))
}

// Code classifies a failed response. Zero is success.
type Code uint16

const CodeOK Code = 0

// Request is the first and only message a client writes on a stream.
type Request struct {
	Method Method `msgpack:"m"`
	Body   []byte `msgpack:"b"`
}

// Response is the only message a server writes back.
type Response struct {
	Code  Code   `msgpack:"c"`
	Error string `msgpack:"e,omitempty"`
	Body  []byte `msgpack:"b,omitempty"`
}

// NewRequest encodes body into a request for method. A nil body stays empty.
func NewRequest(method Method, body any) (Request, error) {
	req := Request{Method: method}
	if body == nil {
		return req, nil
	}
	b, err := msgpack.Marshal(body)
	if err != nil {
		return Request{}, fmt.Errorf("marshal %s body: %w", method, err)
	}
	req.Body = b
	return req, nil
}

// Decode unmarshals the request body into v.
func (r Request) Decode(v any) error {
	if err := msgpack.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("unmarshal %s body: %w", r.Method, err)
	}
	return nil
}

// OK encodes body into a successful response.
func OK(body any) (Response, error) {
	if body == nil {
		return Response{}, nil
	}
	b, err := msgpack.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal response body: %w", err)
	}
	return Response{Body: b}, nil
}

// Fail builds an error response.
func Fail(code Code, err error) Response {
	return Response{Code: code, Error: err.Error()}
}

func (r Response) Decode(v any) error {
	if err := msgpack.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("unmarshal response body: %w", err)
	}
	return nil
}

// WriteEnvelope frames v (a Request or Response) onto w.
func WriteEnvelope(ctx context.Context, w io.Writer, v any) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return WriteMessageWithContext(ctx, w, b)
}

// ReadEnvelope reads one framed envelope from r into v.
func ReadEnvelope(ctx context.Context, r io.Reader, v any) error {
	msg, err := ReadMessageWithContext(ctx, r)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(msg.Content, v); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	return nil
}

type EnterRequest struct {
	Amount uint64 `msgpack:"amount"`
}

type EnterResponse struct {
	Index int `msgpack:"index"`
}

type PlayerRequest struct {
	Index int `msgpack:"index"`
}

type AddressResponse struct {
	Address []byte `msgpack:"address"`
}

type CheckUpkeepResponse struct {
	UpkeepNeeded bool   `msgpack:"needed"`
	PerformData  []byte `msgpack:"perform_data"`
}

type PerformUpkeepRequest struct {
	PerformData []byte `msgpack:"perform_data"`
}

type RequestIDResponse struct {
	RequestID uint64 `msgpack:"request_id"`
}

// FulfillRequest carries words as big-endian unsigned integers.
type FulfillRequest struct {
	RequestID uint64   `msgpack:"request_id"`
	Words     [][]byte `msgpack:"words"`
}

type PendingRequestsResponse struct {
	Requests []PendingRequest `msgpack:"requests"`
}

type PendingRequest struct {
	RequestID   uint64 `msgpack:"request_id"`
	NumWords    uint32 `msgpack:"num_words"`
	RequestedAt int64  `msgpack:"requested_at"`
}

// BalanceRequest with an empty address asks for the caller's balance.
type BalanceRequest struct {
	Address []byte `msgpack:"address"`
}

type BalanceResponse struct {
	Balance uint64 `msgpack:"balance"`
}

type DepositRequest struct {
	Address []byte `msgpack:"address"`
	Amount  uint64 `msgpack:"amount"`
}

type StatusResponse struct {
	State          uint8  `msgpack:"state"`
	Players        int    `msgpack:"players"`
	Pool           uint64 `msgpack:"pool"`
	EntranceFee    uint64 `msgpack:"entrance_fee"`
	Interval       int64  `msgpack:"interval"`
	LastTimestamp  int64  `msgpack:"last_ts"`
	RecentWinner   []byte `msgpack:"winner"`
	PendingRequest uint64 `msgpack:"pending"`
	Generation     uint64 `msgpack:"gen"`
	UpkeepNeeded   bool   `msgpack:"upkeep_needed"`
	Escrow         []byte `msgpack:"escrow"`
}
