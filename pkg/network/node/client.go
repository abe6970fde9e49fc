package node

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/raffle"
	"github.com/eigerco/raffle/internal/service"
	"github.com/eigerco/raffle/pkg/network/cert"
	"github.com/eigerco/raffle/pkg/network/protocol"
	"github.com/eigerco/raffle/pkg/network/transport"
)

type ClientConfig struct {
	PrivateKey   ed25519.PrivateKey
	CertValidity time.Duration
	DeploymentID string
	Logger       zerolog.Logger
}

// Client calls a Server. Every call opens its own stream.
type Client struct {
	key       ed25519.PrivateKey
	transport *transport.Transport
	conn      *transport.Conn
}

// clientHandler refuses nothing and serves no streams.
type clientHandler struct {
	protocols []string
}

func (h clientHandler) OnConnection(*transport.Conn) error { return nil }

func (h clientHandler) GetProtocols() []string { return h.protocols }

func (h clientHandler) ValidateConnection(tls.ConnectionState) error { return nil }

func Dial(ctx context.Context, addr string, cfg ClientConfig) (*Client, error) {
	validity := cfg.CertValidity
	if validity <= 0 {
		validity = time.Hour
	}
	tlsCert, err := cert.NewGenerator(cert.Config{PrivateKey: cfg.PrivateKey, CertValidityPeriod: validity}).GenerateCertificate()
	if err != nil {
		return nil, fmt.Errorf("generate certificate: %w", err)
	}

	protocols := protocolsFor(cfg.DeploymentID)
	tr, err := transport.NewTransport(transport.Config{
		TLSCert:       tlsCert,
		CertValidator: cert.NewValidator(),
		Handler:       clientHandler{protocols: protocols},
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	conn, err := tr.Connect(ctx, addr)
	if err != nil {
		_ = tr.Stop()
		return nil, err
	}
	return &Client{key: cfg.PrivateKey, transport: tr, conn: conn}, nil
}

// Address is the account the server sees this client as.
func (c *Client) Address() crypto.Address {
	return crypto.AddressFromPublicKey(c.key.Public().(ed25519.PublicKey))
}

func (c *Client) Close() error {
	return c.transport.Stop()
}

func (c *Client) call(ctx context.Context, method protocol.Method, body any, out any) error {
	req, err := protocol.NewRequest(method, body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, transport.StreamTimeout)
	defer cancel()

	stream, err := c.conn.OpenStream(ctx)
	if err != nil {
		return err
	}
	defer stream.CancelRead(0)

	if err := protocol.WriteEnvelope(ctx, stream, req); err != nil {
		return fmt.Errorf("write %s request: %w", method, err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("close %s request: %w", method, err)
	}

	var resp protocol.Response
	if err := protocol.ReadEnvelope(ctx, stream, &resp); err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}
	if resp.Code != protocol.CodeOK {
		return &RemoteError{Code: resp.Code, Message: resp.Error}
	}
	if out != nil {
		return resp.Decode(out)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (service.Status, error) {
	var resp protocol.StatusResponse
	if err := c.call(ctx, protocol.MethodStatus, nil, &resp); err != nil {
		return service.Status{}, err
	}
	return statusFromWire(resp)
}

// Enter pays amount from the client's own balance.
func (c *Client) Enter(ctx context.Context, amount uint64) (int, error) {
	var resp protocol.EnterResponse
	if err := c.call(ctx, protocol.MethodEnter, protocol.EnterRequest{Amount: amount}, &resp); err != nil {
		return 0, err
	}
	return resp.Index, nil
}

func (c *Client) Player(ctx context.Context, index int) (crypto.Address, error) {
	var resp protocol.AddressResponse
	if err := c.call(ctx, protocol.MethodPlayer, protocol.PlayerRequest{Index: index}, &resp); err != nil {
		return crypto.Address{}, err
	}
	return addressFromWire(resp.Address)
}

func (c *Client) CheckUpkeep(ctx context.Context) (bool, error) {
	var resp protocol.CheckUpkeepResponse
	if err := c.call(ctx, protocol.MethodCheckUpkeep, nil, &resp); err != nil {
		return false, err
	}
	return resp.UpkeepNeeded, nil
}

func (c *Client) PerformUpkeep(ctx context.Context) (raffle.RequestID, error) {
	var resp protocol.RequestIDResponse
	if err := c.call(ctx, protocol.MethodPerformUpkeep, nil, &resp); err != nil {
		return 0, err
	}
	return raffle.RequestID(resp.RequestID), nil
}

// FulfillRandomWords only succeeds when the client holds the oracle key.
func (c *Client) FulfillRandomWords(ctx context.Context, id raffle.RequestID, words []*big.Int) error {
	body := protocol.FulfillRequest{RequestID: uint64(id), Words: make([][]byte, len(words))}
	for i, w := range words {
		if w.Sign() < 0 {
			return fmt.Errorf("word %d is negative", i)
		}
		body.Words[i] = w.Bytes()
	}
	return c.call(ctx, protocol.MethodFulfillRandomWords, body, nil)
}

func (c *Client) PendingRequests(ctx context.Context) ([]protocol.PendingRequest, error) {
	var resp protocol.PendingRequestsResponse
	if err := c.call(ctx, protocol.MethodPendingRequests, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// Balance of addr, or of the client itself when addr is nil.
func (c *Client) Balance(ctx context.Context, addr *crypto.Address) (uint64, error) {
	var body protocol.BalanceRequest
	if addr != nil {
		body.Address = addr[:]
	}
	var resp protocol.BalanceResponse
	if err := c.call(ctx, protocol.MethodBalance, body, &resp); err != nil {
		return 0, err
	}
	return resp.Balance, nil
}

// Deposit funds addr, or the client itself when addr is nil.
func (c *Client) Deposit(ctx context.Context, addr *crypto.Address, amount uint64) error {
	body := protocol.DepositRequest{Amount: amount}
	if addr != nil {
		body.Address = addr[:]
	}
	return c.call(ctx, protocol.MethodDeposit, body, nil)
}
