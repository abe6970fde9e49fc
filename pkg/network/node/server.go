package node

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"fmt"
	"math/big"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/rs/zerolog"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/oracle"
	"github.com/eigerco/raffle/internal/raffle"
	"github.com/eigerco/raffle/internal/service"
	"github.com/eigerco/raffle/pkg/network/cert"
	"github.com/eigerco/raffle/pkg/network/protocol"
	"github.com/eigerco/raffle/pkg/network/transport"
)

// Backend is what the server exposes. *service.Service implements it.
type Backend interface {
	Status() service.Status
	Enter(ctx context.Context, player crypto.Address, amount uint64) (int, error)
	Player(index int) (crypto.Address, error)
	CheckUpkeep(checkData []byte) (bool, []byte)
	PerformUpkeep(ctx context.Context, performData []byte) (raffle.RequestID, error)
	FulfillRandomWords(ctx context.Context, caller ed25519.PublicKey, id raffle.RequestID, words []*big.Int) error
	PendingRequests() []oracle.Request
	Balance(addr crypto.Address) (uint64, error)
	Deposit(addr crypto.Address, amount uint64) error
}

var _ Backend = (*service.Service)(nil)

type Config struct {
	ListenAddr   string
	PrivateKey   ed25519.PrivateKey
	CertValidity time.Duration
	DeploymentID string
	Logger       zerolog.Logger
}

// Server answers one request per QUIC stream. The caller's identity is the
// key of its client certificate.
type Server struct {
	backend   Backend
	transport *transport.Transport
	protocols []string
	log       zerolog.Logger
	wg        sync.WaitGroup
}

func NewServer(backend Backend, cfg Config) (*Server, error) {
	tlsCert, err := cert.NewGenerator(cert.Config{
		PrivateKey:         cfg.PrivateKey,
		CertValidityPeriod: cfg.CertValidity,
	}).GenerateCertificate()
	if err != nil {
		return nil, fmt.Errorf("generate certificate: %w", err)
	}

	s := &Server{
		backend:   backend,
		protocols: protocolsFor(cfg.DeploymentID),
		log:       cfg.Logger,
	}
	s.transport, err = transport.NewTransport(transport.Config{
		TLSCert:       tlsCert,
		ListenAddr:    cfg.ListenAddr,
		CertValidator: cert.NewValidator(),
		Handler:       s,
		Logger:        cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Start() error {
	return s.transport.Start()
}

func (s *Server) Addr() (net.Addr, error) {
	return s.transport.Addr()
}

// Stop closes every connection and waits for in-flight requests.
func (s *Server) Stop() error {
	err := s.transport.Stop()
	s.wg.Wait()
	return err
}

func (s *Server) OnConnection(conn *transport.Conn) error {
	s.log.Debug().Stringer("peer", crypto.AddressFromPublicKey(conn.PeerKey())).Msg("peer connected")
	s.wg.Add(1)
	go s.serve(conn)
	return nil
}

func (s *Server) GetProtocols() []string {
	return s.protocols
}

func (s *Server) ValidateConnection(tlsState tls.ConnectionState) error {
	if !slices.Contains(s.protocols, tlsState.NegotiatedProtocol) {
		return fmt.Errorf("unsupported protocol %q", tlsState.NegotiatedProtocol)
	}
	return nil
}

func (s *Server) serve(conn *transport.Conn) {
	defer s.wg.Done()
	for {
		stream, err := conn.AcceptStream()
		if err != nil {
			s.log.Debug().Err(err).Msg("peer gone")
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleStream(conn, stream)
		}()
	}
}

func (s *Server) handleStream(conn *transport.Conn, stream quic.Stream) {
	defer stream.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(conn.Context(), transport.StreamTimeout)
	defer cancel()

	var req protocol.Request
	if err := protocol.ReadEnvelope(ctx, stream, &req); err != nil {
		s.log.Debug().Err(err).Msg("failed to read request")
		stream.CancelRead(0)
		return
	}

	resp := s.dispatch(ctx, conn.PeerKey(), req)
	if resp.Code != protocol.CodeOK {
		s.log.Debug().Stringer("method", req.Method).Uint16("code", uint16(resp.Code)).Str("error", resp.Error).Msg("request failed")
	}
	if err := protocol.WriteEnvelope(ctx, stream, resp); err != nil {
		s.log.Debug().Err(err).Stringer("method", req.Method).Msg("failed to write response")
	}
}

func fail(err error) protocol.Response {
	return protocol.Fail(codeOf(err), err)
}

func ok(body any) protocol.Response {
	resp, err := protocol.OK(body)
	if err != nil {
		return fail(err)
	}
	return resp
}

func (s *Server) decode(req protocol.Request, v any) error {
	if err := req.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, caller ed25519.PublicKey, req protocol.Request) protocol.Response {
	callerAddr := crypto.AddressFromPublicKey(caller)

	switch req.Method {
	case protocol.MethodStatus:
		return ok(statusToWire(s.backend.Status()))

	case protocol.MethodEnter:
		var body protocol.EnterRequest
		if err := s.decode(req, &body); err != nil {
			return fail(err)
		}
		index, err := s.backend.Enter(ctx, callerAddr, body.Amount)
		if err != nil {
			return fail(err)
		}
		return ok(protocol.EnterResponse{Index: index})

	case protocol.MethodPlayer:
		var body protocol.PlayerRequest
		if err := s.decode(req, &body); err != nil {
			return fail(err)
		}
		player, err := s.backend.Player(body.Index)
		if err != nil {
			return fail(err)
		}
		return ok(protocol.AddressResponse{Address: player[:]})

	case protocol.MethodCheckUpkeep:
		needed, performData := s.backend.CheckUpkeep(req.Body)
		return ok(protocol.CheckUpkeepResponse{UpkeepNeeded: needed, PerformData: performData})

	case protocol.MethodPerformUpkeep:
		var body protocol.PerformUpkeepRequest
		if len(req.Body) > 0 {
			if err := s.decode(req, &body); err != nil {
				return fail(err)
			}
		}
		id, err := s.backend.PerformUpkeep(ctx, body.PerformData)
		if err != nil {
			return fail(err)
		}
		return ok(protocol.RequestIDResponse{RequestID: uint64(id)})

	case protocol.MethodFulfillRandomWords:
		var body protocol.FulfillRequest
		if err := s.decode(req, &body); err != nil {
			return fail(err)
		}
		words := make([]*big.Int, len(body.Words))
		for i, w := range body.Words {
			words[i] = new(big.Int).SetBytes(w)
		}
		if err := s.backend.FulfillRandomWords(ctx, caller, raffle.RequestID(body.RequestID), words); err != nil {
			return fail(err)
		}
		return ok(nil)

	case protocol.MethodPendingRequests:
		pending := s.backend.PendingRequests()
		out := protocol.PendingRequestsResponse{Requests: make([]protocol.PendingRequest, len(pending))}
		for i, p := range pending {
			out.Requests[i] = protocol.PendingRequest{
				RequestID:   uint64(p.ID),
				NumWords:    p.Params.NumWords,
				RequestedAt: p.RequestedAt.UnixNano(),
			}
		}
		return ok(out)

	case protocol.MethodBalance:
		var body protocol.BalanceRequest
		if len(req.Body) > 0 {
			if err := s.decode(req, &body); err != nil {
				return fail(err)
			}
		}
		addr := callerAddr
		if len(body.Address) > 0 {
			var err error
			if addr, err = addressFromWire(body.Address); err != nil {
				return fail(err)
			}
		}
		balance, err := s.backend.Balance(addr)
		if err != nil {
			return fail(err)
		}
		return ok(protocol.BalanceResponse{Balance: balance})

	case protocol.MethodDeposit:
		var body protocol.DepositRequest
		if err := s.decode(req, &body); err != nil {
			return fail(err)
		}
		addr := callerAddr
		if len(body.Address) > 0 {
			var err error
			if addr, err = addressFromWire(body.Address); err != nil {
				return fail(err)
			}
		}
		if err := s.backend.Deposit(addr, body.Amount); err != nil {
			return fail(err)
		}
		return ok(nil)
	}

	return fail(fmt.Errorf("%w: %s", ErrUnknownMethod, req.Method))
}

func addressFromWire(b []byte) (crypto.Address, error) {
	if len(b) != crypto.AddressSize {
		return crypto.Address{}, fmt.Errorf("%w: address of %d bytes", ErrBadRequest, len(b))
	}
	return crypto.Address(b), nil
}

func statusToWire(st service.Status) protocol.StatusResponse {
	return protocol.StatusResponse{
		State:          uint8(st.State),
		Players:        st.Players,
		Pool:           st.Pool,
		EntranceFee:    st.EntranceFee,
		Interval:       int64(st.Interval),
		LastTimestamp:  st.LastTimestamp.UnixNano(),
		RecentWinner:   st.RecentWinner[:],
		PendingRequest: uint64(st.PendingRequest),
		Generation:     st.Generation,
		UpkeepNeeded:   st.UpkeepNeeded,
		Escrow:         st.Escrow[:],
	}
}

func statusFromWire(w protocol.StatusResponse) (service.Status, error) {
	winner, err := addressFromWire(w.RecentWinner)
	if err != nil {
		return service.Status{}, err
	}
	escrow, err := addressFromWire(w.Escrow)
	if err != nil {
		return service.Status{}, err
	}
	return service.Status{
		State:          raffle.State(w.State),
		Players:        w.Players,
		Pool:           w.Pool,
		EntranceFee:    w.EntranceFee,
		Interval:       time.Duration(w.Interval),
		LastTimestamp:  time.Unix(0, w.LastTimestamp).UTC(),
		RecentWinner:   winner,
		PendingRequest: raffle.RequestID(w.PendingRequest),
		Generation:     w.Generation,
		UpkeepNeeded:   w.UpkeepNeeded,
		Escrow:         escrow,
	}, nil
}
