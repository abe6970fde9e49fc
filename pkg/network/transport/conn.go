package transport

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"
)

// StreamTimeout defines the maximum duration to wait for stream operations
const StreamTimeout = 5 * time.Second

// Conn represents a QUIC connection with a remote peer. Its context is
// cancelled when the connection closes or the transport stops.
type Conn struct {
	qConn     quic.Connection
	transport *Transport
	peerKey   ed25519.PublicKey
	ctx       context.Context
	cancel    context.CancelFunc
}

func newConn(qConn quic.Connection, transport *Transport, peerKey ed25519.PublicKey) *Conn {
	ctx, cancel := context.WithCancel(transport.ctx)
	c := &Conn{
		qConn:     qConn,
		transport: transport,
		peerKey:   peerKey,
		ctx:       ctx,
		cancel:    cancel,
	}
	// drop the connection from the transport once the peer goes away
	go func() {
		select {
		case <-qConn.Context().Done():
			c.cancel()
			transport.cleanup(c)
		case <-ctx.Done():
		}
	}()
	return c
}

// OpenStream opens a new bidirectional QUIC stream.
func (c *Conn) OpenStream(ctx context.Context) (quic.Stream, error) {
	stream, err := c.qConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open QUIC stream: %w", err)
	}
	return stream, nil
}

// AcceptStream blocks until the peer opens a stream or the connection ends.
func (c *Conn) AcceptStream() (quic.Stream, error) {
	stream, err := c.qConn.AcceptStream(c.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to accept QUIC stream: %w", err)
	}
	return stream, nil
}

// PeerKey returns the public key of the connected peer.
func (c *Conn) PeerKey() ed25519.PublicKey {
	return c.peerKey
}

// Close closes the connection and cancels all associated streams.
func (c *Conn) Close() error {
	c.cancel()
	return c.qConn.CloseWithError(0, "")
}

// Context is cancelled when the connection is closed.
func (c *Conn) Context() context.Context {
	return c.ctx
}
