package oracle

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/eigerco/raffle/internal/crypto"
	"github.com/eigerco/raffle/internal/raffle"
)

var _ raffle.Coordinator = (*Coordinator)(nil)

// Request is a randomness request that has not been fulfilled yet.
type Request struct {
	ID          raffle.RequestID
	Params      raffle.RandomWordsRequest
	RequestedAt time.Time
}

// Coordinator is an in-process randomness coordinator. Words are derived from a
// seed so a given seed and request id always produce the same words.
type Coordinator struct {
	mu       sync.Mutex
	seed     crypto.Hash
	nextID   raffle.RequestID
	pending  map[raffle.RequestID]Request
	consumer raffle.Consumer
	closed   bool

	autoFulfill bool
	delay       time.Duration
	done        chan struct{}
	wg          sync.WaitGroup

	now func() time.Time
	log zerolog.Logger
}

type Option func(*Coordinator)

// WithAutoFulfill makes the coordinator fulfill every request from its own
// goroutine after delay.
func WithAutoFulfill(delay time.Duration) Option {
	return func(c *Coordinator) {
		c.autoFulfill = true
		c.delay = delay
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.log = l
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithPending restores requests that were outstanding when the process stopped.
func WithPending(requests ...Request) Option {
	return func(c *Coordinator) {
		for _, r := range requests {
			c.pending[r.ID] = r
			if r.ID > c.nextID {
				c.nextID = r.ID
			}
		}
	}
}

// WithLastID continues numbering after id, the last id issued before a restart.
func WithLastID(id raffle.RequestID) Option {
	return func(c *Coordinator) {
		if id > c.nextID {
			c.nextID = id
		}
	}
}

func NewCoordinator(seed crypto.Hash, opts ...Option) *Coordinator {
	c := &Coordinator{
		seed:    seed,
		pending: make(map[raffle.RequestID]Request),
		done:    make(chan struct{}),
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind sets the consumer that receives fulfillments. The raffle needs the
// coordinator at construction, so the consumer is bound afterwards.
func (c *Coordinator) Bind(consumer raffle.Consumer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumer = consumer
}

// RequestRandomWords records the request and returns its id. Ids start at 1.
func (c *Coordinator) RequestRandomWords(_ context.Context, params raffle.RandomWordsRequest) (raffle.RequestID, error) {
	if params.NumWords == 0 {
		return 0, fmt.Errorf("%w: no words requested", ErrInvalidRequest)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	if c.consumer == nil {
		return 0, ErrNoConsumer
	}

	c.nextID++
	req := Request{ID: c.nextID, Params: params, RequestedAt: c.now()}
	c.pending[req.ID] = req
	c.log.Info().Uint64("request_id", uint64(req.ID)).Uint32("num_words", params.NumWords).Msg("random words requested")

	if c.autoFulfill {
		c.wg.Add(1)
		go c.deliver(req.ID)
	}
	return req.ID, nil
}

func (c *Coordinator) deliver(id raffle.RequestID) {
	defer c.wg.Done()

	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-c.done:
		return
	case <-timer.C:
	}

	if err := c.Fulfill(context.Background(), id); err != nil {
		c.log.Warn().Err(err).Uint64("request_id", uint64(id)).Msg("automatic fulfillment failed, request stays pending")
	}
}

// Fulfill delivers deterministic words for id to the consumer.
func (c *Coordinator) Fulfill(ctx context.Context, id raffle.RequestID) error {
	c.mu.Lock()
	req, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentRequest, id)
	}
	return c.FulfillWithWords(ctx, id, c.Words(id, req.Params.NumWords))
}

// FulfillWithWords delivers the given words for id. The request stays pending
// when the consumer fails so the fulfillment can be retried, unless the
// consumer no longer knows the id.
func (c *Coordinator) FulfillWithWords(ctx context.Context, id raffle.RequestID, words []*big.Int) error {
	c.mu.Lock()
	_, ok := c.pending[id]
	consumer := c.consumer
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %d", ErrNonexistentRequest, id)
	}
	if consumer == nil {
		return ErrNoConsumer
	}

	// the consumer may be locked while it requests, so it is called unlocked
	if err := consumer.FulfillRandomWords(ctx, id, words); err != nil {
		if errors.Is(err, raffle.ErrUnknownRequest) {
			c.drop(id)
		}
		return fmt.Errorf("consumer rejected fulfillment %d: %w", id, err)
	}

	c.drop(id)
	c.log.Info().Uint64("request_id", uint64(id)).Int("words", len(words)).Msg("random words fulfilled")
	return nil
}

func (c *Coordinator) drop(id raffle.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// Words derives word i of request id as keccak256(seed || id || i).
func (c *Coordinator) Words(id raffle.RequestID, n uint32) []*big.Int {
	buf := make([]byte, crypto.HashSize+8+4)
	copy(buf, c.seed[:])
	binary.BigEndian.PutUint64(buf[crypto.HashSize:], uint64(id))

	words := make([]*big.Int, n)
	for i := range words {
		binary.BigEndian.PutUint32(buf[crypto.HashSize+8:], uint32(i))
		h := crypto.KeccakData(buf)
		words[i] = new(big.Int).SetBytes(h[:])
	}
	return words
}

// Pending returns the outstanding requests ordered by id.
func (c *Coordinator) Pending() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Request, 0, len(c.pending))
	for _, r := range c.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close stops automatic deliveries that have not fired yet and waits for
// running ones to finish.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}
