// Package webclient is the web-content side of the bridge: a correlator
// that turns fire-and-forget envelope sends into blocking calls, and a
// typed facade the hosted app uses instead of raw envelopes.
package webclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/verandahq/veranda/internal/bridge"
)

var (
	// ErrTimeout fires when no response arrived within the call deadline.
	// The shell may still process the request and reply later; that late
	// reply is discarded by requestId absence.
	ErrTimeout = errors.New("webclient: request timed out")

	// ErrAbandoned marks pending requests swept out after their TTL,
	// e.g. because the shell side died before replying.
	ErrAbandoned = errors.New("webclient: request abandoned")

	// ErrClosed is returned once the correlator has shut down.
	ErrClosed = errors.New("webclient: correlator closed")
)

const (
	defaultCallTimeout = 30 * time.Second
	defaultPendingTTL  = 2 * time.Minute
	sweepInterval      = 15 * time.Second
)

type outcome struct {
	resp bridge.Response
	err  error
}

// pendingRequest tracks one outstanding call until its response, timeout,
// or sweep. The outcome channel is buffered so delivery never blocks.
type pendingRequest struct {
	id        string
	createdAt time.Time
	ch        chan outcome
}

// Correlator matches outgoing requests with their eventual responses by
// UUID correlation IDs. Every call carries a deadline even when the caller
// supplies none, and a TTL sweep clears entries whose responses never
// arrive, so pending state cannot grow without bound over a long session.
type Correlator struct {
	transport bridge.Transport
	logger    *slog.Logger

	callTimeout time.Duration
	pendingTTL  time.Duration

	mu      sync.Mutex
	pending map[string]*pendingRequest
	closed  bool

	onPush func(bridge.Envelope)
}

// CorrelatorOption configures a Correlator.
type CorrelatorOption func(*Correlator)

// WithCallTimeout sets the default per-call deadline.
func WithCallTimeout(d time.Duration) CorrelatorOption {
	return func(c *Correlator) { c.callTimeout = d }
}

// WithPendingTTL sets the hard lifetime for unanswered requests.
func WithPendingTTL(d time.Duration) CorrelatorOption {
	return func(c *Correlator) { c.pendingTTL = d }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) CorrelatorOption {
	return func(c *Correlator) { c.logger = l.With("component", "correlator") }
}

// OnPush registers a handler for shell-initiated envelopes (e.g. reload
// notifications) arriving outside any request/response exchange.
func OnPush(fn func(bridge.Envelope)) CorrelatorOption {
	return func(c *Correlator) { c.onPush = fn }
}

// NewCorrelator wraps a transport.
func NewCorrelator(t bridge.Transport, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		transport:   t,
		logger:      slog.Default().With("component", "correlator"),
		callTimeout: defaultCallTimeout,
		pendingTTL:  defaultPendingTTL,
		pending:     make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run receives from the transport until the context is cancelled or the
// transport closes, resolving pending calls as responses arrive. Unmatched
// responses are discarded silently.
func (c *Correlator) Run(ctx context.Context) error {
	sweeper := time.NewTicker(sweepInterval)
	defer sweeper.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sweeper.C:
				c.sweep()
			}
		}
	}()
	defer c.shutdown()

	for {
		raw, err := c.transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, bridge.ErrTransportClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		env, err := bridge.Decode(raw)
		if err != nil {
			c.logger.Warn("dropping malformed envelope", "error", err)
			continue
		}

		if env.Type.IsRequest() {
			// Shell-initiated push, not a reply to anything.
			if c.onPush != nil {
				c.onPush(env)
			}
			continue
		}

		resp, err := bridge.ParseResponse(env)
		if err != nil {
			c.logger.Warn("dropping malformed response", "type", env.Type, "error", err)
			continue
		}
		pr := c.take(resp.RequestID)
		if pr == nil {
			// Stale reply for a call that already timed out, or a
			// duplicate. Discard by ID absence.
			c.logger.Debug("discarding unmatched response", "request_id", resp.RequestID)
			continue
		}
		pr.ch <- outcome{resp: resp}
	}
}

// Call sends a request envelope and blocks until its response, the call
// deadline, or context cancellation — whichever comes first, exactly once.
func (c *Correlator) Call(ctx context.Context, env bridge.Envelope) (bridge.Response, error) {
	pr := &pendingRequest{
		id:        uuid.NewString(),
		createdAt: time.Now(),
		ch:        make(chan outcome, 1),
	}
	env.RequestID = pr.id

	raw, err := bridge.Encode(env)
	if err != nil {
		return bridge.Response{}, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return bridge.Response{}, ErrClosed
	}
	c.pending[pr.id] = pr
	c.mu.Unlock()

	if err := c.transport.Send(ctx, raw); err != nil {
		c.take(pr.id)
		return bridge.Response{}, err
	}

	// The deadline is mandatory: even a caller with a background context
	// gets the default, so no promise lives forever.
	timer := time.NewTimer(c.callTimeout)
	defer timer.Stop()

	select {
	case out := <-pr.ch:
		return out.resp, out.err
	case <-timer.C:
	case <-ctx.Done():
	}

	// Timed out or cancelled. Whoever removes the entry from the map owns
	// the resolution: if the receive loop got there first, its outcome is
	// already buffered and wins.
	if c.take(pr.id) == nil {
		out := <-pr.ch
		return out.resp, out.err
	}
	if ctx.Err() != nil {
		return bridge.Response{}, ctx.Err()
	}
	return bridge.Response{}, ErrTimeout
}

// take removes and returns the pending entry, or nil if already resolved.
func (c *Correlator) take(id string) *pendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	pr, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return pr
}

// sweep rejects pending requests older than the TTL.
func (c *Correlator) sweep() {
	cutoff := time.Now().Add(-c.pendingTTL)

	c.mu.Lock()
	var expired []*pendingRequest
	for id, pr := range c.pending {
		if pr.createdAt.Before(cutoff) {
			delete(c.pending, id)
			expired = append(expired, pr)
		}
	}
	c.mu.Unlock()

	for _, pr := range expired {
		c.logger.Warn("sweeping abandoned request", "request_id", pr.id, "age", time.Since(pr.createdAt))
		pr.ch <- outcome{err: ErrAbandoned}
	}
}

// shutdown rejects everything still pending.
func (c *Correlator) shutdown() {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]*pendingRequest)
	c.mu.Unlock()

	for _, pr := range pending {
		pr.ch <- outcome{err: ErrClosed}
	}
}

// PendingCount reports outstanding requests; used by tests and diagnostics.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
