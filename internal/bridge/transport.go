package bridge

import (
	"context"
	"errors"
	"sync"
)

// Transport moves encoded envelopes across the boundary. Implementations
// must preserve send order within a single direction; nothing is guaranteed
// between the two directions.
type Transport interface {
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// ErrTransportClosed is returned once a transport has been torn down.
// In-flight messages on a closed transport may be permanently lost.
var ErrTransportClosed = errors.New("bridge: transport closed")

const pipeBuffer = 64

// Pipe is an in-process transport endpoint. Two paired pipes form a single
// logical channel with FIFO delivery per direction. Used by tests and by
// embedded hosts that run both sides in one process.
type Pipe struct {
	in  chan []byte
	out chan []byte

	done      chan struct{}
	closeOnce *sync.Once
}

// NewPipe returns two connected transport endpoints. Messages sent on one
// are received on the other in order.
func NewPipe() (*Pipe, *Pipe) {
	a := make(chan []byte, pipeBuffer)
	b := make(chan []byte, pipeBuffer)
	done := make(chan struct{})
	once := new(sync.Once)
	// The done channel is shared: closing either endpoint tears down the
	// whole logical channel, matching a webview teardown.
	left := &Pipe{in: a, out: b, done: done, closeOnce: once}
	right := &Pipe{in: b, out: a, done: done, closeOnce: once}
	return left, right
}

// Send queues a message for the peer.
func (p *Pipe) Send(ctx context.Context, msg []byte) error {
	// Copy so the caller may reuse its buffer.
	buf := make([]byte, len(msg))
	copy(buf, msg)
	select {
	case <-p.done:
		return ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.out <- buf:
		return nil
	}
}

// Receive blocks until the peer sends a message or the channel closes.
func (p *Pipe) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-p.done:
		// Drain anything delivered before close.
		select {
		case msg := <-p.in:
			return msg, nil
		default:
			return nil, ErrTransportClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-p.in:
		return msg, nil
	}
}

// Close tears down the channel for both endpoints.
func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
