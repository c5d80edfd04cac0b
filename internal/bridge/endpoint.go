package bridge

import (
	"context"
	"errors"
	"log/slog"
)

// Handler is the native-side dispatcher. It must return exactly one
// response envelope for every request envelope, including on failure.
type Handler interface {
	Handle(ctx context.Context, env Envelope) Envelope
}

// Endpoint is the shell side of a bridge channel. It decodes inbound
// envelopes, dispatches them to the handler, and writes responses back
// through a single writer so per-direction ordering holds even with
// handlers running concurrently.
type Endpoint struct {
	transport Transport
	handler   Handler
	logger    *slog.Logger

	outbox chan []byte
}

const outboxBuffer = 64

// NewEndpoint wires a transport to a handler.
func NewEndpoint(t Transport, h Handler, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{
		transport: t,
		handler:   h,
		logger:    logger.With("component", "bridge-endpoint"),
		outbox:    make(chan []byte, outboxBuffer),
	}
}

// Run serves the channel until the context is cancelled or the transport
// closes. Malformed inbound messages are dropped and logged; they never
// propagate as a crash.
func (e *Endpoint) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writeErr := make(chan error, 1)
	go e.writeLoop(ctx, writeErr)

	for {
		raw, err := e.transport.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrTransportClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		env, err := Decode(raw)
		if err != nil {
			e.logger.Warn("dropping malformed envelope", "error", err)
			continue
		}
		if !env.Type.IsRequest() {
			// Responses never originate from the web side on this channel.
			e.logger.Warn("dropping unexpected envelope", "type", env.Type)
			continue
		}

		// Handlers may suspend on network or storage I/O; run each request
		// on its own goroutine so multiple requests can be in flight.
		go e.serve(ctx, env)

		select {
		case err := <-writeErr:
			return err
		default:
		}
	}
}

func (e *Endpoint) serve(ctx context.Context, env Envelope) {
	resp := e.handler.Handle(ctx, env)
	raw, err := Encode(resp)
	if err != nil {
		// Responses are built from marshalable values; reaching this means
		// a handler returned garbage. Degrade to a bare failure envelope.
		e.logger.Error("encode response", "type", env.Type, "error", err)
		raw, _ = Encode(NewErrorResponse(env, errors.New("internal error")))
	}
	select {
	case e.outbox <- raw:
	case <-ctx.Done():
	}
}

// Push sends a native-initiated envelope (e.g. a NOTIFICATION) to the web
// side, outside any request/response exchange.
func (e *Endpoint) Push(ctx context.Context, env Envelope) error {
	raw, err := Encode(env)
	if err != nil {
		return err
	}
	select {
	case e.outbox <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Endpoint) writeLoop(ctx context.Context, writeErr chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-e.outbox:
			if err := e.transport.Send(ctx, raw); err != nil {
				if !errors.Is(err, ErrTransportClosed) && ctx.Err() == nil {
					e.logger.Error("send response", "error", err)
					writeErr <- err
				}
				return
			}
		}
	}
}
