package webclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/verandahq/veranda/internal/bridge"
)

// startShell runs a handler behind the native side of a pipe and returns
// the web-side correlator, already running.
func startShell(t *testing.T, handler bridge.Handler, opts ...CorrelatorOption) *Correlator {
	t.Helper()
	webSide, nativeSide := bridge.NewPipe()
	endpoint := bridge.NewEndpoint(nativeSide, handler, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go endpoint.Run(ctx)

	c := NewCorrelator(webSide, opts...)
	go c.Run(ctx)
	return c
}

type handlerFunc func(ctx context.Context, env bridge.Envelope) bridge.Envelope

func (f handlerFunc) Handle(ctx context.Context, env bridge.Envelope) bridge.Envelope {
	return f(ctx, env)
}

var echo = handlerFunc(func(_ context.Context, env bridge.Envelope) bridge.Envelope {
	return bridge.NewResponse(env, env.Data)
})

func TestCallResolves(t *testing.T) {
	c := startShell(t, echo)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := c.Call(ctx, bridge.Envelope{Type: bridge.CategoryCart, Data: json.RawMessage(`{"action":"get"}`)})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !resp.Success {
		t.Errorf("response = %+v", resp)
	}
	if c.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", c.PendingCount())
	}
}

func TestConcurrentCallsGetDistinctIDs(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string]bool)
	h := handlerFunc(func(_ context.Context, env bridge.Envelope) bridge.Envelope {
		mu.Lock()
		if seen[env.RequestID] {
			mu.Unlock()
			return bridge.NewErrorResponse(env, errors.New("duplicate request id"))
		}
		seen[env.RequestID] = true
		mu.Unlock()
		return bridge.NewResponse(env, env.Data)
	})
	c := startShell(t, h)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Call(ctx, bridge.Envelope{Type: bridge.CategoryCamera, Data: json.RawMessage(`{"action":"capture"}`)})
			if err != nil {
				errCh <- err
				return
			}
			if !resp.Success {
				errCh <- errors.New(resp.Error)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent call: %v", err)
	}
}

func TestCallTimeoutNeverDoubleResolves(t *testing.T) {
	release := make(chan struct{})
	h := handlerFunc(func(_ context.Context, env bridge.Envelope) bridge.Envelope {
		<-release // hold the response past the caller's deadline
		return bridge.NewResponse(env, env.Data)
	})
	c := startShell(t, h, WithCallTimeout(50*time.Millisecond))

	_, err := c.Call(context.Background(), bridge.Envelope{Type: bridge.CategoryAuth, Data: json.RawMessage(`{"action":"getStoredAuth"}`)})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if c.PendingCount() != 0 {
		t.Errorf("pending = %d after timeout, want 0", c.PendingCount())
	}

	// Let the late response arrive; it must be discarded silently.
	close(release)
	time.Sleep(100 * time.Millisecond)
	if c.PendingCount() != 0 {
		t.Errorf("pending = %d after late response, want 0", c.PendingCount())
	}
}

func TestCallMandatoryTimeoutWithBackgroundContext(t *testing.T) {
	h := handlerFunc(func(ctx context.Context, env bridge.Envelope) bridge.Envelope {
		<-ctx.Done() // never respond
		return bridge.NewErrorResponse(env, ctx.Err())
	})
	c := startShell(t, h, WithCallTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.Call(context.Background(), bridge.Envelope{Type: bridge.CategoryCart, Data: json.RawMessage(`{"action":"get"}`)})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("call hung for %v despite mandatory timeout", elapsed)
	}
}

func TestContextCancellationWinsOverDefaultTimeout(t *testing.T) {
	h := handlerFunc(func(ctx context.Context, env bridge.Envelope) bridge.Envelope {
		<-ctx.Done()
		return bridge.NewErrorResponse(env, ctx.Err())
	})
	c := startShell(t, h, WithCallTimeout(10*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, bridge.Envelope{Type: bridge.CategoryCart, Data: json.RawMessage(`{"action":"get"}`)})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	if c.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", c.PendingCount())
	}
}

func TestUnmatchedResponseDiscarded(t *testing.T) {
	webSide, nativeSide := bridge.NewPipe()
	c := NewCorrelator(webSide)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// A response nobody asked for must be dropped without effect.
	data, _ := json.Marshal(bridge.Response{Success: true, RequestID: "ghost"})
	raw, _ := bridge.Encode(bridge.Envelope{Type: "CART_RESPONSE", Data: data, RequestID: "ghost"})
	if err := nativeSide.Send(ctx, raw); err != nil {
		t.Fatalf("Send: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if c.PendingCount() != 0 {
		t.Errorf("pending = %d", c.PendingCount())
	}
}

func TestPushDelivered(t *testing.T) {
	webSide, nativeSide := bridge.NewPipe()
	got := make(chan bridge.Envelope, 1)
	c := NewCorrelator(webSide, OnPush(func(env bridge.Envelope) { got <- env }))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	raw, _ := bridge.Encode(bridge.Envelope{
		Type: bridge.CategoryNotification,
		Data: json.RawMessage(`{"action":"show","title":"reload"}`),
	})
	nativeSide.Send(ctx, raw)

	select {
	case env := <-got:
		if env.Type != bridge.CategoryNotification {
			t.Errorf("push type = %q", env.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for push")
	}
}

func TestShutdownRejectsPending(t *testing.T) {
	webSide, nativeSide := bridge.NewPipe()
	// No handler: requests go nowhere.
	_ = nativeSide
	c := NewCorrelator(webSide, WithCallTimeout(10*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { c.Run(ctx); close(done) }()

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), bridge.Envelope{Type: bridge.CategoryCart, Data: json.RawMessage(`{"action":"get"}`)})
		errCh <- err
	}()

	time.Sleep(30 * time.Millisecond) // let the call register
	cancel()
	<-done

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not rejected on shutdown")
	}
}
