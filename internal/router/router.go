// Package router dispatches inbound bridge envelopes to their capability
// handlers and guarantees exactly one response envelope per request, with
// the original correlation ID echoed, no matter how the handler fails.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/verandahq/veranda/internal/api"
	"github.com/verandahq/veranda/internal/bridge"
	"github.com/verandahq/veranda/internal/capability"
	"github.com/verandahq/veranda/internal/token"
)

// Router is the native-side action dispatcher.
type Router struct {
	api    *api.Client
	tokens *token.Manager
	caps   capability.Surface
	logger *slog.Logger
}

// New wires a router from its injected dependencies.
func New(client *api.Client, tokens *token.Manager, caps capability.Surface, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		api:    client,
		tokens: tokens,
		caps:   caps,
		logger: logger.With("component", "router"),
	}
}

// Handle dispatches one request envelope and always returns its response
// envelope. Handler panics and errors are contained here; nothing crosses
// the bridge as a crash.
func (r *Router) Handle(ctx context.Context, env bridge.Envelope) (resp bridge.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("handler panic", "type", env.Type, "panic", rec)
			resp = bridge.NewErrorResponse(env, fmt.Errorf("internal error: %v", rec))
		}
	}()

	result, err := r.dispatch(ctx, env)
	if err != nil {
		r.logger.Warn("request failed", "type", env.Type, "request_id", env.RequestID, "error", err)
		return bridge.NewErrorResponse(env, err)
	}
	return bridge.NewResponse(env, result)
}

func (r *Router) dispatch(ctx context.Context, env bridge.Envelope) (json.RawMessage, error) {
	switch env.Type {
	case bridge.CategoryAPICall:
		return r.handleAPICall(ctx, env.Data)
	case bridge.CategoryAuth:
		return r.handleAuth(ctx, env.Data)
	case bridge.CategoryCart:
		return r.handleCart(ctx, env.Data)
	case bridge.CategoryPayment:
		return r.handlePayment(ctx, env.Data)
	case bridge.CategoryCamera:
		return r.handleCamera(ctx, env.Data)
	case bridge.CategoryPermissions:
		return r.handlePermissions(ctx, env.Data)
	case bridge.CategoryNotification:
		return r.handleNotification(ctx, env.Data)
	default:
		return nil, fmt.Errorf("unhandled category %q", env.Type)
	}
}

// apiCallPayload is the data shape of an API_CALL envelope: a pass-through
// HTTP operation the web side wants the shell to perform on its behalf.
type apiCallPayload struct {
	Method  string          `json:"method"`
	Path    string          `json:"endpoint"`
	Query   map[string]any  `json:"query,omitempty"`
	Body    json.RawMessage `json:"body,omitempty"`
	NoRetry bool            `json:"noRetry,omitempty"`
}

func (r *Router) handleAPICall(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	var call apiCallPayload
	if err := json.Unmarshal(data, &call); err != nil {
		return nil, fmt.Errorf("bad API_CALL payload: %w", err)
	}
	if call.Path == "" {
		return nil, fmt.Errorf("API_CALL requires an endpoint")
	}
	method := strings.ToUpper(call.Method)
	if method == "" {
		method = http.MethodGet
	}

	req := api.Request{
		Method:  method,
		Path:    call.Path,
		Query:   call.Query,
		NoRetry: call.NoRetry,
	}
	if len(call.Body) > 0 {
		req.Body = call.Body
	}
	return r.api.Do(ctx, req)
}

// action extracts the per-category sub-dispatch field.
func action(data json.RawMessage) (string, error) {
	var probe struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("bad payload: %w", err)
	}
	if probe.Action == "" {
		return "", fmt.Errorf("missing action")
	}
	return probe.Action, nil
}
