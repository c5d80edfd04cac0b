package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/verandahq/veranda/internal/api"
)

// Cart and payment envelopes are thin delegations to the backend API: they
// inherit the client's timeout and retry behavior and add none of their own.

type cartPayload struct {
	Action    string          `json:"action"`
	ProductID string          `json:"productId,omitempty"`
	Quantity  int             `json:"quantity,omitempty"`
	Item      json.RawMessage `json:"item,omitempty"`
}

func (r *Router) handleCart(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	var payload cartPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("bad CART payload: %w", err)
	}

	switch payload.Action {
	case "get":
		return r.api.Do(ctx, api.Request{Method: http.MethodGet, Path: "/cart"})

	case "add":
		if len(payload.Item) == 0 {
			return nil, fmt.Errorf("cart add requires an item")
		}
		return r.api.Do(ctx, api.Request{Method: http.MethodPost, Path: "/cart/items", Body: payload.Item})

	case "update":
		if payload.ProductID == "" {
			return nil, fmt.Errorf("cart update requires a productId")
		}
		return r.api.Do(ctx, api.Request{
			Method: http.MethodPut,
			Path:   "/cart/items/" + payload.ProductID,
			Body:   map[string]int{"quantity": payload.Quantity},
		})

	case "remove":
		if payload.ProductID == "" {
			return nil, fmt.Errorf("cart remove requires a productId")
		}
		return r.api.Do(ctx, api.Request{Method: http.MethodDelete, Path: "/cart/items/" + payload.ProductID})

	case "clear":
		return r.api.Do(ctx, api.Request{Method: http.MethodDelete, Path: "/cart"})

	default:
		return nil, fmt.Errorf("unknown CART action %q", payload.Action)
	}
}

type paymentPayload struct {
	Action   string          `json:"action"`
	OrderID  string          `json:"orderId,omitempty"`
	IntentID string          `json:"intentId,omitempty"`
	Details  json.RawMessage `json:"details,omitempty"`
}

func (r *Router) handlePayment(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	var payload paymentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("bad PAYMENT payload: %w", err)
	}

	switch payload.Action {
	case "methods":
		return r.api.Do(ctx, api.Request{Method: http.MethodGet, Path: "/payments/methods"})

	case "createIntent":
		if payload.OrderID == "" {
			return nil, fmt.Errorf("createIntent requires an orderId")
		}
		// Creating an intent twice is harmless server-side, but the
		// confirmation below is not; only the intent creation keeps the
		// default retry policy.
		return r.api.Do(ctx, api.Request{
			Method: http.MethodPost,
			Path:   "/payments/intents",
			Body:   map[string]string{"orderId": payload.OrderID},
		})

	case "confirm":
		if payload.IntentID == "" {
			return nil, fmt.Errorf("confirm requires an intentId")
		}
		req := api.Request{
			Method:  http.MethodPost,
			Path:    "/payments/intents/" + payload.IntentID + "/confirm",
			NoRetry: true,
		}
		if len(payload.Details) > 0 {
			req.Body = payload.Details
		}
		return r.api.Do(ctx, req)

	default:
		return nil, fmt.Errorf("unknown PAYMENT action %q", payload.Action)
	}
}
