// Package bridge implements the envelope protocol connecting the hosted web
// content and the native shell. Envelopes are the only unit crossing the
// boundary: a category tag, a JSON data object, and an optional correlation
// ID carried inside the data object.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ActionCategory is the closed tag identifying what an envelope carries.
type ActionCategory string

const (
	CategoryAPICall      ActionCategory = "API_CALL"
	CategoryAuth         ActionCategory = "AUTH"
	CategoryCart         ActionCategory = "CART"
	CategoryCamera       ActionCategory = "CAMERA"
	CategoryPayment      ActionCategory = "PAYMENT"
	CategoryPermissions  ActionCategory = "PERMISSIONS"
	CategoryNotification ActionCategory = "NOTIFICATION"
)

const responseSuffix = "_RESPONSE"

// requestCategories is the closed set of request tags. Response tags are
// derived, never listed separately.
var requestCategories = map[ActionCategory]bool{
	CategoryAPICall:      true,
	CategoryAuth:         true,
	CategoryCart:         true,
	CategoryCamera:       true,
	CategoryPayment:      true,
	CategoryPermissions:  true,
	CategoryNotification: true,
}

// IsRequest reports whether c is one of the closed request categories.
func (c ActionCategory) IsRequest() bool { return requestCategories[c] }

// IsResponse reports whether c is the response counterpart of a request category.
func (c ActionCategory) IsResponse() bool {
	base, ok := strings.CutSuffix(string(c), responseSuffix)
	return ok && requestCategories[ActionCategory(base)]
}

// Valid reports whether c belongs to the closed tag set, either direction.
func (c ActionCategory) Valid() bool { return c.IsRequest() || c.IsResponse() }

// ResponseCategory returns the matching response tag for a request category.
func (c ActionCategory) ResponseCategory() ActionCategory {
	return ActionCategory(string(c) + responseSuffix)
}

// RequestCategory returns the request tag a response category answers.
func (c ActionCategory) RequestCategory() ActionCategory {
	return ActionCategory(strings.TrimSuffix(string(c), responseSuffix))
}

// Envelope is the unit exchanged across the bridge. RequestID correlates a
// request with its eventual response; it travels inside the wire-level data
// object under the "requestId" key.
type Envelope struct {
	Type      ActionCategory
	Data      json.RawMessage
	RequestID string
}

// Response is the data payload of every *_RESPONSE envelope.
type Response struct {
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewResponse wraps a handler result into a response envelope for the given
// request, echoing its correlation ID.
func NewResponse(req Envelope, result json.RawMessage) Envelope {
	data, err := json.Marshal(Response{Success: true, Result: result, RequestID: req.RequestID})
	if err != nil {
		// Result came from json.Marshal upstream, so this only fires on
		// programmer error. Degrade to a failure response.
		return NewErrorResponse(req, fmt.Errorf("encode result: %w", err))
	}
	return Envelope{Type: req.Type.ResponseCategory(), Data: data, RequestID: req.RequestID}
}

// NewErrorResponse wraps a handler failure into a response envelope,
// echoing the request's correlation ID.
func NewErrorResponse(req Envelope, handlerErr error) Envelope {
	msg := "unknown error"
	if handlerErr != nil {
		msg = handlerErr.Error()
	}
	data, _ := json.Marshal(Response{Success: false, Error: msg, RequestID: req.RequestID})
	return Envelope{Type: req.Type.ResponseCategory(), Data: data, RequestID: req.RequestID}
}

// ParseResponse decodes the data payload of a response envelope.
func ParseResponse(env Envelope) (Response, error) {
	var resp Response
	if !env.Type.IsResponse() {
		return resp, fmt.Errorf("%w: %q is not a response category", ErrDecode, env.Type)
	}
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		return resp, fmt.Errorf("%w: response payload: %v", ErrDecode, err)
	}
	return resp, nil
}

// ErrDecode marks malformed inbound messages. Receivers drop and log these,
// never propagate them across the boundary.
var ErrDecode = errors.New("bridge: decode")

// wireEnvelope is the JSON shape on the channel. Only type and data cross
// the boundary; requestId rides inside data.
type wireEnvelope struct {
	Type ActionCategory  `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wireRequestID struct {
	RequestID string `json:"requestId,omitempty"`
}

// Encode serializes an envelope to its wire form, injecting the correlation
// ID into the data object. Encoding fails loudly on unserializable payloads.
func Encode(env Envelope) ([]byte, error) {
	if !env.Type.Valid() {
		return nil, fmt.Errorf("bridge: encode: unknown category %q", env.Type)
	}
	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	if env.RequestID != "" {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("bridge: encode: data is not a JSON object: %w", err)
		}
		id, _ := json.Marshal(env.RequestID)
		fields["requestId"] = id
		merged, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("bridge: encode: %w", err)
		}
		data = merged
	}
	out, err := json.Marshal(wireEnvelope{Type: env.Type, Data: data})
	if err != nil {
		return nil, fmt.Errorf("bridge: encode: %w", err)
	}
	return out, nil
}

// Decode parses a wire message back into an envelope, extracting the
// correlation ID from the data object if present.
func Decode(raw []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !wire.Type.Valid() {
		return Envelope{}, fmt.Errorf("%w: unknown category %q", ErrDecode, wire.Type)
	}
	env := Envelope{Type: wire.Type, Data: wire.Data}
	if len(wire.Data) > 0 {
		var id wireRequestID
		if err := json.Unmarshal(wire.Data, &id); err != nil {
			return Envelope{}, fmt.Errorf("%w: data is not a JSON object: %v", ErrDecode, err)
		}
		env.RequestID = id.RequestID
	}
	if env.Data == nil {
		env.Data = json.RawMessage(`{}`)
	}
	return env, nil
}
