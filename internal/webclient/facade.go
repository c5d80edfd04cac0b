package webclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/verandahq/veranda/internal/bridge"
	"github.com/verandahq/veranda/internal/capability"
)

// BridgeError is a failure reported by the shell side of the bridge: the
// request crossed the channel, the handler answered, and the answer was no.
type BridgeError struct {
	Message string
}

func (e *BridgeError) Error() string { return "bridge: " + e.Message }

// Facade is the typed helper surface the hosted web app calls. Every
// method builds one envelope, sends it through the correlator, and decodes
// the response envelope's result.
type Facade struct {
	c *Correlator
}

// NewFacade wraps a correlator.
func NewFacade(c *Correlator) *Facade { return &Facade{c: c} }

func (f *Facade) call(ctx context.Context, category bridge.ActionCategory, payload any, dest any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	resp, err := f.c.Call(ctx, bridge.Envelope{Type: category, Data: data})
	if err != nil {
		return err
	}
	if !resp.Success {
		return &BridgeError{Message: resp.Error}
	}
	if dest == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, dest); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

// CallAPI asks the shell to perform an HTTP operation against the backend.
func (f *Facade) CallAPI(ctx context.Context, method, endpoint string, query map[string]any, body any) (json.RawMessage, error) {
	payload := map[string]any{"method": method, "endpoint": endpoint}
	if query != nil {
		payload["query"] = query
	}
	if body != nil {
		payload["body"] = body
	}
	var result json.RawMessage
	if err := f.call(ctx, bridge.CategoryAPICall, payload, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// AuthState is the facade's view of an authentication outcome.
type AuthState struct {
	Authenticated bool            `json:"authenticated"`
	Token         string          `json:"token,omitempty"`
	User          json.RawMessage `json:"user,omitempty"`
}

// Login authenticates with the backend through the shell and persists the
// resulting token natively.
func (f *Facade) Login(ctx context.Context, email, password string) (*AuthState, error) {
	var out struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	err := f.call(ctx, bridge.CategoryAuth,
		map[string]string{"action": "login", "email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &AuthState{Authenticated: out.Token != "", Token: out.Token, User: out.User}, nil
}

// Register creates an account and persists its first token natively.
func (f *Facade) Register(ctx context.Context, name, email, password string) (*AuthState, error) {
	var out struct {
		Token string          `json:"token"`
		User  json.RawMessage `json:"user"`
	}
	err := f.call(ctx, bridge.CategoryAuth,
		map[string]string{"action": "register", "name": name, "email": email, "password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &AuthState{Authenticated: out.Token != "", Token: out.Token, User: out.User}, nil
}

// Logout drops the credential on both sides.
func (f *Facade) Logout(ctx context.Context) error {
	return f.call(ctx, bridge.CategoryAuth, map[string]string{"action": "logout"}, nil)
}

// StoredAuth reads the shell's persisted auth state without a network call.
func (f *Facade) StoredAuth(ctx context.Context) (*AuthState, error) {
	var out AuthState
	if err := f.call(ctx, bridge.CategoryAuth, map[string]string{"action": "getStoredAuth"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TokenSync is a credential the web side pushes to the shell when it
// authenticated first (e.g. through an in-page OAuth flow).
type TokenSync struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	ExpiryTime   int64           `json:"expiryTime,omitempty"`
	User         json.RawMessage `json:"user,omitempty"`
}

// SyncToken overwrites the shell's stored credential with the web side's.
func (f *Facade) SyncToken(ctx context.Context, sync TokenSync) error {
	return f.call(ctx, bridge.CategoryAuth, map[string]any{
		"action":       "syncToken",
		"token":        sync.Token,
		"refreshToken": sync.RefreshToken,
		"expiryTime":   sync.ExpiryTime,
		"user":         sync.User,
	}, nil)
}

// Cart returns the current cart contents.
func (f *Facade) Cart(ctx context.Context) (json.RawMessage, error) {
	var result json.RawMessage
	if err := f.call(ctx, bridge.CategoryCart, map[string]string{"action": "get"}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// AddToCart adds an item.
func (f *Facade) AddToCart(ctx context.Context, item any) (json.RawMessage, error) {
	var result json.RawMessage
	err := f.call(ctx, bridge.CategoryCart, map[string]any{"action": "add", "item": item}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateCartItem changes an item's quantity.
func (f *Facade) UpdateCartItem(ctx context.Context, productID string, quantity int) error {
	return f.call(ctx, bridge.CategoryCart,
		map[string]any{"action": "update", "productId": productID, "quantity": quantity}, nil)
}

// RemoveFromCart removes an item.
func (f *Facade) RemoveFromCart(ctx context.Context, productID string) error {
	return f.call(ctx, bridge.CategoryCart, map[string]any{"action": "remove", "productId": productID}, nil)
}

// ClearCart empties the cart.
func (f *Facade) ClearCart(ctx context.Context) error {
	return f.call(ctx, bridge.CategoryCart, map[string]string{"action": "clear"}, nil)
}

// CapturePhoto opens the native camera.
func (f *Facade) CapturePhoto(ctx context.Context) (*capability.Photo, error) {
	var photo capability.Photo
	if err := f.call(ctx, bridge.CategoryCamera, map[string]string{"action": "capture"}, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

// PickPhoto opens the native gallery picker.
func (f *Facade) PickPhoto(ctx context.Context) (*capability.Photo, error) {
	var photo capability.Photo
	if err := f.call(ctx, bridge.CategoryCamera, map[string]string{"action": "pick"}, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

// MeasureRoom runs the simulated AR measurement.
func (f *Facade) MeasureRoom(ctx context.Context) (*capability.Measurement, error) {
	var m capability.Measurement
	if err := f.call(ctx, bridge.CategoryCamera, map[string]string{"action": "measure"}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PaymentMethods lists the available payment methods.
func (f *Facade) PaymentMethods(ctx context.Context) (json.RawMessage, error) {
	var result json.RawMessage
	if err := f.call(ctx, bridge.CategoryPayment, map[string]string{"action": "methods"}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreatePaymentIntent starts a payment for an order.
func (f *Facade) CreatePaymentIntent(ctx context.Context, orderID string) (json.RawMessage, error) {
	var result json.RawMessage
	err := f.call(ctx, bridge.CategoryPayment, map[string]string{"action": "createIntent", "orderId": orderID}, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConfirmPayment confirms a payment intent. Never retried.
func (f *Facade) ConfirmPayment(ctx context.Context, intentID string, details any) (json.RawMessage, error) {
	payload := map[string]any{"action": "confirm", "intentId": intentID}
	if details != nil {
		payload["details"] = details
	}
	var result json.RawMessage
	if err := f.call(ctx, bridge.CategoryPayment, payload, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CheckPermission queries a permission's status without prompting.
func (f *Facade) CheckPermission(ctx context.Context, name string) (capability.PermissionStatus, error) {
	var out struct {
		Status capability.PermissionStatus `json:"status"`
	}
	err := f.call(ctx, bridge.CategoryPermissions, map[string]string{"action": "check", "name": name}, &out)
	if err != nil {
		return "", err
	}
	return out.Status, nil
}

// RequestPermission prompts the user for a permission.
func (f *Facade) RequestPermission(ctx context.Context, name string) (capability.PermissionStatus, error) {
	var out struct {
		Status capability.PermissionStatus `json:"status"`
	}
	err := f.call(ctx, bridge.CategoryPermissions, map[string]string{"action": "request", "name": name}, &out)
	if err != nil {
		return "", err
	}
	return out.Status, nil
}

// Notify displays a native notification.
func (f *Facade) Notify(ctx context.Context, title, body string) error {
	return f.call(ctx, bridge.CategoryNotification,
		map[string]string{"action": "show", "title": title, "body": body}, nil)
}
