package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// AuthResult is the backend's answer to login and registration.
type AuthResult struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	ExpiresAt    int64           `json:"expiresAt,omitempty"` // epoch ms
	User         json.RawMessage `json:"user,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token. Not retried: re-issuing a login
// blindly can trip lockout counters.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var result AuthResult
	err := c.DoJSON(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/auth/login",
		Body:    loginRequest{Email: email, Password: password},
		NoRetry: true,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Register creates an account and returns its first token. Not retried.
func (c *Client) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	var result AuthResult
	err := c.DoJSON(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/auth/register",
		Body:    registerRequest{Name: name, Email: email, Password: password},
		NoRetry: true,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout invalidates the server-side session. Local token state is the
// token manager's concern, not this call's.
func (c *Client) Logout(ctx context.Context) error {
	return c.DoJSON(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/logout",
	}, nil)
}
