package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/verandahq/veranda/internal/token"
)

type authPayload struct {
	Action   string `json:"action"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`

	// syncToken fields: a credential pushed by the web side when it
	// authenticated first.
	Token        string          `json:"token,omitempty"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	ExpiryTime   int64           `json:"expiryTime,omitempty"`
	User         json.RawMessage `json:"user,omitempty"`
}

// storedAuth is the read-through answer for getStoredAuth: persisted state
// only, never a network call.
type storedAuth struct {
	Authenticated bool            `json:"authenticated"`
	Token         string          `json:"token,omitempty"`
	User          json.RawMessage `json:"user,omitempty"`
}

type authOutcome struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user,omitempty"`
}

func (r *Router) handleAuth(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	var payload authPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("bad AUTH payload: %w", err)
	}

	switch payload.Action {
	case "login":
		result, err := r.api.Login(ctx, payload.Email, payload.Password)
		if err != nil {
			return nil, err
		}
		return r.persistAuth(ctx, result.Token, result.RefreshToken, result.ExpiresAt, result.User)

	case "register":
		result, err := r.api.Register(ctx, payload.Name, payload.Email, payload.Password)
		if err != nil {
			return nil, err
		}
		return r.persistAuth(ctx, result.Token, result.RefreshToken, result.ExpiresAt, result.User)

	case "logout":
		// Best-effort server-side invalidation; local state is cleared
		// regardless so the shell never keeps a credential the user
		// asked to drop.
		if err := r.api.Logout(ctx); err != nil {
			r.logger.Warn("server logout failed", "error", err)
		}
		if err := r.tokens.Clear(ctx); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]bool{"loggedOut": true})

	case "getStoredAuth":
		tok, err := r.tokens.GetValidToken(ctx)
		if err != nil {
			return nil, err
		}
		user, err := r.tokens.User(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(storedAuth{Authenticated: tok != "", Token: tok, User: user})

	case "syncToken":
		if payload.Token == "" {
			return nil, fmt.Errorf("syncToken requires a token")
		}
		// Write-through: the web side is the source of truth here,
		// local storage is overwritten.
		return r.persistAuth(ctx, payload.Token, payload.RefreshToken, payload.ExpiryTime, payload.User)

	default:
		return nil, fmt.Errorf("unknown AUTH action %q", payload.Action)
	}
}

func (r *Router) persistAuth(ctx context.Context, tok, refresh string, expiry int64, user json.RawMessage) (json.RawMessage, error) {
	info := token.Info{AccessToken: tok, RefreshToken: refresh, ExpiryTime: expiry}
	if err := r.tokens.SetInfo(ctx, info); err != nil {
		return nil, fmt.Errorf("persist token: %w", err)
	}
	if len(user) > 0 {
		if err := r.tokens.SetUser(ctx, user); err != nil {
			return nil, fmt.Errorf("persist user: %w", err)
		}
	}
	return json.Marshal(authOutcome{Token: tok, User: user})
}
