package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/livia-app/livia/internal/apperr"
	"github.com/livia-app/livia/internal/auth"
)

// SignInResponse is the body of a successful sign-in or refresh.
type SignInResponse struct {
	Session   auth.Session    `json:"session"`
	Principal *auth.Principal `json:"principal,omitempty"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*auth.Session, error) {
	var out SignInResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.DoWithToken(ctx, "", http.MethodPost, "/api/auth/login", in, &out); err != nil {
		return nil, err
	}
	return &out.Session, nil
}

// Logout revokes the session behind token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.DoWithToken(ctx, token, http.MethodPost, "/api/auth/logout", nil, nil)
}

// RefreshSession exchanges token for a fresh session.
func (c *Client) RefreshSession(ctx context.Context, token string) (*auth.Session, error) {
	var out SignInResponse
	if err := c.DoWithToken(ctx, token, http.MethodPost, "/api/auth/refresh", nil, &out); err != nil {
		return nil, err
	}
	return &out.Session, nil
}

// CurrentSession validates token with the server.
func (c *Client) CurrentSession(ctx context.Context, token string) (*auth.Session, error) {
	var out auth.Session
	if err := c.DoWithToken(ctx, token, http.MethodGet, "/api/auth/session", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchProfile returns the caller's profile, or nil when none is stored
// or it does not belong to userID.
func (c *Client) FetchProfile(ctx context.Context, userID uuid.UUID) (*auth.Principal, error) {
	var p auth.Principal
	if err := c.Do(ctx, http.MethodGet, "/api/auth/profile", nil, &p); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if p.ID != userID {
		return nil, nil
	}
	return &p, nil
}

// Summary fetches the landing summary of an area root.
func (c *Client) Summary(ctx context.Context, root string) (map[string]int, error) {
	out := map[string]int{}
	if err := c.Do(ctx, http.MethodGet, root, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Workflow forwards a call through the area's workflow proxy.
func (c *Client) Workflow(ctx context.Context, root, endpoint string, data map[string]any) (json.RawMessage, error) {
	var out json.RawMessage
	in := map[string]any{"endpoint": endpoint, "data": data}
	if err := c.Do(ctx, http.MethodPost, root+"/workflow", in, &out); err != nil {
		return nil, err
	}
	return out, nil
}
