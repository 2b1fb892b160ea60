// Package auth wraps the login, session and URL-token endpoints.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
)

// Route prefixes. The backend serves /auth directly; the gateway serves
// normalised versions of the same operations under /api/auth.
const (
	BackendPrefix = "/auth"
	GatewayPrefix = "/api/auth"
)

// Session is the result of a successful login.
type Session struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
	User      *User  `json:"user,omitempty"`
}

// User is the authenticated principal.
type User struct {
	ID       string   `json:"id,omitempty"`
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
}

// URLTokenRequest parameterises GenerateURLToken. Zero values are omitted.
type URLTokenRequest struct {
	Description string
	// TTL in seconds; 0 uses the server default.
	TTL      int64
	TokenVia string
}

// URLToken is a one-off credential embedded in a login link.
type URLToken struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
	LoginURL  string `json:"login_url"`
}

// API exposes the auth operations.
type API struct {
	c      apiclient.Requester
	prefix string
}

// New creates an API talking to the backend routes.
func New(c apiclient.Requester) *API {
	return NewAt(c, BackendPrefix)
}

// NewAt creates an API rooted at prefix, e.g. GatewayPrefix.
func NewAt(c apiclient.Requester, prefix string) *API {
	return &API{c: c, prefix: prefix}
}

// Login exchanges the admin password for a credential. ttl in seconds is
// only honoured by non-production backends; 0 omits it.
func (a *API) Login(ctx context.Context, password string, ttl int64) (*Session, error) {
	form := url.Values{"password": {password}}
	if ttl > 0 {
		form.Set("ttl", strconv.FormatInt(ttl, 10))
	}

	var out Session
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: a.prefix + "/login", Body: form}, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login: response carried no token")
	}
	return &out, nil
}

// Me returns the current user. Both {user: {...}} and a bare user object are
// accepted; a missing user yields nil without error.
func (a *API) Me(ctx context.Context) (*User, error) {
	var raw json.RawMessage
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: a.prefix + "/me"}, &raw); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return decodeUser(raw)
}

func decodeUser(raw json.RawMessage) (*User, error) {
	var wrapped struct {
		User json.RawMessage `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if len(wrapped.User) > 0 {
		raw = wrapped.User
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	if u.Username == "" && u.ID == "" {
		return nil, nil
	}
	return &u, nil
}

// Logout revokes the current credential server-side and reports whether the
// backend confirmed it. The local credential is left to the caller.
func (a *API) Logout(ctx context.Context) (bool, error) {
	var out struct {
		LoggedOut bool `json:"loggedOut"`
	}
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: a.prefix + "/logout"}, &out); err != nil {
		return false, fmt.Errorf("logout: %w", err)
	}
	return out.LoggedOut, nil
}

// GenerateURLToken mints a credential for a login link.
func (a *API) GenerateURLToken(ctx context.Context, in URLTokenRequest) (*URLToken, error) {
	form := url.Values{}
	if in.Description != "" {
		form.Set("description", in.Description)
	}
	if in.TTL > 0 {
		form.Set("ttl", strconv.FormatInt(in.TTL, 10))
	}
	if in.TokenVia != "" {
		form.Set("token_via", in.TokenVia)
	}

	var out URLToken
	if err := a.c.Do(ctx, &apiclient.Request{Method: http.MethodPost, Path: a.prefix + "/generate-url-token", Body: form}, &out); err != nil {
		return nil, fmt.Errorf("generate url token: %w", err)
	}
	return &out, nil
}
