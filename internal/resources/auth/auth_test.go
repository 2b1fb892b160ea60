package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacJediWizard/siteadmin/internal/apiclient"
	"github.com/MacJediWizard/siteadmin/internal/token"
)

type captured struct {
	method      string
	path        string
	contentType string
	auth        string
	form        url.Values
}

func newTestAPI(t *testing.T, prefix, respond string) (*API, *captured, token.Store) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.contentType = r.Header.Get("Content-Type")
		got.auth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		got.form, _ = url.ParseQuery(string(data))
		w.Write([]byte(respond))
	}))
	t.Cleanup(srv.Close)

	store := token.NewMemoryStore()
	c, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, HTTPClient: srv.Client(), Tokens: store, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return NewAt(c, prefix), got, store
}

func TestLogin_Backend(t *testing.T) {
	api, got, _ := newTestAPI(t, BackendPrefix, `{"code":0,"message":"ok","data":{"token":"jwt-1","expiresAt":1767225600}}`)

	s, err := api.Login(context.Background(), "s3cret", 60)
	require.NoError(t, err)
	assert.Equal(t, "jwt-1", s.Token)
	assert.Equal(t, int64(1767225600), s.ExpiresAt)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/auth/login", got.path)
	assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
	assert.Equal(t, "s3cret", got.form.Get("password"))
	assert.Equal(t, "60", got.form.Get("ttl"))
}

func TestLogin_GatewayRawShape(t *testing.T) {
	api, got, _ := newTestAPI(t, GatewayPrefix, `{"token":"jwt-2","expiresAt":null,"user":{"username":"admin"}}`)

	s, err := api.Login(context.Background(), "pw", 0)
	require.NoError(t, err)
	assert.Equal(t, "/api/auth/login", got.path)
	assert.False(t, got.form.Has("ttl"))
	assert.Equal(t, "jwt-2", s.Token)
	assert.Zero(t, s.ExpiresAt)
	require.NotNil(t, s.User)
	assert.Equal(t, "admin", s.User.Username)
}

func TestLogin_Failures(t *testing.T) {
	api, _, _ := newTestAPI(t, BackendPrefix, `{"code":1001,"message":"invalid password"}`)
	_, err := api.Login(context.Background(), "bad", 0)
	var be *apiclient.BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "invalid password", be.Message)

	api, _, _ = newTestAPI(t, BackendPrefix, `{"code":0,"data":{}}`)
	_, err = api.Login(context.Background(), "pw", 0)
	assert.ErrorContains(t, err, "no token")
}

func TestMe(t *testing.T) {
	tests := []struct {
		name    string
		respond string
		want    *User
	}{
		{name: "wrapped", respond: `{"code":0,"data":{"user":{"username":"admin","roles":["admin"]}}}`, want: &User{Username: "admin", Roles: []string{"admin"}}},
		{name: "bare", respond: `{"code":0,"data":{"username":"admin"}}`, want: &User{Username: "admin"}},
		{name: "gateway", respond: `{"user":{"username":"admin","id":"1"}}`, want: &User{ID: "1", Username: "admin"}},
		{name: "gateway null", respond: `{"user":null}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api, got, store := newTestAPI(t, BackendPrefix, tt.respond)
			store.Set("jwt", 0)

			u, err := api.Me(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, u)
			assert.Equal(t, "Bearer jwt", got.auth)
		})
	}
}

func TestLogout(t *testing.T) {
	api, got, _ := newTestAPI(t, GatewayPrefix, `{"loggedOut":true,"code":0,"message":""}`)

	ok, err := api.Logout(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/api/auth/logout", got.path)
}

func TestGenerateURLToken(t *testing.T) {
	api, got, _ := newTestAPI(t, GatewayPrefix, `{"code":0,"data":{"token":"u-1","expires_at":1700000000,"login_url":"https://site/login?token=u-1"}}`)

	tok, err := api.GenerateURLToken(context.Background(), URLTokenRequest{Description: "share", TTL: 3600, TokenVia: "url"})
	require.NoError(t, err)
	assert.Equal(t, "u-1", tok.Token)
	assert.Equal(t, int64(1700000000), tok.ExpiresAt)
	assert.Equal(t, "https://site/login?token=u-1", tok.LoginURL)

	assert.Equal(t, "/api/auth/generate-url-token", got.path)
	assert.Equal(t, url.Values{"description": {"share"}, "ttl": {"3600"}, "token_via": {"url"}}, got.form)
}

func TestGenerateURLToken_OmitsZeroFields(t *testing.T) {
	api, got, _ := newTestAPI(t, BackendPrefix, `{"code":0,"data":{"token":"u-2"}}`)

	_, err := api.GenerateURLToken(context.Background(), URLTokenRequest{})
	require.NoError(t, err)
	assert.Empty(t, got.form)
}
