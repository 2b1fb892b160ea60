package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MacJediWizard/siteadmin/internal/upstream"
)

// seenRequest is what the fake backend received.
type seenRequest struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	ContentType   string
	Body          string
}

// fakeBackend answers every request with the configured status and body.
type fakeBackend struct {
	mu     sync.Mutex
	seen   []seenRequest
	calls  atomic.Int32
	status int
	body   string
	// respond, when set, overrides status and body per call number.
	respond func(n int32, w http.ResponseWriter)
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.seen = append(f.seen, seenRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		RawQuery:      r.URL.RawQuery,
		Authorization: r.Header.Get("Authorization"),
		ContentType:   r.Header.Get("Content-Type"),
		Body:          string(data),
	})
	f.mu.Unlock()

	n := f.calls.Add(1)
	if f.respond != nil {
		f.respond(n, w)
		return
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(f.body))
}

func (f *fakeBackend) last(t *testing.T) seenRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.seen, "backend was not called")
	return f.seen[len(f.seen)-1]
}

type proxyFixture struct {
	router  *gin.Engine
	backend *fakeBackend
}

func newProxyFixture(t *testing.T, backend *fakeBackend) *proxyFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := upstream.New(srv.URL, srv.Client(), zerolog.Nop())
	require.NoError(t, err)
	retrying := upstream.NewRetrying(client, upstream.RetryOptions{
		Timeout: time.Second,
		Retries: 2,
		Backoff: time.Millisecond,
	})

	r := gin.New()
	api := r.Group("/api")
	NewAuthHandler(client, retrying, nil, zerolog.Nop()).RegisterRoutes(api)
	NewConfigsHandler(client, nil, zerolog.Nop()).RegisterRoutes(api)
	NewPassthroughHandler("/api", client.ReverseProxy()).RegisterPublicRoutes(r)

	return &proxyFixture{router: r, backend: backend}
}

func (f *proxyFixture) do(method, target, contentType, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestConfigList(t *testing.T) {
	t.Run("unwraps items and total", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `{"code":0,"data":{"items":[3],"total":3}}`})

		w := f.do(http.MethodGet, "/api/config/list?page=1&keyword=", "", "", "Authorization", "Bearer t")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items":[3],"total":3}`, w.Body.String())
		seen := f.backend.last(t)
		assert.Equal(t, "/config/list", seen.Path)
		assert.Equal(t, "page=1&keyword=", seen.RawQuery)
		assert.Equal(t, "Bearer t", seen.Authorization)
	})

	t.Run("defaults when data is missing", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `{"code":0,"data":null}`})

		w := f.do(http.MethodGet, "/api/config/list", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())
	})

	t.Run("keeps upstream status", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{status: http.StatusInternalServerError, body: `{"code":500,"message":"boom"}`})

		w := f.do(http.MethodGet, "/api/config/list", "", "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())
	})

	t.Run("upstream 401 is reported as unauthorized", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{status: http.StatusUnauthorized, body: `{"code":401}`})

		w := f.do(http.MethodGet, "/api/config/list", "", "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	})

	t.Run("non JSON answer is a 502", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `<html>oops</html>`})

		w := f.do(http.MethodGet, "/api/config/list", "", "")

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"error":"upstream_error"}`, w.Body.String())
	})
}

func TestConfigReads(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		backend string
		want    string
	}{
		{"item present", "/api/config/item?key=site.title", `{"code":0,"data":{"item":{"key":"site.title"}}}`, `{"item":{"key":"site.title"}}`},
		{"item missing", "/api/config/item?key=x", `{"code":404,"message":"not found"}`, `{"item":null}`},
		{"versions", "/api/config/versions?key=k", `{"code":0,"data":{"items":[{"version":2}]}}`, `{"items":[{"version":2}]}`},
		{"export", "/api/config/export", `{"code":0,"data":{}}`, `{"items":[]}`},
		{"stats unwraps data", "/api/config/stats", `{"code":0,"data":{"total":7}}`, `{"total":7}`},
		{"stats without envelope", "/api/config/stats", `{"total":7}`, `{"total":7}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProxyFixture(t, &fakeBackend{body: tt.backend})

			w := f.do(http.MethodGet, tt.target, "", "")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
			assert.Equal(t, strings.SplitN(strings.TrimPrefix(tt.target, "/api"), "?", 2)[0], f.backend.last(t).Path)
		})
	}
}

func TestConfigMutations(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		backend string
		want    string
	}{
		{"create succeeds by code", http.MethodPost, "/api/config/create", `{"code":0,"message":"created"}`, `{"ok":true,"message":"created"}`},
		{"update fails without message", http.MethodPut, "/api/config/update", `{"code":1}`, `{"ok":false}`},
		{"delete succeeds by data ok", http.MethodDelete, "/api/config/delete", `{"code":7,"data":{"ok":true}}`, `{"ok":true}`},
		{"rollback", http.MethodPost, "/api/config/rollback", `{"code":0,"data":{"ok":false},"message":"rolled back"}`, `{"ok":true,"message":"rolled back"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProxyFixture(t, &fakeBackend{body: tt.backend})

			w := f.do(tt.method, tt.target, "application/json", `{"key":"k","value":"v"}`)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
			seen := f.backend.last(t)
			assert.Equal(t, tt.method, seen.Method)
			assert.Equal(t, "application/json", seen.ContentType)
			assert.JSONEq(t, `{"key":"k","value":"v"}`, seen.Body)
		})
	}

	t.Run("delete by query without a body", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `{"code":0,"data":{"ok":true}}`})

		w := f.do(http.MethodDelete, "/api/config/delete?namespace=site&env=prod&key=title&version=3", "", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ok":true}`, w.Body.String())
		seen := f.backend.last(t)
		assert.Equal(t, "namespace=site&env=prod&key=title&version=3", seen.RawQuery)
		assert.Empty(t, seen.Body)
		assert.Empty(t, seen.ContentType)
	})

	t.Run("invalid JSON body is a 502 without calling the backend", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `{"code":0}`})

		w := f.do(http.MethodDelete, "/api/config/delete", "application/json", `{broken`)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"error":"upstream_error"}`, w.Body.String())
		assert.Equal(t, int32(0), f.backend.calls.Load())
	})
}

func TestConfigImport(t *testing.T) {
	f := newProxyFixture(t, &fakeBackend{body: `{"code":0,"data":{"added":2,"updated":1},"message":"done"}`})

	w := f.do(http.MethodPost, "/api/config/import", "application/json", `{"items":[]}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"added":2,"updated":1,"message":"done"}`, w.Body.String())
}

func TestConfigRefresh(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantReason string
	}{
		{"empty body", "", `{"reason":"frontend-refresh"}`},
		{"blank reason", `{"reason":""}`, `{"reason":"frontend-refresh"}`},
		{"explicit reason", `{"reason":"manual"}`, `{"reason":"manual"}`},
		{"not JSON", `reason=manual`, `{"reason":"frontend-refresh"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProxyFixture(t, &fakeBackend{body: `{"code":0,"data":{"refreshed":4}}`})

			w := f.do(http.MethodPost, "/api/config/refresh", "application/json", tt.body)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, `{"refreshed":4}`, w.Body.String())
			assert.JSONEq(t, tt.wantReason, f.backend.last(t).Body)
		})
	}
}

func TestAuthLogin(t *testing.T) {
	const answer = `{"code":0,"data":{"token":"tok","expiresAt":1700000000,"user":{"id":1}}}`

	tests := []struct {
		name        string
		contentType string
		body        string
		wantForm    string
	}{
		{"json body", "application/json", `{"password":"pw","ttl":3600}`, "password=pw&ttl=3600"},
		{"form body", "application/x-www-form-urlencoded", "password=pw&ttl=60", "password=pw&ttl=60"},
		{"untyped json", "text/plain", `{"password":"pw"}`, "password=pw"},
		{"untyped form", "", "password=pw", "password=pw"},
		{"non positive ttl dropped", "application/json", `{"password":"pw","ttl":"0"}`, "password=pw"},
		{"numeric string ttl", "application/json", `{"password":"pw","ttl":"90s"}`, "password=pw&ttl=90"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProxyFixture(t, &fakeBackend{body: answer})

			w := f.do(http.MethodPost, "/api/auth/login", tt.contentType, tt.body)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.JSONEq(t, `{"token":"tok","expiresAt":1700000000,"user":{"id":1}}`, w.Body.String())
			seen := f.backend.last(t)
			assert.Equal(t, "/auth/login", seen.Path)
			assert.Equal(t, "application/x-www-form-urlencoded", seen.ContentType)
			assert.Equal(t, tt.wantForm, seen.Body)
		})
	}

	t.Run("falls back to access_token and bare data", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `{"code":0,"data":{"access_token":"a","name":"root"}}`})

		w := f.do(http.MethodPost, "/api/auth/login", "application/json", `{"password":"pw"}`)

		assert.JSONEq(t, `{"token":"a","expiresAt":null,"user":{"access_token":"a","name":"root"}}`, w.Body.String())
	})

	t.Run("missing fields are null", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{status: http.StatusBadRequest, body: `{"code":400,"message":"bad password"}`})

		w := f.do(http.MethodPost, "/api/auth/login", "application/json", `{"password":"nope"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"token":null,"expiresAt":null,"user":null}`, w.Body.String())
	})
}

func TestAuthLogout(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		backend string
		want    string
	}{
		{"enveloped success", http.StatusOK, `{"code":0,"data":{"loggedOut":true},"message":"ok"}`, `{"loggedOut":true,"code":0,"message":"ok"}`},
		{"enveloped failure", http.StatusOK, `{"code":1}`, `{"loggedOut":false,"code":1,"message":""}`},
		{"bare flag", http.StatusOK, `{"loggedOut":false}`, `{"loggedOut":false}`},
		{"status fallback", http.StatusOK, `{}`, `{"loggedOut":true}`},
		{"status fallback on error", http.StatusInternalServerError, `{}`, `{"loggedOut":false}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProxyFixture(t, &fakeBackend{status: tt.status, body: tt.backend})

			w := f.do(http.MethodPost, "/api/auth/logout", "", "", "Authorization", "Bearer t")

			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
			assert.Equal(t, "Bearer t", f.backend.last(t).Authorization)
		})
	}
}

func TestAuthMe(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		want    string
	}{
		{"nested user", `{"code":0,"data":{"user":{"id":1}}}`, `{"user":{"id":1}}`},
		{"bare data", `{"code":0,"data":{"id":2}}`, `{"user":{"id":2}}`},
		{"nothing", `{"code":0}`, `{"user":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProxyFixture(t, &fakeBackend{body: tt.backend})

			w := f.do(http.MethodGet, "/api/auth/me", "", "", "Authorization", "Bearer t")

			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestAuthGenerateURLToken(t *testing.T) {
	t.Run("requires authorization", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `{}`})

		w := f.do(http.MethodPost, "/api/auth/generate-url-token", "application/json", `{"ttl":60}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
		assert.Equal(t, int32(0), f.backend.calls.Load())
	})

	t.Run("relays the answer verbatim", func(t *testing.T) {
		const answer = `{"code":0,"data":{"token":"u","expires_at":1,"login_url":"/login?token=u"}}`
		f := newProxyFixture(t, &fakeBackend{status: http.StatusCreated, body: answer})

		w := f.do(http.MethodPost, "/api/auth/generate-url-token", "application/json",
			`{"description":"share","ttl":"60","token_via":"query","extra":1}`, "Authorization", "Bearer t")

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, answer, w.Body.String())
		seen := f.backend.last(t)
		assert.Equal(t, "Bearer t", seen.Authorization)
		assert.Equal(t, "description=share&token_via=query&ttl=60", seen.Body)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{respond: func(n int32, w http.ResponseWriter) {
			if n < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"code":0,"data":{"token":"u"}}`))
		}})

		w := f.do(http.MethodPost, "/api/auth/generate-url-token", "application/x-www-form-urlencoded",
			"ttl=30", "Authorization", "Bearer t")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int32(3), f.backend.calls.Load())
	})

	t.Run("gives up with a message", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{status: http.StatusBadGateway, body: `bad gateway`})

		w := f.do(http.MethodPost, "/api/auth/generate-url-token", "", "", "Authorization", "Bearer t")

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.JSONEq(t, `{"error":"upstream_error","message":"Backend service temporarily unavailable"}`, w.Body.String())
		assert.Equal(t, int32(3), f.backend.calls.Load())
	})
}

func TestPassthrough(t *testing.T) {
	t.Run("relays unreshaped areas", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{status: http.StatusAccepted, body: `{"code":0,"data":[1,2]}`})

		w := f.do(http.MethodPost, "/api/blog/articles?page=2", "application/json", `{"title":"t"}`, "Authorization", "Bearer t")

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"code":0,"data":[1,2]}`, w.Body.String())
		seen := f.backend.last(t)
		assert.Equal(t, "/blog/articles", seen.Path)
		assert.Equal(t, "page=2", seen.RawQuery)
		assert.Equal(t, "Bearer t", seen.Authorization)
		assert.Equal(t, `{"title":"t"}`, seen.Body)
	})

	t.Run("dedicated routes win", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `{"code":0,"data":{"items":[],"total":0}}`})

		w := f.do(http.MethodGet, "/api/config/list", "", "")

		assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())
	})

	t.Run("other config paths pass through", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `{"code":0}`})

		w := f.do(http.MethodGet, "/api/config/history/site.title", "", "")

		assert.JSONEq(t, `{"code":0}`, w.Body.String())
		assert.Equal(t, "/config/history/site.title", f.backend.last(t).Path)
	})

	t.Run("unknown areas are 404", func(t *testing.T) {
		f := newProxyFixture(t, &fakeBackend{body: `{}`})

		w := f.do(http.MethodGet, "/api/unknown/x", "", "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, int32(0), f.backend.calls.Load())
	})
}

func TestPassthroughMatches(t *testing.T) {
	h := NewPassthroughHandler("/api/", http.NotFoundHandler())
	tests := []struct {
		path string
		want bool
	}{
		{"/api/file/list", true},
		{"/api/daily/", true},
		{"/api/logs", true},
		{"/api/", false},
		{"/api/files/list", false},
		{"/file/list", false},
		{"/apiblog/x", false},
	}
	for _, tt := range tests {
		if got := h.Matches(tt.path); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
