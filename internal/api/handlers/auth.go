package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/metrics"
	"github.com/MacJediWizard/siteadmin/internal/upstream"
)

const formContentType = "application/x-www-form-urlencoded"

// AuthHandler serves /api/auth/*, reshaping backend answers for clients.
type AuthHandler struct {
	proxyBase
	urlTokens upstream.Forwarder
	loginMW   []gin.HandlerFunc
}

// NewAuthHandler creates an AuthHandler. urlTokens is used for
// generate-url-token and should retry; loginMW guards the login route.
func NewAuthHandler(fwd, urlTokens upstream.Forwarder, m *metrics.PrometheusMetrics, logger zerolog.Logger, loginMW ...gin.HandlerFunc) *AuthHandler {
	return &AuthHandler{
		proxyBase: proxyBase{
			upstream: fwd,
			metrics:  m,
			logger:   logger.With().Str("component", "auth_proxy").Logger(),
		},
		urlTokens: urlTokens,
		loginMW:   loginMW,
	}
}

// RegisterRoutes registers auth routes on the given router group.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		login := append([]gin.HandlerFunc{}, h.loginMW...)
		auth.POST("/login", append(login, h.Login)...)
		auth.POST("/logout", h.Logout)
		auth.GET("/me", h.Me)
		auth.POST("/generate-url-token", h.GenerateURLToken)
	}
}

// formFields extracts the named fields from a JSON, form or untyped body.
// Values are copied only when set; numeric keys are accepted only when
// positive. Unparseable JSON yields an empty form. When textFallback is set,
// bodies of other content types are tried as JSON and then as a form.
func formFields(contentType string, body []byte, textFallback bool, fields []string, numeric map[string]bool) url.Values {
	form := url.Values{}

	fromJSON := func(data []byte) bool {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
			return false
		}
		for _, name := range fields {
			v, ok := obj[name]
			if !ok {
				continue
			}
			if numeric[name] {
				if n, ok := positiveInt(v); ok {
					form.Set(name, n)
				}
				continue
			}
			if truthy(v) {
				form.Set(name, stringOf(v))
			}
		}
		return true
	}

	fromForm := func(data []byte) {
		incoming, err := url.ParseQuery(string(data))
		if err != nil {
			return
		}
		for _, name := range fields {
			if v := incoming.Get(name); v != "" {
				form.Set(name, v)
			}
		}
	}

	switch {
	case strings.Contains(contentType, "application/json"):
		fromJSON(body)
	case strings.Contains(contentType, formContentType):
		fromForm(body)
	case textFallback:
		if !fromJSON(body) {
			fromForm(body)
		}
	}
	return form
}

// Login relays a password login and answers {token, expiresAt, user}.
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	form := formFields(c.GetHeader("Content-Type"), body, true, []string{"password", "ttl"}, map[string]bool{"ttl": true})

	resp, backend, ok := h.call(c, "login", upstream.Call{
		Method:      http.MethodPost,
		Path:        "/auth/login",
		ContentType: formContentType,
		Body:        []byte(form.Encode()),
	})
	if !ok {
		return
	}

	c.JSON(resp.StatusCode, gin.H{
		"token":     backend.first(jsonNull, []string{"data", "token"}, []string{"data", "access_token"}, []string{"token"}),
		"expiresAt": backend.first(jsonNull, []string{"data", "expiresAt"}, []string{"expiresAt"}),
		"user":      backend.first(jsonNull, []string{"data", "user"}, []string{"data"}),
	})
}

// Logout relays a logout and answers {loggedOut} plus code and message for
// enveloped backends.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	resp, backend, ok := h.call(c, "logout", upstream.Call{Method: http.MethodPost, Path: "/auth/logout"})
	if !ok {
		return
	}

	if code, isNum := backend.code(); isNum {
		loggedOut := code == 0 && (backend.isTrue("data", "loggedOut") || backend.isTrue("loggedOut"))
		rawCode, _ := backend.get("code")
		c.JSON(resp.StatusCode, gin.H{
			"loggedOut": loggedOut,
			"code":      rawCode,
			"message":   backend.first(json.RawMessage(`""`), []string{"message"}),
		})
		return
	}

	fallback, _ := json.Marshal(resp.StatusCode == http.StatusOK)
	c.JSON(resp.StatusCode, gin.H{
		"loggedOut": backend.first(fallback, []string{"data", "loggedOut"}, []string{"loggedOut"}),
	})
}

// Me relays the current user lookup and answers {user}.
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	resp, backend, ok := h.call(c, "me", upstream.Call{Method: http.MethodGet, Path: "/auth/me"})
	if !ok {
		return
	}
	c.JSON(resp.StatusCode, gin.H{
		"user": backend.first(jsonNull, []string{"data", "user"}, []string{"data"}),
	})
}

// GenerateURLToken mints a login-link credential. The backend call is
// retried; when every attempt fails the answer is 502 with a message.
// POST /api/auth/generate-url-token
func (h *AuthHandler) GenerateURLToken(c *gin.Context) {
	authorization := c.GetHeader("Authorization")
	if authorization == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	body, err := readBody(c)
	if err != nil {
		h.fail(c, "generate-url-token", err)
		return
	}
	form := formFields(c.GetHeader("Content-Type"), body, false,
		[]string{"description", "ttl", "token_via"}, map[string]bool{"ttl": true})

	resp, err := h.urlTokens.Forward(c.Request.Context(), upstream.Call{
		Method:        http.MethodPost,
		Path:          "/auth/generate-url-token",
		Authorization: authorization,
		ContentType:   formContentType,
		Body:          []byte(form.Encode()),
	})
	if err != nil {
		if errors.Is(err, upstream.ErrUnavailable) {
			h.logger.Error().Err(err).Msg("generate url token failed after all retries")
			h.metrics.RecordUpstreamFailure("generate-url-token")
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "upstream_error",
				"message": "Backend service temporarily unavailable",
			})
			return
		}
		h.fail(c, "generate-url-token", err)
		return
	}

	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}
