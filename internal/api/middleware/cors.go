package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/config"
)

// ErrOpenCORS is returned when production starts without CORS origins.
var ErrOpenCORS = errors.New("CORS_ORIGINS must be set in production")

const (
	corsAllowHeaders  = "Content-Type, Authorization, X-Requested-With, X-Request-ID"
	corsAllowMethods  = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsExposeHeaders = "X-Request-ID, X-RateLimit-Limit, X-RateLimit-Remaining, X-RateLimit-Reset"
)

// originRule matches an Origin exactly, or any subdomain when host starts
// with "*.", as for preview deployments of the admin frontend.
type originRule struct {
	scheme string
	host   string
	suffix string
}

func parseOriginRule(raw string) (originRule, error) {
	u, err := url.Parse(strings.ToLower(strings.TrimSuffix(strings.TrimSpace(raw), "/")))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return originRule{}, fmt.Errorf("invalid CORS origin %q", raw)
	}
	if rest, ok := strings.CutPrefix(u.Host, "*."); ok {
		return originRule{scheme: u.Scheme, suffix: "." + rest}, nil
	}
	return originRule{scheme: u.Scheme, host: u.Host}, nil
}

func (r originRule) match(scheme, host string) bool {
	if scheme != r.scheme {
		return false
	}
	if r.suffix != "" {
		return strings.HasSuffix(host, r.suffix) && len(host) > len(r.suffix)
	}
	return host == r.host
}

// CORS handles Cross-Origin Resource Sharing. Outside production an empty
// origin list allows every origin. Preflights are answered here; other
// OPTIONS requests continue to the backend.
func CORS(allowedOrigins []string, env config.Environment, logger zerolog.Logger) (gin.HandlerFunc, error) {
	if len(allowedOrigins) == 0 {
		if env == config.EnvProduction {
			return nil, ErrOpenCORS
		}
		logger.Warn().Str("component", "cors").Msg("CORS_ORIGINS is empty, all origins are allowed")
	}

	rules := make([]originRule, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		rule, err := parseOriginRule(origin)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	allowed := func(origin string) bool {
		if len(rules) == 0 {
			return true
		}
		u, err := url.Parse(strings.ToLower(origin))
		if err != nil {
			return false
		}
		for _, r := range rules {
			if r.match(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		ok := allowed(origin)
		if ok {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", corsExposeHeaders)
		}

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			if ok {
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Max-Age", "86400")
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}, nil
}
