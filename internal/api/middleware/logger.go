package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const redacted = "[REDACTED]"

// credentialParams are query keys that can carry a login credential, such as
// the token of a generated login link.
var credentialParams = []string{"token", "access_token", "url_token", "password", "secret"}

func isCredentialParam(name string) bool {
	for _, p := range credentialParams {
		if strings.EqualFold(name, p) {
			return true
		}
	}
	return false
}

// redactQueryString masks credential values. The query is returned as sent
// when nothing needed masking.
func redactQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "[UNPARSEABLE]"
	}

	masked := false
	for name, values := range params {
		if !isCredentialParam(name) {
			continue
		}
		for i := range values {
			values[i] = redacted
		}
		masked = true
	}
	if !masked {
		return rawQuery
	}
	return params.Encode()
}

// RequestLogger logs one line per request. Requests to quietPaths, such as
// probe endpoints, are logged at debug level while they succeed. The
// Authorization header is never logged; only its presence is.
func RequestLogger(logger zerolog.Logger, quietPaths ...string) gin.HandlerFunc {
	log := logger.With().Str("component", "http").Logger()
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := redactQueryString(c.Request.URL.RawQuery)

		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		case quiet[path]:
			event = log.Debug()
		default:
			event = log.Info()
		}

		route := c.FullPath()
		if route == "" {
			route = "passthrough"
		}
		if errs := c.Errors.ByType(gin.ErrorTypeAny); len(errs) > 0 {
			event = event.Str("errors", errs.String())
		}

		event.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", path).
			Str("query", query).
			Bool("authorized", c.GetHeader("Authorization") != "").
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("body_size", c.Writer.Size()).
			Msg("request")
	}
}
