package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// cspAPI is a strict Content-Security-Policy for routes that return JSON or
// relayed backend content. Nothing served by the gateway loads resources.
const cspAPI = "default-src 'none'; frame-ancestors 'none'"

const hstsValue = "max-age=31536000; includeSubDomains"

// SecurityHeaders sets browser hardening headers. Responses under
// credentialPrefix carry tokens and are marked uncacheable. HSTS is sent on
// TLS requests and on requests a TLS-terminating proxy marked as https.
func SecurityHeaders(credentialPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", cspAPI)

		if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
			h.Set("Strict-Transport-Security", hstsValue)
		}
		if credentialPrefix != "" && strings.HasPrefix(c.Request.URL.Path, credentialPrefix) {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
		}

		c.Next()
	}
}
