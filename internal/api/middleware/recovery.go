package middleware

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery turns a panic in a handler into 502 {"error":"upstream_error"}.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	log := logger.With().Str("component", "recovery").Logger()

	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		log.Error().
			Interface("panic", recovered).
			Str("request_id", GetRequestID(c)).
			Str("path", c.Request.URL.Path).
			Msg("handler panicked")
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "upstream_error"})
	})
}
