package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c *gin.Context) string

// ByClientIP counts requests per client address.
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// BySession counts requests per bearer credential, so admins sharing an
// address do not share a budget. Anonymous requests fall back to the client
// address. The credential itself is not kept; only a name-based UUID of it.
func BySession(c *gin.Context) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if auth == "" {
		return ByClientIP(c)
	}
	return "session:" + uuid.NewSHA1(uuid.NameSpaceOID, []byte(auth)).String()
}

// NewRateLimiter creates a Gin middleware allowing requests per period for
// each key. period is a duration string such as "1m" or "1h". A nil key
// counts by client address.
func NewRateLimiter(requests int64, period string, key KeyFunc) (gin.HandlerFunc, error) {
	duration, err := time.ParseDuration(period)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit period %q: %w", period, err)
	}
	if requests <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", requests)
	}
	if key == nil {
		key = ByClientIP
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: duration, Limit: requests})
	return mgin.NewMiddleware(instance,
		mgin.WithKeyGetter(mgin.KeyGetter(key)),
		mgin.WithLimitReachedHandler(limitReached),
	), nil
}

// NewLoginRateLimiter limits password attempts per client address and minute.
func NewLoginRateLimiter(perMinute int64) (gin.HandlerFunc, error) {
	return NewRateLimiter(perMinute, "1m", ByClientIP)
}

func limitReached(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}
