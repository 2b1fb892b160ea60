package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/upstream"
)

// HealthStatus represents the health of the gateway.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status   HealthStatus     `json:"status"`
	Upstream *upstream.Status `json:"upstream,omitempty"`
}

// UpstreamChecker probes the backend.
type UpstreamChecker interface {
	Check(ctx context.Context) upstream.Status
	Last() upstream.Status
}

// HealthHandler handles health-related HTTP endpoints.
type HealthHandler struct {
	checker UpstreamChecker
	logger  zerolog.Logger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checker UpstreamChecker, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		logger:  logger.With().Str("component", "health_handler").Logger(),
	}
}

// RegisterPublicRoutes registers health check routes.
func (h *HealthHandler) RegisterPublicRoutes(r *gin.Engine) {
	health := r.Group("/health")
	{
		health.GET("", h.Overall)
		health.GET("/upstream", h.Upstream)
	}
}

// Overall reports the gateway as alive. The last scheduled upstream probe is
// attached; a failing backend degrades the status without failing the check.
// GET /health
func (h *HealthHandler) Overall(c *gin.Context) {
	resp := HealthResponse{Status: HealthStatusHealthy}
	if h.checker != nil {
		last := h.checker.Last()
		if !last.CheckedAt.IsZero() {
			resp.Upstream = &last
			if !last.Healthy {
				resp.Status = HealthStatusDegraded
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Upstream probes the backend now.
// GET /health/upstream
func (h *HealthHandler) Upstream(c *gin.Context) {
	if h.checker == nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: HealthStatusUnhealthy})
		return
	}

	st := h.checker.Check(c.Request.Context())
	if !st.Healthy {
		h.logger.Warn().Str("error", st.Error).Int("status_code", st.StatusCode).Msg("upstream health check failed")
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: HealthStatusUnhealthy, Upstream: &st})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: HealthStatusHealthy, Upstream: &st})
}
