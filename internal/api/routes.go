// Package api provides the HTTP surface of the siteadmin gateway.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/api/handlers"
	"github.com/MacJediWizard/siteadmin/internal/api/middleware"
	"github.com/MacJediWizard/siteadmin/internal/config"
	"github.com/MacJediWizard/siteadmin/internal/metrics"
	"github.com/MacJediWizard/siteadmin/internal/upstream"
)

// Config holds configuration for the API router.
type Config struct {
	Environment config.Environment
	// AllowedOrigins for CORS. Empty allows any origin outside production.
	AllowedOrigins []string
	// RateLimitRequests is the number of requests allowed per period.
	RateLimitRequests int64
	// RateLimitPeriod is the duration string for rate limiting (e.g. "1m", "1h").
	RateLimitPeriod string
	// LoginRateLimit caps login attempts per client per minute. Zero disables it.
	LoginRateLimit int64
	// MaxBodyBytes caps request bodies. Zero disables the cap.
	MaxBodyBytes int64
	// Version information for the version endpoint.
	Version   string
	Commit    string
	BuildDate string
}

// DefaultConfig returns a Config with sensible defaults for development.
func DefaultConfig() Config {
	return Config{
		Environment:       config.EnvDevelopment,
		AllowedOrigins:    []string{},
		RateLimitRequests: 300,
		RateLimitPeriod:   "1m",
		LoginRateLimit:    10,
		MaxBodyBytes:      10 << 20,
		Version:           "dev",
	}
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	// Upstream forwards normalised calls and backs the pass-through proxy.
	Upstream *upstream.Client
	// URLTokens forwards generate-url-token calls. Nil uses Upstream.
	URLTokens upstream.Forwarder
	// Health reports backend reachability. Nil disables upstream probing.
	Health handlers.UpstreamChecker
	// Metrics records request and upstream series. Nil disables recording.
	Metrics *metrics.PrometheusMetrics
	// Gatherer backs /metrics. Nil hides the endpoint.
	Gatherer prometheus.Gatherer
}

// Router wraps a Gin engine with configured middleware and routes.
type Router struct {
	Engine *gin.Engine
	logger zerolog.Logger
}

// NewRouter creates a new Router with the given dependencies.
func NewRouter(cfg Config, deps Deps, logger zerolog.Logger) (*Router, error) {
	if deps.Upstream == nil {
		return nil, errors.New("router requires an upstream client")
	}
	if deps.URLTokens == nil {
		deps.URLTokens = deps.Upstream
	}

	r := &Router{
		Engine: gin.New(),
		logger: logger.With().Str("component", "router").Logger(),
	}

	cors, err := middleware.CORS(cfg.AllowedOrigins, cfg.Environment, logger)
	if err != nil {
		return nil, err
	}

	// Global middleware
	r.Engine.Use(middleware.Recovery(logger))
	r.Engine.Use(middleware.RequestID())
	r.Engine.Use(middleware.RequestLogger(logger, "/health", "/health/upstream", "/metrics"))
	r.Engine.Use(middleware.SecurityHeaders("/api/auth/"))
	r.Engine.Use(cors)
	r.Engine.Use(middleware.BodyLimitMiddleware(cfg.MaxBodyBytes))
	r.Engine.Use(middleware.Metrics(deps.Metrics))

	// Health, version and metrics sit outside rate limiting
	handlers.NewHealthHandler(deps.Health, logger).RegisterPublicRoutes(r.Engine)
	handlers.NewVersionHandler(cfg.Version, cfg.Commit, cfg.BuildDate).RegisterPublicRoutes(r.Engine)
	if deps.Gatherer != nil {
		r.Engine.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}
	if cfg.Environment == config.EnvDevelopment {
		pprof.Register(r.Engine)
	}

	rateLimiter, err := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitPeriod, middleware.BySession)
	if err != nil {
		return nil, err
	}

	var loginMW []gin.HandlerFunc
	if cfg.LoginRateLimit > 0 {
		loginLimiter, err := middleware.NewLoginRateLimiter(cfg.LoginRateLimit)
		if err != nil {
			return nil, err
		}
		loginMW = append(loginMW, loginLimiter)
	}

	api := r.Engine.Group("/api")
	api.Use(rateLimiter)

	handlers.NewAuthHandler(deps.Upstream, deps.URLTokens, deps.Metrics, logger, loginMW...).RegisterRoutes(api)
	handlers.NewConfigsHandler(deps.Upstream, deps.Metrics, logger).RegisterRoutes(api)

	// Everything else under /api/<area>/ is relayed unchanged
	handlers.NewPassthroughHandler("/api", deps.Upstream.ReverseProxy()).RegisterPublicRoutes(r.Engine, rateLimiter)

	r.logger.Info().Str("upstream", deps.Upstream.Base().String()).Msg("API router initialized")
	return r, nil
}

// ServeHTTP lets the Router be used as an http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Engine.ServeHTTP(w, req)
}
