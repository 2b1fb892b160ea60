// Command siteadmin-gateway serves the /api surface in front of the
// siteadmin backend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/api"
	"github.com/MacJediWizard/siteadmin/internal/config"
	"github.com/MacJediWizard/siteadmin/internal/httpclient"
	"github.com/MacJediWizard/siteadmin/internal/metrics"
	"github.com/MacJediWizard/siteadmin/internal/upstream"
)

// Build information, set via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("version", Version).Logger()
	if os.Getenv("ENV") != string(config.EnvProduction) {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.LoadGatewayConfig(os.Getenv("GATEWAY_CONFIG"))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load gateway configuration")
		return 1
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info().
		Str("commit", Commit).
		Str("build_date", BuildDate).
		Str("env", string(cfg.Environment)).
		Str("upstream", cfg.UpstreamURL).
		Msg("Starting siteadmin gateway")

	httpClient, err := httpclient.New(httpclient.Options{Timeout: cfg.UpstreamTimeout})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build upstream HTTP client")
		return 1
	}

	backend, err := upstream.New(cfg.UpstreamURL, httpClient, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid upstream URL")
		return 1
	}

	urlTokens := upstream.NewRetrying(backend, upstream.RetryOptions{
		Timeout: cfg.URLTokenTimeout,
		Retries: cfg.URLTokenRetries,
		Backoff: upstream.DefaultRetryOptions().Backoff,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMetrics, err := metrics.NewPrometheusMetrics(registry)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register metrics")
		return 1
	}

	monitor := upstream.NewMonitor(backend, cfg.HealthCheckSchedule, logger)
	monitor.OnCheck(func(s upstream.Status) {
		promMetrics.SetUpstreamStatus(s.Healthy, s.Latency)
	})

	router, err := api.NewRouter(api.Config{
		Environment:       cfg.Environment,
		AllowedOrigins:    cfg.CORSOrigins,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitPeriod:   cfg.RateLimitPeriod,
		LoginRateLimit:    cfg.LoginRateLimit,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		Version:           Version,
		Commit:            Commit,
		BuildDate:         BuildDate,
	}, api.Deps{
		Upstream:  backend,
		URLTokens: urlTokens,
		Health:    monitor,
		Metrics:   promMetrics,
		Gatherer:  registry,
	}, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize router")
		return 1
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 30*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if err := monitor.Start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start upstream monitor")
	}
	defer monitor.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down gateway")
	case err := <-serveErr:
		logger.Error().Err(err).Msg("HTTP server error")
		return 1
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown error")
		return 1
	}

	logger.Info().Msg("Gateway stopped gracefully")
	return 0
}
