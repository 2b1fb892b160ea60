package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Environment represents the deployment environment.
type Environment string

const (
	// EnvDevelopment is the default local development environment.
	EnvDevelopment Environment = "development"
	// EnvStaging is the staging/pre-production environment.
	EnvStaging Environment = "staging"
	// EnvProduction is the production environment.
	EnvProduction Environment = "production"
)

// DefaultUpstreamURL is the backend origin used when no env var names one.
const DefaultUpstreamURL = "http://localhost:8080"

// GatewayConfig holds the gateway's settings, read from the environment and
// an optional gateway.yaml.
type GatewayConfig struct {
	Environment Environment
	ListenAddr  string
	UpstreamURL string
	CORSOrigins []string

	RateLimitRequests int64
	RateLimitPeriod   string
	LoginRateLimit    int64
	MaxBodyBytes      int64

	UpstreamTimeout time.Duration
	URLTokenTimeout time.Duration
	URLTokenRetries int

	HealthCheckSchedule string
}

// IsProduction reports whether the gateway runs in production.
func (c GatewayConfig) IsProduction() bool {
	return c.Environment == EnvProduction
}

// LoadGatewayConfig reads gateway configuration. configFile may be empty; when
// set, the file must exist. Environment variables override file values.
func LoadGatewayConfig(configFile string) (GatewayConfig, error) {
	v := viper.New()

	v.SetDefault("env", string(EnvDevelopment))
	v.SetDefault("listen_addr", "")
	v.SetDefault("upstream_url", DefaultUpstreamURL)
	v.SetDefault("cors_origins", "")
	v.SetDefault("rate_limit_requests", 300)
	v.SetDefault("rate_limit_period", "1m")
	v.SetDefault("login_rate_limit", 10)
	v.SetDefault("max_body_bytes", 10<<20)
	v.SetDefault("upstream_timeout", "30s")
	v.SetDefault("url_token_timeout", "5s")
	v.SetDefault("url_token_retries", 2)
	v.SetDefault("health_check_schedule", "@every 30s")

	_ = v.BindEnv("env", "ENV")
	_ = v.BindEnv("listen_addr", "LISTEN_ADDR")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("upstream_url", "SERVER_URL", "NEXT_PUBLIC_SERVER_URL")
	_ = v.BindEnv("cors_origins", "CORS_ORIGINS")
	_ = v.BindEnv("rate_limit_requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("rate_limit_period", "RATE_LIMIT_PERIOD")
	_ = v.BindEnv("login_rate_limit", "LOGIN_RATE_LIMIT")
	_ = v.BindEnv("max_body_bytes", "MAX_BODY_BYTES")
	_ = v.BindEnv("upstream_timeout", "UPSTREAM_TIMEOUT")
	_ = v.BindEnv("url_token_timeout", "URL_TOKEN_TIMEOUT")
	_ = v.BindEnv("url_token_retries", "URL_TOKEN_RETRIES")
	_ = v.BindEnv("health_check_schedule", "HEALTH_CHECK_SCHEDULE")

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return GatewayConfig{}, fmt.Errorf("read gateway config: %w", err)
		}
	}

	env := Environment(strings.ToLower(strings.TrimSpace(v.GetString("env"))))
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		// valid
	default:
		env = EnvDevelopment
	}

	listen := strings.TrimSpace(v.GetString("listen_addr"))
	if listen == "" {
		if port := strings.TrimSpace(v.GetString("port")); port != "" {
			listen = ":" + port
		} else {
			listen = ":3000"
		}
	}

	upstream := strings.TrimSuffix(strings.TrimSpace(v.GetString("upstream_url")), "/")
	if upstream == "" {
		upstream = DefaultUpstreamURL
	}

	cfg := GatewayConfig{
		Environment:         env,
		ListenAddr:          listen,
		UpstreamURL:         upstream,
		CORSOrigins:         splitList(v.GetString("cors_origins")),
		RateLimitRequests:   v.GetInt64("rate_limit_requests"),
		RateLimitPeriod:     v.GetString("rate_limit_period"),
		LoginRateLimit:      v.GetInt64("login_rate_limit"),
		MaxBodyBytes:        v.GetInt64("max_body_bytes"),
		UpstreamTimeout:     v.GetDuration("upstream_timeout"),
		URLTokenTimeout:     v.GetDuration("url_token_timeout"),
		URLTokenRetries:     v.GetInt("url_token_retries"),
		HealthCheckSchedule: v.GetString("health_check_schedule"),
	}

	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = 30 * time.Second
	}
	if cfg.URLTokenTimeout <= 0 {
		cfg.URLTokenTimeout = 5 * time.Second
	}
	if cfg.URLTokenRetries < 0 {
		cfg.URLTokenRetries = 2
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}

	return cfg, nil
}

// UpstreamFromEnv resolves the backend origin the same way the gateway does:
// SERVER_URL, then NEXT_PUBLIC_SERVER_URL, then DefaultUpstreamURL.
func UpstreamFromEnv() string {
	for _, key := range []string{"SERVER_URL", "NEXT_PUBLIC_SERVER_URL"} {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return strings.TrimSuffix(val, "/")
		}
	}
	return DefaultUpstreamURL
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
