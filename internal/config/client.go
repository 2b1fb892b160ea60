// Package config provides configuration management for siteadmin.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultServerURL is the gateway origin used when nothing else is configured.
const DefaultServerURL = "http://localhost:3000"

// EnvHome overrides the default config directory.
const EnvHome = "SITEADMIN_HOME"

// EnvAPIBase points the client straight at the backend origin, bypassing the gateway.
const EnvAPIBase = "SITEADMIN_API_BASE"

// GatewayMount is where the gateway serves backend routes.
const GatewayMount = "/api"

// DefaultConfigDir returns the default config directory (~/.siteadmin).
func DefaultConfigDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(EnvHome)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".siteadmin"), nil
}

// DefaultConfigPath returns the default config file path (~/.siteadmin/config.yml).
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yml"), nil
}

// ProxyConfig holds outbound proxy settings for the client transport.
type ProxyConfig struct {
	HTTPProxy   string `yaml:"http_proxy,omitempty"`
	HTTPSProxy  string `yaml:"https_proxy,omitempty"`
	SOCKS5Proxy string `yaml:"socks5_proxy,omitempty"`
	NoProxy     string `yaml:"no_proxy,omitempty"`
}

// HasProxy reports whether any proxy is configured.
func (p *ProxyConfig) HasProxy() bool {
	return p != nil && (p.HTTPProxy != "" || p.HTTPSProxy != "" || p.SOCKS5Proxy != "")
}

// ClientConfig holds the CLI's persistent configuration.
type ClientConfig struct {
	// ServerURL is the gateway origin. Requests are same-origin with respect
	// to it and rely on the gateway to reach the backend.
	ServerURL string       `yaml:"server_url,omitempty"`
	Timeout   string       `yaml:"timeout,omitempty"`
	Proxy     *ProxyConfig `yaml:"proxy,omitempty"`
}

// Validate checks that the configuration is usable.
func (c *ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	parsed, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("server_url must use http or https scheme")
	}
	return nil
}

// GetProxyConfig returns the proxy settings, or nil when none are set.
func (c *ClientConfig) GetProxyConfig() *ProxyConfig {
	if c == nil || !c.Proxy.HasProxy() {
		return nil
	}
	return c.Proxy
}

// ResolveBaseURL picks the base URL for API calls. SITEADMIN_API_BASE wins
// and targets the backend directly; otherwise the configured gateway is
// used, falling back to DefaultServerURL.
func (c *ClientConfig) ResolveBaseURL() string {
	if base := strings.TrimSpace(os.Getenv(EnvAPIBase)); base != "" {
		return strings.TrimSuffix(base, "/")
	}
	if c != nil && c.ServerURL != "" {
		return strings.TrimSuffix(c.ServerURL, "/")
	}
	return DefaultServerURL
}

// APIBaseURL is the root feature paths such as /config/list resolve
// against: the backend origin from SITEADMIN_API_BASE, or the gateway's
// /api mount.
func (c *ClientConfig) APIBaseURL() string {
	base := c.ResolveBaseURL()
	if strings.TrimSpace(os.Getenv(EnvAPIBase)) != "" {
		return base
	}
	return base + GatewayMount
}

// Load reads the configuration from the given path.
// If the file does not exist, an empty config is returned.
func Load(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ClientConfig{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg ClientConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads the configuration from the default path.
func LoadDefault() (*ClientConfig, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes the configuration to the given path, creating directories as needed.
func (c *ClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// SaveDefault saves the configuration to the default path.
func (c *ClientConfig) SaveDefault() error {
	path, err := DefaultConfigPath()
	if err != nil {
		return err
	}
	return c.Save(path)
}
