// Package httpclient builds the outbound HTTP clients used by the siteadmin
// CLI and gateway, with optional HTTP(S) or SOCKS5 proxying.
package httpclient

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MacJediWizard/siteadmin/internal/config"
	"golang.org/x/net/proxy"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds a whole request, body included. Zero means DefaultTimeout;
	// a negative value disables the client-level timeout.
	Timeout time.Duration
	Proxy   *config.ProxyConfig
}

// NewTransport returns a transport honouring the proxy settings. The gateway
// hands it to its reverse proxy, which manages deadlines per request.
func NewTransport(p *config.ProxyConfig) (*http.Transport, error) {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if p.HasProxy() {
		if err := applyProxy(transport, dialer, p); err != nil {
			return nil, fmt.Errorf("configure proxy: %w", err)
		}
	}

	return transport, nil
}

// New creates an HTTP client with optional proxy support.
func New(opts Options) (*http.Client, error) {
	transport, err := NewTransport(opts.Proxy)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultTimeout
	case timeout < 0:
		timeout = 0
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// ForClient creates the CLI's HTTP client from its persisted configuration.
func ForClient(cfg *config.ClientConfig) (*http.Client, error) {
	opts := Options{}
	if cfg != nil {
		opts.Proxy = cfg.GetProxyConfig()
		if cfg.Timeout != "" {
			d, err := time.ParseDuration(cfg.Timeout)
			if err != nil {
				return nil, fmt.Errorf("parse timeout %q: %w", cfg.Timeout, err)
			}
			opts.Timeout = d
		}
	}
	return New(opts)
}

func applyProxy(transport *http.Transport, base *net.Dialer, p *config.ProxyConfig) error {
	// SOCKS5 takes precedence over HTTP proxies.
	if p.SOCKS5Proxy != "" {
		return applySOCKS5(transport, base, p.SOCKS5Proxy)
	}

	transport.Proxy = func(req *http.Request) (*url.URL, error) {
		return selectProxy(req.URL, p)
	}
	return nil
}

func applySOCKS5(transport *http.Transport, base *net.Dialer, rawURL string) error {
	proxyURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse SOCKS5 proxy URL: %w", err)
	}

	var auth *proxy.Auth
	if proxyURL.User != nil {
		password, _ := proxyURL.User.Password()
		auth = &proxy.Auth{
			User:     proxyURL.User.Username(),
			Password: password,
		}
	}

	dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, base)
	if err != nil {
		return fmt.Errorf("create SOCKS5 dialer: %w", err)
	}

	if cd, ok := dialer.(proxy.ContextDialer); ok {
		transport.DialContext = cd.DialContext
		return nil
	}
	transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
		return dialer.Dial(network, addr)
	}
	return nil
}

// selectProxy picks the HTTPS proxy for https targets and the HTTP proxy
// otherwise. A nil URL means connect directly.
func selectProxy(target *url.URL, p *config.ProxyConfig) (*url.URL, error) {
	if bypassesProxy(target.Host, p.NoProxy) {
		return nil, nil
	}

	raw := p.HTTPProxy
	if target.Scheme == "https" && p.HTTPSProxy != "" {
		raw = p.HTTPSProxy
	}
	if raw == "" {
		return nil, nil
	}
	return url.Parse(raw)
}

// bypassesProxy matches host against a comma-separated no_proxy list.
// Entries may be "*", an exact host, or a domain (with or without a leading dot)
// that matches its subdomains.
func bypassesProxy(host, noProxy string) bool {
	if noProxy == "" {
		return false
	}

	name, _, err := net.SplitHostPort(host)
	if err != nil {
		name = host
	}
	name = strings.ToLower(name)

	for _, entry := range strings.Split(noProxy, ",") {
		entry = strings.ToLower(strings.TrimSpace(entry))
		switch {
		case entry == "":
			continue
		case entry == "*":
			return true
		case name == entry:
			return true
		case strings.HasPrefix(entry, "."):
			if strings.HasSuffix(name, entry) {
				return true
			}
		case strings.HasSuffix(name, "."+entry):
			return true
		}
	}
	return false
}

// Probe sends a HEAD request through the configured proxy. Any HTTP response
// counts as success.
func Probe(ctx context.Context, p *config.ProxyConfig, target string) error {
	client, err := New(Options{Timeout: 10 * time.Second, Proxy: p})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", target, err)
	}
	resp.Body.Close()
	return nil
}

// Describe returns a human-readable summary of the proxy settings with
// credentials masked.
func Describe(p *config.ProxyConfig) string {
	if !p.HasProxy() {
		return "direct (no proxy)"
	}

	var parts []string
	if p.SOCKS5Proxy != "" {
		parts = append(parts, "socks5="+maskCredentials(p.SOCKS5Proxy))
	}
	if p.HTTPProxy != "" {
		parts = append(parts, "http="+maskCredentials(p.HTTPProxy))
	}
	if p.HTTPSProxy != "" {
		parts = append(parts, "https="+maskCredentials(p.HTTPSProxy))
	}
	if p.NoProxy != "" {
		parts = append(parts, "no_proxy="+p.NoProxy)
	}
	return strings.Join(parts, " ")
}

func maskCredentials(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
		}
	}
	return u.String()
}
