// Package upstream forwards gateway requests to the backend service.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Call is one request forwarded to the backend.
type Call struct {
	Method        string
	Path          string
	RawQuery      string
	Authorization string
	ContentType   string
	Body          []byte
}

// Response is a fully read upstream answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forwarder performs a Call.
type Forwarder interface {
	Forward(ctx context.Context, call Call) (*Response, error)
}

var (
	_ Forwarder = (*Client)(nil)
	_ Forwarder = (*Retrying)(nil)
)

// Client forwards calls to a single backend origin.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a Client for baseURL. A nil httpClient uses
// http.DefaultClient.
func New(baseURL string, httpClient *http.Client, logger zerolog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("upstream URL %q must be absolute http(s)", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		base:       base,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "upstream").Logger(),
	}, nil
}

// Base returns a copy of the backend origin.
func (c *Client) Base() *url.URL {
	u := *c.base
	return &u
}

func (c *Client) target(call Call) string {
	u := c.Base()
	u.Path = u.Path + "/" + strings.TrimPrefix(call.Path, "/")
	u.RawQuery = call.RawQuery
	return u.String()
}

func applyHeaders(h http.Header, call Call) {
	if call.Authorization != "" {
		h.Set("Authorization", call.Authorization)
	}
	if call.ContentType != "" {
		h.Set("Content-Type", call.ContentType)
	}
	h.Set("Accept", "application/json")
}

// Forward performs call once.
func (c *Client) Forward(ctx context.Context, call Call) (*Response, error) {
	var body io.Reader
	if call.Body != nil {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, c.target(call), body)
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	applyHeaders(req.Header, call)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forward %s %s: %w", call.Method, call.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	c.logger.Debug().
		Str("method", call.Method).
		Str("path", call.Path).
		Int("status", resp.StatusCode).
		Msg("forwarded")
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Probe issues a GET against the backend origin and returns the status.
func (c *Client) Probe(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+"/", nil)
	if err != nil {
		return 0, fmt.Errorf("create probe request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe upstream: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}
