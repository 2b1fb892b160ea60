// Package apiclient is the HTTP core shared by every siteadmin feature. It
// attaches the stored bearer credential, prunes empty GET parameters, unwraps
// the {code, message, data} envelope and handles 401 by clearing the
// credential and sending the user to the login view.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/token"
)

// Request describes one backend call.
type Request struct {
	Method string
	// Path is relative to the base URL and may carry its own query string,
	// which GET and HEAD prune like Query.
	Path string
	// Query is url.Values, map[string]string, map[string]any or a struct with
	// `url` tags.
	Query any
	// Body is JSON-encoded unless it is an io.Reader (sent as is) or
	// url.Values (sent as a form).
	Body   any
	Header http.Header
}

// Requester is what feature modules need from the client.
type Requester interface {
	Do(ctx context.Context, r *Request, out any) error
}

// StreamRequester adds raw responses and URL building for downloads.
type StreamRequester interface {
	Requester
	Stream(ctx context.Context, r *Request) (*http.Response, error)
	URL(path string) string
}

var _ StreamRequester = (*Client)(nil)

// Options configures a Client.
type Options struct {
	// BaseURL is the gateway origin or the backend origin.
	BaseURL    string
	HTTPClient *http.Client
	Tokens     token.Store
	Navigator  Navigator
	Notifier   Notifier
	Logger     zerolog.Logger
}

// Client performs backend calls. It is safe for concurrent use.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	tokens     token.Store
	nav        Navigator
	notifier   Notifier
	logger     zerolog.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be absolute http(s)", opts.BaseURL)
	}

	c := &Client{
		base:       base,
		httpClient: opts.HTTPClient,
		tokens:     opts.Tokens,
		nav:        opts.Navigator,
		notifier:   opts.Notifier,
		logger:     opts.Logger.With().Str("component", "apiclient").Logger(),
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	if c.tokens == nil {
		c.tokens = token.NewMemoryStore()
	}
	if c.nav == nil {
		c.nav = NopNavigator{}
	}
	if c.notifier == nil {
		c.notifier = nopNotifier{}
	}
	return c, nil
}

// Tokens returns the credential store the client reads from.
func (c *Client) Tokens() token.Store {
	return c.tokens
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	return c.resolve(path).String()
}

func (c *Client) resolve(path string) *url.URL {
	u := *c.base
	rel, err := url.Parse(path)
	if err != nil {
		u.Path = u.Path + "/" + strings.TrimPrefix(path, "/")
		return &u
	}
	u.Path = u.Path + "/" + strings.TrimPrefix(rel.Path, "/")
	u.RawQuery = rel.RawQuery
	return &u
}

// Do sends r and decodes the successful payload into out, which may be nil.
func (c *Client) Do(ctx context.Context, r *Request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	method := methodOf(r)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportFailure(&TransportError{Method: method, URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)})
	}

	// Only 204 may come without a body; an empty 200 is a parse failure.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	env, err := ParseEnvelope(body)
	if err != nil {
		return c.transportFailure(&TransportError{Method: method, URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Err: err})
	}

	if !env.OK() {
		be := &BusinessError{Code: env.Code, Message: env.ErrorMessage()}
		c.logger.Debug().Str("path", r.Path).Int("code", be.Code).Msg("business error")
		c.notifier.Notify(Notification{Level: LevelError, Message: be.Message, Err: be})
		return be
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Payload(), out); err != nil {
		return c.transportFailure(&TransportError{Method: method, URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Err: fmt.Errorf("decode payload: %w", err)})
	}
	return nil
}

// Stream sends r and returns the raw response for the caller to consume.
// The envelope is not inspected. Non-2xx statuses are reported as
// *TransportError.
func (c *Client) Stream(ctx context.Context, r *Request) (*http.Response, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		msg := strings.TrimSpace(string(snippet))
		if env, perr := ParseEnvelope(snippet); perr == nil && env.Kind == KindEnveloped {
			msg = env.ErrorMessage()
		}
		return nil, c.transportFailure(&TransportError{
			Method:     methodOf(r),
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Err:        errors.New(msg),
		})
	}
	return resp, nil
}

// Get issues a GET with pruned query parameters.
func (c *Client) Get(ctx context.Context, path string, q any, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: q}, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Delete issues a DELETE with an optional JSON body.
func (c *Client) Delete(ctx context.Context, path string, body any, out any) error {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Body: body}, out)
}

// send builds and performs the request, turning 401 into ErrUnauthorized.
func (c *Client) send(ctx context.Context, r *Request) (*http.Response, error) {
	method := methodOf(r)
	// The continuation target is the location when the call started.
	location := c.nav.Location()

	req, err := c.build(ctx, method, r)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportFailure(&TransportError{Method: method, URL: req.URL.String(), Err: err})
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		c.unauthorized(location)
		return nil, ErrUnauthorized
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", req.URL.Redacted()).
		Int("status", resp.StatusCode).
		Msg("request completed")
	return resp, nil
}

func (c *Client) build(ctx context.Context, method string, r *Request) (*http.Request, error) {
	target := c.resolve(r.Path)

	prune := method == http.MethodGet || method == http.MethodHead
	if prune && target.RawQuery != "" {
		embedded, err := url.ParseQuery(target.RawQuery)
		if err != nil {
			return nil, fmt.Errorf("parse query of %s: %w", r.Path, err)
		}
		kept, _ := encodeQuery(embedded, true)
		target.RawQuery = kept.Encode()
	}
	vals, err := encodeQuery(r.Query, prune)
	if err != nil {
		return nil, err
	}
	if len(vals) > 0 {
		merged := target.Query()
		for k, vs := range vals {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		target.RawQuery = merged.Encode()
	}

	var body io.Reader
	contentType := ""
	switch b := r.Body.(type) {
	case nil:
	case io.Reader:
		body = b
	case url.Values:
		body = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if tok := c.tokens.Get(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// unauthorized clears the credential and, unless the user is already on the
// login view, navigates there once.
func (c *Client) unauthorized(location string) {
	c.tokens.Clear()
	if isLoginView(location) {
		c.logger.Debug().Msg("unauthorized on login view")
		return
	}
	target := LoginURL(location)
	c.logger.Info().Str("next", location).Msg("credential rejected, redirecting to login")
	c.nav.Navigate(target)
}

func (c *Client) transportFailure(err *TransportError) error {
	c.logger.Debug().Err(err.Err).Str("method", err.Method).Int("status", err.StatusCode).Msg("transport failure")
	c.notifier.Notify(Notification{Level: LevelError, Message: "network error, please try again", Err: err})
	return err
}

func methodOf(r *Request) string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}
