package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

// ErrUnavailable is returned once every attempt of a retrying call failed.
var ErrUnavailable = errors.New("upstream unavailable")

// RetryOptions tunes Retrying.
type RetryOptions struct {
	// Timeout bounds each attempt, including reading the body.
	Timeout time.Duration
	// Retries is the number of attempts after the first one.
	Retries int
	// Backoff is the unit of the linear wait: attempt n waits n*Backoff.
	Backoff time.Duration
}

// DefaultRetryOptions returns 5s per attempt, 2 retries, 100ms backoff.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		Timeout: 5 * time.Second,
		Retries: 2,
		Backoff: 100 * time.Millisecond,
	}
}

// Retrying forwards calls with per-attempt timeouts and linear backoff. A
// call succeeds only on a 2xx status with a JSON body; anything else is
// retried.
type Retrying struct {
	client *Client
	rc     *retryablehttp.Client
	logger zerolog.Logger
}

// NewRetrying wraps c. Zero option fields take their defaults.
func NewRetrying(c *Client, opts RetryOptions) *Retrying {
	def := DefaultRetryOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}

	logger := c.logger.With().Str("mode", "retrying").Logger()

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport: c.httpClient.Transport,
		Timeout:   opts.Timeout,
	}
	rc.RetryMax = opts.Retries
	rc.RetryWaitMin = opts.Backoff
	rc.RetryWaitMax = opts.Backoff * time.Duration(opts.Retries+1)
	rc.Backoff = linearBackoff
	rc.CheckRetry = retryUnlessJSON
	rc.ErrorHandler = giveUp
	rc.Logger = leveledLogger{logger: logger}

	return &Retrying{client: c, rc: rc, logger: logger}
}

// linearBackoff waits unit*(n+1) before retry n, n counting from zero.
func linearBackoff(unit, limit time.Duration, attemptNum int, _ *http.Response) time.Duration {
	wait := unit * time.Duration(attemptNum+1)
	if wait > limit {
		return limit
	}
	return wait
}

func retryUnlessJSON(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return true, nil
	}

	data, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(data))
	if readErr != nil || !json.Valid(data) {
		return true, nil
	}
	return false, nil
}

func giveUp(resp *http.Response, err error, attempts int) (*http.Response, error) {
	if resp != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if err == nil {
			err = fmt.Errorf("status %d", resp.StatusCode)
		}
	}
	if err == nil {
		err = errors.New("no response")
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, attempts, err)
}

// Forward performs call, retrying as configured.
func (r *Retrying) Forward(ctx context.Context, call Call) (*Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, call.Method, r.client.target(call), call.Body)
	if err != nil {
		return nil, fmt.Errorf("create upstream request: %w", err)
	}
	applyHeaders(req.Header, call)

	resp, err := r.rc.Do(req)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// leveledLogger adapts zerolog to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger zerolog.Logger
}

var _ retryablehttp.LeveledLogger = leveledLogger{}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}
