package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/metrics"
	"github.com/MacJediWizard/siteadmin/internal/upstream"
)

var jsonNull = json.RawMessage("null")

// backendBody gives optional-chaining access to a decoded backend response.
type backendBody struct {
	raw    json.RawMessage
	object map[string]json.RawMessage
}

func parseBackend(body []byte) (*backendBody, error) {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return nil, errors.New("backend response is not JSON")
	}
	b := &backendBody{raw: trimmed}
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &b.object); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// get walks path through nested objects. Missing keys, non-objects and
// JSON null all report false.
func (b *backendBody) get(path ...string) (json.RawMessage, bool) {
	obj := b.object
	var cur json.RawMessage
	for i, key := range path {
		if obj == nil {
			return nil, false
		}
		v, ok := obj[key]
		if !ok || isJSONNull(v) {
			return nil, false
		}
		cur = v
		if i < len(path)-1 {
			obj = asObject(v)
		}
	}
	return cur, true
}

// has reports whether the top-level object carries key, even as null.
func (b *backendBody) has(key string) bool {
	_, ok := b.object[key]
	return ok
}

// first returns the first present value among paths, or fallback.
func (b *backendBody) first(fallback json.RawMessage, paths ...[]string) json.RawMessage {
	for _, p := range paths {
		if v, ok := b.get(p...); ok {
			return v
		}
	}
	return fallback
}

// isTrue reports whether path holds the JSON literal true.
func (b *backendBody) isTrue(path ...string) bool {
	v, ok := b.get(path...)
	return ok && bytes.Equal(v, []byte("true"))
}

// code returns the numeric top-level code, if any.
func (b *backendBody) code() (float64, bool) {
	v, ok := b.get("code")
	if !ok {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, false
	}
	return n, true
}

func asObject(raw json.RawMessage) map[string]json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), jsonNull)
}

// truthy mirrors loose boolean coercion of a JSON value.
func truthy(raw json.RawMessage) bool {
	switch s := string(bytes.TrimSpace(raw)); s {
	case "", "null", "false", `""`:
		return false
	default:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n != 0
		}
		return true
	}
}

// stringOf renders a JSON scalar the way string coercion would.
func stringOf(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// positiveInt parses a TTL given as a JSON number or numeric string and
// returns it only when greater than zero.
func positiveInt(raw json.RawMessage) (string, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n > 0 {
			return strconv.FormatFloat(n, 'f', -1, 64), true
		}
		return "", false
	}
	v, ok := leadingInt(stringOf(raw))
	if !ok || v <= 0 {
		return "", false
	}
	return strconv.FormatInt(v, 10), true
}

// leadingInt parses the longest integer prefix of s after leading spaces.
func leadingInt(s string) (int64, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// proxyBase holds what every normalising handler needs.
type proxyBase struct {
	upstream upstream.Forwarder
	metrics  *metrics.PrometheusMetrics
	logger   zerolog.Logger
}

func (p *proxyBase) fail(c *gin.Context, operation string, err error) {
	p.logger.Warn().Err(err).Str("operation", operation).Msg("upstream request failed")
	p.metrics.RecordUpstreamFailure(operation)
	c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_error"})
}

// call forwards the request and parses the answer. It writes the response
// itself and returns false when the handler should stop.
func (p *proxyBase) call(c *gin.Context, operation string, call upstream.Call) (*upstream.Response, *backendBody, bool) {
	if call.Authorization == "" {
		call.Authorization = c.GetHeader("Authorization")
	}
	resp, err := p.upstream.Forward(c.Request.Context(), call)
	if err != nil {
		p.fail(c, operation, err)
		return nil, nil, false
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return nil, nil, false
	}
	body, err := parseBackend(resp.Body)
	if err != nil {
		p.fail(c, operation, err)
		return nil, nil, false
	}
	return resp, body, true
}

func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	return io.ReadAll(c.Request.Body)
}
