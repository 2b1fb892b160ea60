package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/metrics"
	"github.com/MacJediWizard/siteadmin/internal/upstream"
)

const defaultRefreshReason = "frontend-refresh"

var (
	emptyArray = json.RawMessage("[]")
	jsonZero   = json.RawMessage("0")

	errInvalidRequestJSON = errors.New("request body is not JSON")
)

// ConfigsHandler serves /api/config/*, unwrapping the backend envelope into
// the flat shapes clients consume.
type ConfigsHandler struct {
	proxyBase
}

// NewConfigsHandler creates a ConfigsHandler.
func NewConfigsHandler(fwd upstream.Forwarder, m *metrics.PrometheusMetrics, logger zerolog.Logger) *ConfigsHandler {
	return &ConfigsHandler{proxyBase{
		upstream: fwd,
		metrics:  m,
		logger:   logger.With().Str("component", "config_proxy").Logger(),
	}}
}

// RegisterRoutes registers config routes on the given router group.
func (h *ConfigsHandler) RegisterRoutes(r *gin.RouterGroup) {
	cfg := r.Group("/config")
	{
		cfg.GET("/list", h.List)
		cfg.GET("/item", h.Item)
		cfg.GET("/versions", h.Versions)
		cfg.GET("/export", h.Export)
		cfg.GET("/stats", h.Stats)
		cfg.POST("/create", h.mutation("create", http.MethodPost))
		cfg.PUT("/update", h.mutation("update", http.MethodPut))
		cfg.DELETE("/delete", h.mutation("delete", http.MethodDelete))
		cfg.POST("/rollback", h.mutation("rollback", http.MethodPost))
		cfg.POST("/import", h.Import)
		cfg.POST("/refresh", h.Refresh)
	}
}

func (h *ConfigsHandler) get(c *gin.Context, name string) (*upstream.Response, *backendBody, bool) {
	return h.call(c, "config-"+name, upstream.Call{
		Method:   http.MethodGet,
		Path:     "/config/" + name,
		RawQuery: c.Request.URL.RawQuery,
	})
}

// List answers {items, total}.
// GET /api/config/list
func (h *ConfigsHandler) List(c *gin.Context) {
	resp, backend, ok := h.get(c, "list")
	if !ok {
		return
	}
	c.JSON(resp.StatusCode, gin.H{
		"items": backend.first(emptyArray, []string{"data", "items"}),
		"total": backend.first(jsonZero, []string{"data", "total"}),
	})
}

// Item answers {item}.
// GET /api/config/item
func (h *ConfigsHandler) Item(c *gin.Context) {
	resp, backend, ok := h.get(c, "item")
	if !ok {
		return
	}
	c.JSON(resp.StatusCode, gin.H{
		"item": backend.first(jsonNull, []string{"data", "item"}),
	})
}

// Versions answers {items}.
// GET /api/config/versions
func (h *ConfigsHandler) Versions(c *gin.Context) {
	resp, backend, ok := h.get(c, "versions")
	if !ok {
		return
	}
	c.JSON(resp.StatusCode, gin.H{
		"items": backend.first(emptyArray, []string{"data", "items"}),
	})
}

// Export answers {items}.
// GET /api/config/export
func (h *ConfigsHandler) Export(c *gin.Context) {
	resp, backend, ok := h.get(c, "export")
	if !ok {
		return
	}
	c.JSON(resp.StatusCode, gin.H{
		"items": backend.first(emptyArray, []string{"data", "items"}),
	})
}

// Stats answers the envelope's data.
// GET /api/config/stats
func (h *ConfigsHandler) Stats(c *gin.Context) {
	resp, backend, ok := h.get(c, "stats")
	if !ok {
		return
	}
	h.unwrapData(c, resp, backend)
}

// mutation relays a JSON body and answers {ok, message}. ok holds when the
// backend reported data.ok or code 0.
func (h *ConfigsHandler) mutation(name, method string) gin.HandlerFunc {
	operation := "config-" + name
	return func(c *gin.Context) {
		resp, backend, ok := h.relayJSON(c, operation, method, "/config/"+name)
		if !ok {
			return
		}
		out := gin.H{"ok": succeeded(backend)}
		if msg, ok := backend.get("message"); ok {
			out["message"] = msg
		}
		c.JSON(resp.StatusCode, out)
	}
}

// Import answers {ok, added, updated, message}.
// POST /api/config/import
func (h *ConfigsHandler) Import(c *gin.Context) {
	resp, backend, ok := h.relayJSON(c, "config-import", http.MethodPost, "/config/import")
	if !ok {
		return
	}
	out := gin.H{
		"ok":      succeeded(backend),
		"added":   backend.first(jsonZero, []string{"data", "added"}),
		"updated": backend.first(jsonZero, []string{"data", "updated"}),
	}
	if msg, ok := backend.get("message"); ok {
		out["message"] = msg
	}
	c.JSON(resp.StatusCode, out)
}

// Refresh asks the backend to reload its cache. A missing or empty reason
// becomes "frontend-refresh".
// POST /api/config/refresh
func (h *ConfigsHandler) Refresh(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		h.fail(c, "config-refresh", err)
		return
	}

	reason := json.RawMessage(`"` + defaultRefreshReason + `"`)
	var in map[string]json.RawMessage
	if json.Unmarshal(body, &in) == nil {
		if v, ok := in["reason"]; ok && truthy(v) {
			reason = v
		}
	}
	payload, err := json.Marshal(map[string]json.RawMessage{"reason": reason})
	if err != nil {
		h.fail(c, "config-refresh", err)
		return
	}

	resp, backend, ok := h.call(c, "config-refresh", upstream.Call{
		Method:      http.MethodPost,
		Path:        "/config/refresh",
		ContentType: "application/json",
		Body:        payload,
	})
	if !ok {
		return
	}
	h.unwrapData(c, resp, backend)
}

// relayJSON forwards the request body, which must be JSON when present. An
// empty body is relayed as a bare request so parameters can travel in the
// query string.
func (h *ConfigsHandler) relayJSON(c *gin.Context, operation, method, path string) (*upstream.Response, *backendBody, bool) {
	body, err := readBody(c)
	if err != nil {
		h.fail(c, operation, err)
		return nil, nil, false
	}
	call := upstream.Call{
		Method:   method,
		Path:     path,
		RawQuery: c.Request.URL.RawQuery,
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if !json.Valid(body) {
			h.fail(c, operation, errInvalidRequestJSON)
			return nil, nil, false
		}
		call.ContentType = "application/json"
		call.Body = body
	}
	return h.call(c, operation, call)
}

// unwrapData answers data when the backend object carries the key, and the
// whole body otherwise.
func (h *ConfigsHandler) unwrapData(c *gin.Context, resp *upstream.Response, backend *backendBody) {
	out := backend.raw
	if backend.has("data") {
		out = backend.object["data"]
	}
	c.Data(resp.StatusCode, "application/json; charset=utf-8", out)
}

func succeeded(b *backendBody) bool {
	if b.isTrue("data", "ok") {
		return true
	}
	code, ok := b.code()
	return ok && code == 0
}
