package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// PassthroughAreas are the backend areas relayed without reshaping.
var PassthroughAreas = []string{"auth", "config", "blog", "weibo", "file", "daily", "logs"}

// PassthroughHandler relays <base>/<area>/* to the backend unchanged. It is
// installed as the engine's NoRoute handler so dedicated routes always win.
type PassthroughHandler struct {
	base  string
	areas []string
	proxy http.Handler
}

// NewPassthroughHandler creates a PassthroughHandler. Requests reach proxy
// with base stripped from the path.
func NewPassthroughHandler(base string, proxy http.Handler, areas ...string) *PassthroughHandler {
	if len(areas) == 0 {
		areas = PassthroughAreas
	}
	return &PassthroughHandler{base: strings.TrimSuffix(base, "/"), areas: areas, proxy: proxy}
}

// RegisterPublicRoutes installs the handler as the engine fallback, behind
// the given middleware.
func (h *PassthroughHandler) RegisterPublicRoutes(r *gin.Engine, mw ...gin.HandlerFunc) {
	r.NoRoute(append(append([]gin.HandlerFunc{}, mw...), h.Serve)...)
}

// Matches reports whether path belongs to a relayed area.
func (h *PassthroughHandler) Matches(path string) bool {
	rest, ok := strings.CutPrefix(path, h.base+"/")
	if !ok {
		return false
	}
	area, _, _ := strings.Cut(rest, "/")
	for _, a := range h.areas {
		if a == area {
			return true
		}
	}
	return false
}

// Serve relays matching requests and answers 404 otherwise.
func (h *PassthroughHandler) Serve(c *gin.Context) {
	if !h.Matches(c.Request.URL.Path) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	http.StripPrefix(h.base, h.proxy).ServeHTTP(c.Writer, c.Request)
}
