package handlers

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
)

// BuildInfo identifies the running gateway binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildDate string `json:"build_date,omitempty"`
	GoVersion string `json:"go_version"`
}

// VersionHandler answers build information.
type VersionHandler struct {
	info BuildInfo
}

// NewVersionHandler creates a VersionHandler. An empty version reports "dev".
func NewVersionHandler(version, commit, buildDate string) *VersionHandler {
	if version == "" {
		version = "dev"
	}
	return &VersionHandler{info: BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
		GoVersion: runtime.Version(),
	}}
}

// Info returns the reported build information.
func (h *VersionHandler) Info() BuildInfo {
	return h.info
}

// RegisterPublicRoutes registers the version route on the engine root.
func (h *VersionHandler) RegisterPublicRoutes(r *gin.Engine) {
	r.GET("/version", h.Get)
}

// Get returns the build information.
// GET /version
func (h *VersionHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.info)
}
