package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/gin-gonic/gin"
)

func getVersion(t *testing.T, h *VersionHandler) BuildInfo {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterPublicRoutes(r)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/version", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp BuildInfo
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return resp
}

func TestVersionGet(t *testing.T) {
	t.Run("reports build fields", func(t *testing.T) {
		resp := getVersion(t, NewVersionHandler("1.0.0", "abc1234", "2026-01-15T10:30:00Z"))
		if resp.Version != "1.0.0" {
			t.Fatalf("expected version '1.0.0', got %q", resp.Version)
		}
		if resp.Commit != "abc1234" {
			t.Fatalf("expected commit 'abc1234', got %q", resp.Commit)
		}
		if resp.BuildDate != "2026-01-15T10:30:00Z" {
			t.Fatalf("expected build_date '2026-01-15T10:30:00Z', got %q", resp.BuildDate)
		}
		if resp.GoVersion != runtime.Version() {
			t.Fatalf("expected go_version %q, got %q", runtime.Version(), resp.GoVersion)
		}
	})

	t.Run("defaults to dev", func(t *testing.T) {
		resp := getVersion(t, NewVersionHandler("", "", ""))
		if resp.Version != "dev" {
			t.Fatalf("expected version 'dev', got %q", resp.Version)
		}
	})
}
