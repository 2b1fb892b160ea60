package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MacJediWizard/siteadmin/internal/upstream"
)

type mockUpstreamChecker struct {
	last  upstream.Status
	check upstream.Status
	calls int
}

func (m *mockUpstreamChecker) Check(_ context.Context) upstream.Status {
	m.calls++
	return m.check
}

func (m *mockUpstreamChecker) Last() upstream.Status {
	return m.last
}

func setupHealthTestRouter(checker UpstreamChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHealthHandler(checker, zerolog.Nop()).RegisterPublicRoutes(r)
	return r
}

func getHealth(t *testing.T, r *gin.Engine, path string) (int, HealthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	return w.Code, resp
}

func TestHealthOverall(t *testing.T) {
	t.Run("no probe yet", func(t *testing.T) {
		code, resp := getHealth(t, setupHealthTestRouter(&mockUpstreamChecker{}), "/health")
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if resp.Status != HealthStatusHealthy || resp.Upstream != nil {
			t.Fatalf("expected healthy without upstream, got %+v", resp)
		}
	})

	t.Run("upstream healthy", func(t *testing.T) {
		checker := &mockUpstreamChecker{last: upstream.Status{Healthy: true, StatusCode: 200, CheckedAt: time.Now()}}
		code, resp := getHealth(t, setupHealthTestRouter(checker), "/health")
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if resp.Status != HealthStatusHealthy {
			t.Fatalf("expected healthy, got %q", resp.Status)
		}
		if resp.Upstream == nil || resp.Upstream.StatusCode != 200 {
			t.Fatalf("expected upstream status attached, got %+v", resp.Upstream)
		}
		if checker.calls != 0 {
			t.Fatal("overall health must not probe the backend")
		}
	})

	t.Run("upstream down degrades", func(t *testing.T) {
		checker := &mockUpstreamChecker{last: upstream.Status{Error: "connection refused", CheckedAt: time.Now()}}
		code, resp := getHealth(t, setupHealthTestRouter(checker), "/health")
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if resp.Status != HealthStatusDegraded {
			t.Fatalf("expected degraded, got %q", resp.Status)
		}
	})
}

func TestHealthUpstream(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		checker := &mockUpstreamChecker{check: upstream.Status{Healthy: true, StatusCode: 200, CheckedAt: time.Now()}}
		code, resp := getHealth(t, setupHealthTestRouter(checker), "/health/upstream")
		if code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", code)
		}
		if resp.Status != HealthStatusHealthy {
			t.Fatalf("expected healthy, got %q", resp.Status)
		}
		if checker.calls != 1 {
			t.Fatalf("expected one probe, got %d", checker.calls)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		checker := &mockUpstreamChecker{check: upstream.Status{StatusCode: 502, CheckedAt: time.Now()}}
		code, resp := getHealth(t, setupHealthTestRouter(checker), "/health/upstream")
		if code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", code)
		}
		if resp.Status != HealthStatusUnhealthy {
			t.Fatalf("expected unhealthy, got %q", resp.Status)
		}
		if resp.Upstream == nil || resp.Upstream.StatusCode != 502 {
			t.Fatalf("expected upstream status attached, got %+v", resp.Upstream)
		}
	})

	t.Run("no checker", func(t *testing.T) {
		code, _ := getHealth(t, setupHealthTestRouter(nil), "/health/upstream")
		if code != http.StatusServiceUnavailable {
			t.Fatalf("expected status 503, got %d", code)
		}
	})
}
