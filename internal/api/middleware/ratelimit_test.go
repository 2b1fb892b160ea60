package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func limitedEngine(t *testing.T, mw gin.HandlerFunc) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.Use(mw)
	r.GET("/api/config/list", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"items": []string{}})
	})
	r.POST("/api/auth/login", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"token": "t"})
	})
	return r
}

func send(r http.Handler, method, target, addr, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = addr
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestNewRateLimiter(t *testing.T) {
	t.Run("invalid period", func(t *testing.T) {
		if _, err := NewRateLimiter(10, "invalid", nil); err == nil {
			t.Fatal("expected error for invalid period")
		}
	})

	t.Run("non-positive limit", func(t *testing.T) {
		if _, err := NewRateLimiter(0, "1m", nil); err == nil {
			t.Fatal("expected error for zero limit")
		}
	})

	t.Run("requests exceeding limit rejected with JSON", func(t *testing.T) {
		mw, err := NewRateLimiter(2, "1m", nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		r := limitedEngine(t, mw)

		for i := 0; i < 2; i++ {
			if w := send(r, "GET", "/api/config/list", "10.0.0.1:12345", ""); w.Code != http.StatusOK {
				t.Fatalf("request %d: expected status 200, got %d", i+1, w.Code)
			}
		}

		w := send(r, "GET", "/api/config/list", "10.0.0.1:12345", "")
		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("expected status 429, got %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), `"rate_limited"`) {
			t.Fatalf("expected rate_limited body, got %s", w.Body.String())
		}
	})

	t.Run("sessions behind one address have separate budgets", func(t *testing.T) {
		mw, err := NewRateLimiter(1, "1m", BySession)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		r := limitedEngine(t, mw)

		for _, auth := range []string{"Bearer alice", "Bearer bob"} {
			if w := send(r, "GET", "/api/config/list", "10.0.0.9:1000", auth); w.Code != http.StatusOK {
				t.Fatalf("%s: expected status 200, got %d", auth, w.Code)
			}
		}
		if w := send(r, "GET", "/api/config/list", "10.0.0.9:1000", "Bearer alice"); w.Code != http.StatusTooManyRequests {
			t.Fatalf("expected second alice request limited, got %d", w.Code)
		}
	})

	t.Run("login attempts counted per address", func(t *testing.T) {
		mw, err := NewLoginRateLimiter(1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		r := limitedEngine(t, mw)

		for _, addr := range []string{"192.168.1.1:12345", "192.168.1.2:12345"} {
			if w := send(r, "POST", "/api/auth/login", addr, ""); w.Code != http.StatusOK {
				t.Fatalf("%s: expected status 200, got %d", addr, w.Code)
			}
		}
		if w := send(r, "POST", "/api/auth/login", "192.168.1.1:12345", "Bearer other"); w.Code != http.StatusTooManyRequests {
			t.Fatalf("expected repeated attempt from same address limited, got %d", w.Code)
		}
	})
}

func TestBySession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	key := func(auth string) string {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/", nil)
		c.Request.RemoteAddr = "10.1.1.1:1"
		if auth != "" {
			c.Request.Header.Set("Authorization", auth)
		}
		return BySession(c)
	}

	if got := key(""); got != "ip:10.1.1.1" {
		t.Errorf("anonymous key = %q", got)
	}
	a := key("Bearer secret")
	if !strings.HasPrefix(a, "session:") || strings.Contains(a, "secret") {
		t.Errorf("session key %q should be derived, not the credential", a)
	}
	if a != key("Bearer secret") {
		t.Error("session key should be stable")
	}
	if a == key("Bearer other") {
		t.Error("different credentials should not share a key")
	}
}
