package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPrometheus_Requests(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	t.Run("counts by route method and status", func(t *testing.T) {
		m.RecordRequest("/api/config/list", "GET", 200, 10*time.Millisecond)
		m.RecordRequest("/api/config/list", "GET", 200, 30*time.Millisecond)
		m.RecordRequest("/api/config/list", "GET", 502, time.Millisecond)

		if val := getCounterValue(t, m.Requests, "/api/config/list", "GET", "200"); val != 2 {
			t.Errorf("expected 2, got %f", val)
		}
		if val := getCounterValue(t, m.Requests, "/api/config/list", "GET", "502"); val != 1 {
			t.Errorf("expected 1, got %f", val)
		}
	})

	t.Run("observes duration per route", func(t *testing.T) {
		count, sum := getHistogramValues(t, m.RequestDuration, "/api/config/list")
		if count != 3 {
			t.Errorf("expected count 3, got %d", count)
		}
		if sum < 0.04 || sum > 0.042 {
			t.Errorf("expected sum near 0.041, got %f", sum)
		}
	})
}

func TestPrometheus_Upstream(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	t.Run("counts failures per operation", func(t *testing.T) {
		m.RecordUpstreamFailure("generate-url-token")
		m.RecordUpstreamFailure("generate-url-token")
		m.RecordUpstreamFailure("config-list")

		if val := getCounterValue(t, m.UpstreamFailures, "generate-url-token"); val != 2 {
			t.Errorf("expected 2, got %f", val)
		}
	})

	t.Run("tracks probe status", func(t *testing.T) {
		m.SetUpstreamStatus(true, 250*time.Millisecond)
		if val := getGaugeValue(t, m.UpstreamUp); val != 1 {
			t.Errorf("expected 1, got %f", val)
		}
		if val := getGaugeValue(t, m.UpstreamLatency); val != 0.25 {
			t.Errorf("expected 0.25, got %f", val)
		}

		m.SetUpstreamStatus(false, 0)
		if val := getGaugeValue(t, m.UpstreamUp); val != 0 {
			t.Errorf("expected 0 after failure, got %f", val)
		}
	})
}

func TestPrometheus_NilMetrics(t *testing.T) {
	var m *PrometheusMetrics
	m.RecordRequest("/x", "GET", 200, time.Second)
	m.RecordUpstreamFailure("x")
	m.SetUpstreamStatus(true, time.Second)
}

func TestPrometheus_Registration(t *testing.T) {
	t.Run("fails on duplicate registration", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		if _, err := NewPrometheusMetrics(reg); err != nil {
			t.Fatalf("first registration failed: %v", err)
		}
		if _, err := NewPrometheusMetrics(reg); err == nil {
			t.Fatal("expected error on duplicate registration")
		}
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	m.RecordRequest("/health", "GET", 200, time.Millisecond)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `siteadmin_gateway_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Errorf("request counter missing from exposition:\n%s", w.Body.String())
	}
}

// Helper functions for extracting Prometheus metric values.

func getCounterValue(t *testing.T, counter *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	var m dto.Metric
	if err := counter.WithLabelValues(labels...).(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := gauge.Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func getHistogramValues(t *testing.T, hist *prometheus.HistogramVec, label string) (uint64, float64) {
	t.Helper()
	observer := hist.WithLabelValues(label)
	var m dto.Metric
	if err := observer.(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()
}
