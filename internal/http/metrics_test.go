package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))

	m := newHTTPMetrics(mp.Meter(httpInstrumentationName), nil)

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/tenants/:tenant/dashboard", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one task id is required")
	})

	for _, path := range []string{"/health", "/api/v1/tenants/acme/dashboard", "/api/v1/tenants/globex/dashboard"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}

	foundRequests := false
	foundDuration := false
	foundResponseSize := false

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "esgmetrics.http.requests_total":
				foundRequests = true
				sum, ok := m.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("requests_total is %T, want Sum[int64]", m.Data)
				}
				byEndpoint := make(map[string]int64)
				for _, dp := range sum.DataPoints {
					endpoint, _ := dp.Attributes.Value(attribute.Key("endpoint"))
					status, _ := dp.Attributes.Value(attribute.Key("status"))
					if endpoint.AsString() == "/api/v1/tenants/:tenant/dashboard" && status.AsInt64() != http.StatusBadRequest {
						t.Errorf("dashboard status = %d, want 400", status.AsInt64())
					}
					byEndpoint[endpoint.AsString()] += dp.Value
				}
				if byEndpoint["/health"] != 1 {
					t.Errorf("expected 1 /health request, got %d", byEndpoint["/health"])
				}
				if byEndpoint["/api/v1/tenants/:tenant/dashboard"] != 2 {
					t.Errorf("expected 2 dashboard requests under the route template, got %v", byEndpoint)
				}
			case "esgmetrics.http.request_duration_seconds":
				foundDuration = true
				if hist, ok := m.Data.(metricdata.Histogram[float64]); ok {
					total := uint64(0)
					for _, dp := range hist.DataPoints {
						total += dp.Count
					}
					if total != 3 {
						t.Errorf("expected 3 duration recordings, got %d", total)
					}
				}
			case "esgmetrics.http.response_size_bytes":
				foundResponseSize = true
			}
		}
	}

	if !foundRequests {
		t.Error("requests counter not found")
	}
	if !foundDuration {
		t.Error("duration histogram not found")
	}
	if !foundResponseSize {
		t.Error("response size histogram not found")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/api/v1/evidence/resolve", "/api/v1/evidence/resolve"},
		{"/api/v1/tenants/:tenant/dashboard", "/api/v1/tenants/:tenant/dashboard"},
	}

	for _, tt := range tests {
		result := normalizePath(tt.input)
		if result != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}
