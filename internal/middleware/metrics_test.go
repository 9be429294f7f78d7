package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"g4m3ify-proxy/internal/metrics"
)

// findSeries returns the first series of family name whose labels include
// every pair in want.
func findSeries(t *testing.T, m *metrics.Metrics, name string, want map[string]string) *dto.Metric {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	next:
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue next
				}
			}
			return metric
		}
	}
	return nil
}

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/games/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for _, id := range []string{"1", "7"} {
		req := httptest.NewRequest(http.MethodGet, "/api/games/"+id, http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	}

	series := findSeries(t, m, "g4m3ify_proxy_http_requests_total", map[string]string{"path_prefix": "/api/games"})
	if series == nil {
		t.Fatal("expected g4m3ify_proxy_http_requests_total with path_prefix=/api/games")
	}
	if v := series.GetCounter().GetValue(); v != 2 {
		t.Errorf("counter value = %v, want 2", v)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	series := findSeries(t, m, "g4m3ify_proxy_http_request_duration_seconds", map[string]string{"path_prefix": "/healthz"})
	if series == nil || series.GetHistogram().GetSampleCount() == 0 {
		t.Error("expected g4m3ify_proxy_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_ProxyTargetsShareOneSeries(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/proxy", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for _, target := range []string{"https%3A%2F%2Fa.example.com", "https%3A%2F%2Fb.example.com"} {
		req := httptest.NewRequest(http.MethodGet, "/proxy?url="+target, http.NoBody)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	series := findSeries(t, m, "g4m3ify_proxy_http_requests_total", map[string]string{"path_prefix": "/proxy"})
	if series == nil {
		t.Fatal("expected g4m3ify_proxy_http_requests_total with path_prefix=/proxy")
	}
	if v := series.GetCounter().GetValue(); v != 2 {
		t.Errorf("counter value = %v, want 2", v)
	}
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/games/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/games/999", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	series := findSeries(t, m, "g4m3ify_proxy_http_requests_total", map[string]string{"path_prefix": "/api/games"})
	if series == nil {
		t.Fatal("expected g4m3ify_proxy_http_requests_total with path_prefix=/api/games")
	}
	for _, lp := range series.GetLabel() {
		if lp.GetName() == "status_code" && lp.GetValue() != "404" {
			t.Errorf("status_code = %q, want %q", lp.GetValue(), "404")
		}
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/proxy", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("XYZZY", "/proxy", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	if findSeries(t, m, "g4m3ify_proxy_http_requests_total", map[string]string{"path_prefix": "/proxy", "method": "other"}) == nil {
		t.Error("expected g4m3ify_proxy_http_requests_total with path_prefix=/proxy and method=other")
	}
}

func TestMetricsMiddleware_RouterNotFound(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m))

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	want := map[string]string{"path_prefix": "other", "method": "GET", "status_code": "404"}
	if findSeries(t, m, "g4m3ify_proxy_http_requests_total", want) == nil {
		t.Error("expected g4m3ify_proxy_http_requests_total with path_prefix=other, method=GET, status_code=404")
	}
}
