package httpx_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/k1networth/hello-pipeline/internal/shared/httpx"
	"github.com/k1networth/hello-pipeline/internal/shared/requestid"
)

func testLogger() *slog.Logger {
	h := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h).With(
		slog.String("app", "test"),
		slog.String("env", "test"),
	)
}

func newRouterForTest(ready func(context.Context) error) (http.Handler, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return httpx.NewRouter(testLogger(), httpx.RouterOptions{
		Metrics:        httpx.NewMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Ready:          ready,
		Mount: func(mux *http.ServeMux) {
			mux.Handle("GET /echo-id", httpx.WithRoute("/echo-id", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(requestid.Get(r.Context())))
			})))
		},
	}), reg
}

func get(t *testing.T, srv *httptest.Server, path string, header map[string]string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(b)
}

func TestHealthzReturns200AndBodyOK(t *testing.T) {
	h, _ := newRouterForTest(nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	resp, body := get(t, srv, "/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if body != "ok" {
		t.Fatalf("expected body %q, got %q", "ok", body)
	}
}

func TestReadyzReflectsCheck(t *testing.T) {
	var down atomic.Bool
	h, _ := newRouterForTest(func(context.Context) error {
		if down.Load() {
			return errors.New("db unreachable")
		}
		return nil
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	if resp, _ := get(t, srv, "/readyz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected %d, got %d", http.StatusOK, resp.StatusCode)
	}

	down.Store(true)
	if resp, _ := get(t, srv, "/readyz", nil); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected %d, got %d", http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestRequestIDGeneratedIfMissing(t *testing.T) {
	h, _ := newRouterForTest(nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	resp, body := get(t, srv, "/echo-id", nil)

	got := resp.Header.Get("X-Request-Id")
	re := regexp.MustCompile(`^[0-9a-f]{32}$`)
	if !re.MatchString(got) {
		t.Fatalf("expected 32-char hex request id, got %q", got)
	}
	if body != got {
		t.Fatalf("expected handler to see request id %q, got %q", got, body)
	}
}

func TestRequestIDPreservedIfProvided(t *testing.T) {
	h, _ := newRouterForTest(nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	resp, body := get(t, srv, "/echo-id", map[string]string{"X-Request-Id": "test123"})
	if got := resp.Header.Get("X-Request-Id"); got != "test123" {
		t.Fatalf("expected X-Request-Id %q, got %q", "test123", got)
	}
	if body != "test123" {
		t.Fatalf("expected handler to see %q, got %q", "test123", body)
	}
}

func TestMetricsCountRoutes(t *testing.T) {
	h, reg := newRouterForTest(nil)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	get(t, srv, "/echo-id", nil)
	get(t, srv, "/echo-id", nil)
	get(t, srv, "/no-such-route", nil)

	expected := `
# HELP http_requests_total Total number of HTTP requests.
# TYPE http_requests_total counter
http_requests_total{method="GET",route="/echo-id",status="200"} 2
http_requests_total{method="GET",route="unmatched",status="404"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "http_requests_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}

	_, body := get(t, srv, "/metrics", nil)
	if !strings.Contains(body, "http_request_duration_seconds") {
		t.Fatalf("expected /metrics to expose request latency")
	}
}
