package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"claimsync/internal/observability"
	"claimsync/internal/testutil"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	h := NewServer(observability.NopLogger()).Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertStatus(t, rr.Code, http.StatusOK)
	testutil.AssertHeader(t, rr, "Content-Type", "application/json")
	testutil.AssertHeaderExists(t, rr, requestIDHeader)
}

func TestReadyz(t *testing.T) {
	ok := NewServer(observability.NopLogger(), WithPinger(pingFunc(func(context.Context) error { return nil }))).Handler()
	rr := httptest.NewRecorder()
	ok.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	testutil.AssertStatus(t, rr.Code, http.StatusOK)

	down := NewServer(observability.NopLogger(), WithPinger(pingFunc(func(context.Context) error {
		return errors.New("db down")
	}))).Handler()
	rr = httptest.NewRecorder()
	down.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	testutil.AssertStatus(t, rr.Code, http.StatusServiceUnavailable)

	var resp ReadinessResponse
	testutil.DecodeJSON(t, rr, &resp)
	if resp.Status != "unhealthy" || resp.Checks["database"] != "error" {
		t.Errorf("readiness = %+v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := observability.NewMetrics(observability.DefaultMetricsConfig())
	h := NewServer(observability.NopLogger(), WithMetrics(metrics)).Handler()

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertStatus(t, rr.Code, http.StatusOK)
	testutil.AssertContains(t, rr.Body, `claimsync_http_requests_total{method="GET",path="/healthz",status="200"} 1`)

	rr = httptest.NewRecorder()
	NewServer(observability.NopLogger()).Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	testutil.AssertStatus(t, rr.Code, http.StatusNotFound)
}

func TestRateLimitedLoginRoutes(t *testing.T) {
	rec := NewServer(observability.NopLogger(), WithRateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))
	NewOIDCServer(rec, &fakeAuthenticator{}, nil).RegisterOIDCRoutes()
	h := rec.Handler()

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/auth/openid", nil))
	testutil.AssertStatus(t, first.Code, http.StatusFound)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/auth/openid", nil))
	testutil.AssertStatus(t, second.Code, http.StatusTooManyRequests)

	health := httptest.NewRecorder()
	h.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	testutil.AssertStatus(t, health.Code, http.StatusOK)
}
