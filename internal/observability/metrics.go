package observability

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes recorded by Metrics.RecordLogin.
const (
	OutcomeCreated  = "created"
	OutcomeUpdated  = "updated"
	OutcomeDenied   = "denied"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// MetricsConfig holds configuration for the metrics subsystem.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool `yaml:"enabled"`
	// Namespace prefix for all metrics (default: claimsync).
	Namespace string `yaml:"namespace"`
	// Version is the application version for the info metric.
	Version string `yaml:"-"`
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "claimsync",
		Version:   "dev",
	}
}

// ApplyEnv overrides c from CLAIMSYNC_METRICS_ENABLED and APP_VERSION.
func (c *MetricsConfig) ApplyEnv() {
	if v := os.Getenv("CLAIMSYNC_METRICS_ENABLED"); v != "" {
		c.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("APP_VERSION"); v != "" {
		c.Version = v
	}
}

// Metrics holds the Prometheus collectors for the service. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	rateLimit         *prometheus.CounterVec
	activeConnections prometheus.Gauge

	logins             *prometheus.CounterVec
	reconcileDuration  prometheus.Histogram
	usernameCollisions prometheus.Counter
}

// NewMetrics creates collectors on a private registry. It returns nil when
// cfg.Enabled is false.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "claimsync"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "rate_limit_requests_total",
			Help:      "Total rate limit decisions",
		}, []string{"status"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "active_connections",
			Help:      "Current number of in-flight HTTP requests",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "logins_total",
			Help:      "OpenID logins by reconciliation outcome",
		}, []string{"outcome"}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent reconciling claims with the user store",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		usernameCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "username_collisions_total",
			Help:      "Derived usernames that were already taken",
		}),
	}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "info",
		Help:      "Application information",
	}, []string{"version"})
	info.WithLabelValues(cfg.Version).Set(1)

	m.registry.MustRegister(
		info,
		m.httpRequests,
		m.httpDuration,
		m.rateLimit,
		m.activeConnections,
		m.logins,
		m.reconcileDuration,
		m.usernameCollisions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordHTTPRequest records an HTTP request with its method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	p := normalizePath(path)
	m.httpRequests.WithLabelValues(method, p, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, p).Observe(duration.Seconds())
}

// RecordRateLimit counts one rate limiter decision.
func (m *Metrics) RecordRateLimit(allowed bool) {
	if m == nil {
		return
	}
	status := "allowed"
	if !allowed {
		status = "rejected"
	}
	m.rateLimit.WithLabelValues(status).Inc()
}

// RecordLogin counts one reconciliation outcome and its duration.
func (m *Metrics) RecordLogin(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
	m.reconcileDuration.Observe(duration.Seconds())
}

// RecordUsernameCollision counts a derived username that was already held.
func (m *Metrics) RecordUsernameCollision() {
	if m == nil {
		return
	}
	m.usernameCollisions.Inc()
}

// normalizePath replaces numeric and UUID path segments with {id}.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = "{id}"
		} else if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

// Handler returns an http.Handler that serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MetricsMiddleware returns an HTTP middleware that records request metrics.
func MetricsMiddleware(m *Metrics) func(http.Handler) http.Handler {
	if m == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			m.activeConnections.Inc()
			defer m.activeConnections.Dec()

			start := time.Now()
			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			m.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		})
	}
}

// RateLimitMetricsMiddleware wraps the rate limiter and counts its decisions
// by observing 429 responses.
func RateLimitMetricsMiddleware(m *Metrics, rateLimitEnabled bool) func(http.Handler) http.Handler {
	if m == nil || !rateLimitEnabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			m.RecordRateLimit(wrapped.statusCode != http.StatusTooManyRequests)
		})
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
