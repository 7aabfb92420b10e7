// Package api serves the OpenID login flow and operational endpoints over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"

	"claimsync/internal/observability"
)

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Pinger is implemented by stores that can report database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	mux       *http.ServeMux
	logger    observability.Logger
	metrics   *observability.Metrics
	rateLimit RateLimitConfig
	pinger    Pinger
}

// ServerOption configures optional Server dependencies.
type ServerOption func(*Server)

// WithMetrics enables the /metrics endpoint and request metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimit limits the login routes per client IP.
func WithRateLimit(cfg RateLimitConfig) ServerOption {
	return func(s *Server) { s.rateLimit = cfg }
}

// WithPinger makes /readyz check database connectivity.
func WithPinger(p Pinger) ServerOption {
	return func(s *Server) { s.pinger = p }
}

// NewServer creates a server on a fresh mux with /healthz and /readyz
// registered. If logger is nil, a default JSON logger is used.
func NewServer(logger observability.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	s := &Server{mux: http.NewServeMux(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return s
}

// Mux exposes the route table for additional handlers.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// Handler returns the mux wrapped in the standard middleware chain.
func (s *Server) Handler() http.Handler {
	return ApplyMiddlewares(s.mux,
		RequestIDMiddleware(),
		LoggingMiddleware(s.logger),
		observability.MetricsMiddleware(s.metrics),
	)
}

// limited wraps h with the per-client rate limiter when one is configured.
func (s *Server) limited(h http.Handler) http.Handler {
	return ApplyMiddlewares(h,
		observability.RateLimitMetricsMiddleware(s.metrics, s.rateLimit.Enabled()),
		RateLimitMiddleware(s.rateLimit, s.logger),
	)
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	fields = appendRequestID(ctx, fields)
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		hub := sentry.GetHubFromContext(ctx)
		if hub == nil {
			hub = sentry.CurrentHub()
		}
		hub.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

func appendRequestID(ctx context.Context, fields []any) []any {
	if id := observability.RequestIDFromContext(ctx); id != "" {
		return append(fields, "request_id", id)
	}
	return fields
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
