package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v, output: %s", err, buf.String())
	}
	return entry
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		emit  func(Logger)
		want  bool
	}{
		{"info logs info", "info", func(l Logger) { l.Info("hello") }, true},
		{"info drops debug", "info", func(l Logger) { l.Debug("hello") }, false},
		{"debug logs debug", "debug", func(l Logger) { l.Debug("hello") }, true},
		{"error drops warn", "error", func(l Logger) { l.Warn("hello") }, false},
		{"warning alias", "warning", func(l Logger) { l.Warn("hello") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.emit(NewLogger(Config{Level: tt.level, Format: "json", Output: buf}))
			if got := strings.Contains(buf.String(), "hello"); got != tt.want {
				t.Errorf("message presence = %v, want %v (output=%s)", got, tt.want, buf.String())
			}
		})
	}
}

func TestLoggerTextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	NewLogger(Config{Level: "info", Format: "text", Output: buf}).Info("test message", "key", "value")

	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected 'key=value' in output, got: %s", buf.String())
	}
}

func TestLoggerWithComponent(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "info", Format: "json", Output: buf})

	logger.WithComponent("reconciler").With("provider", "openid").Info("login")

	entry := decodeEntry(t, buf)
	if entry["component"] != "reconciler" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["provider"] != "openid" {
		t.Errorf("provider = %v", entry["provider"])
	}
}

func TestLoggerContextMethods(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(Config{Level: "debug", Format: "json", Output: buf})

	ctx := WithComponent(WithRequestID(context.Background(), "req-123"), "storage")
	logger.InfoContext(ctx, "test message")

	entry := decodeEntry(t, buf)
	if entry["request_id"] != "req-123" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if entry["component"] != "storage" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestContextHelpers_Empty(t *testing.T) {
	ctx := context.Background()
	if WithRequestID(ctx, "") != ctx {
		t.Error("empty request id should return the original context")
	}
	if WithComponent(ctx, "") != ctx {
		t.Error("empty component should return the original context")
	}
	//nolint:staticcheck // nil context is handled explicitly
	if RequestIDFromContext(nil) != "" || ComponentFromContext(nil) != "" {
		t.Error("nil context should yield empty values")
	}
}

func TestFromContext(t *testing.T) {
	buf := &bytes.Buffer{}
	base := NewLogger(Config{Level: "info", Format: "json", Output: buf})

	FromContext(WithRequestID(context.Background(), "req-9"), base).Info("bound")
	if entry := decodeEntry(t, buf); entry["request_id"] != "req-9" {
		t.Errorf("request_id = %v", entry["request_id"])
	}

	if FromContext(context.Background(), base) != base {
		t.Error("empty context should return the same logger")
	}
	if FromContext(context.Background(), nil) == nil {
		t.Error("nil logger should be replaced by a default")
	}
}

func TestNewLoggerFromSlog(t *testing.T) {
	buf := &bytes.Buffer{}
	sl := slog.New(slog.NewJSONHandler(buf, nil))
	l := NewLoggerFromSlog(sl)
	if l.Slog() != sl {
		t.Error("Slog() should return the wrapped logger")
	}
	if NewLoggerFromSlog(nil).Slog() == nil {
		t.Error("nil slog should fall back to the default")
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Error("dropped")
	l.WithComponent("x").InfoContext(context.Background(), "dropped")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CLAIMSYNC_LOG_LEVEL", "debug")
	t.Setenv("CLAIMSYNC_LOG_FORMAT", "text")

	cfg := ConfigFromEnv()
	if cfg.Level != "debug" || cfg.Format != "text" {
		t.Errorf("got level=%q format=%q", cfg.Level, cfg.Format)
	}
}
