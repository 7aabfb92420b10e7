// Package testutil provides shared helpers for claimsync tests: a mock
// OpenID provider, HTTP assertions and (with -tags postgres) a disposable
// PostgreSQL container.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, got, expected int) {
	t.Helper()
	if got != expected {
		t.Errorf("expected status %d, got %d", expected, got)
	}
}

// AssertContains checks that the body contains the expected string.
func AssertContains(t *testing.T, body io.Reader, expected string) {
	t.Helper()
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !bytes.Contains(data, []byte(expected)) {
		t.Errorf("expected body to contain %q, got: %s", expected, string(data))
	}
}

// AssertHeader checks that the recorder has the expected header value.
func AssertHeader(t *testing.T, rec *httptest.ResponseRecorder, key, expected string) {
	t.Helper()
	if got := rec.Header().Get(key); got != expected {
		t.Errorf("expected header %s=%q, got %q", key, expected, got)
	}
}

// AssertHeaderExists checks that the recorder has the specified header.
func AssertHeaderExists(t *testing.T, rec *httptest.ResponseRecorder, key string) {
	t.Helper()
	if rec.Header().Get(key) == "" {
		t.Errorf("expected header %s to exist", key)
	}
}

// DecodeJSON unmarshals a recorded JSON response body into v.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to unmarshal response: %v\nBody: %s", err, rec.Body.String())
	}
}

// CookieNamed returns the named cookie set on the recorded response, or nil.
func CookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
