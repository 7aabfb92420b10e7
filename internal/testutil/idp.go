package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

// MockIdP client credentials.
const (
	MockClientID     = "test-client-id"
	MockClientSecret = "test-secret"
	MockAccessToken  = "mock-access-token"
)

// MockIdP is an httptest OpenID provider serving discovery, JWKS, token and
// optionally userinfo endpoints. Issued id tokens are RS256-signed.
type MockIdP struct {
	Server *httptest.Server

	mu           sync.Mutex
	key          *rsa.PrivateKey
	withUserInfo bool
	subject      string
	nonce        string
	idClaims     map[string]any
	userInfo     map[string]any
}

// NewMockIdP starts a provider for subject "1234" that is closed on test
// cleanup. withUserInfo controls whether a userinfo endpoint is advertised.
func NewMockIdP(t *testing.T, withUserInfo bool) *MockIdP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}
	m := &MockIdP{
		key:          key,
		withUserInfo: withUserInfo,
		subject:      "1234",
		idClaims: map[string]any{
			"email": "idtoken@example.com",
			"roles": []string{"requiredRole"},
		},
		userInfo: map[string]any{
			"sub":            "1234",
			"email":          "test@example.com",
			"email_verified": true,
			"given_name":     "First",
			"family_name":    "Last",
			"username":       "flast",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", m.handleDiscovery)
	mux.HandleFunc("GET /keys", m.handleKeys)
	mux.HandleFunc("POST /token", m.handleToken)
	mux.HandleFunc("GET /userinfo", m.handleUserInfo)

	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Server.Close)
	return m
}

// URL is the issuer URL.
func (m *MockIdP) URL() string { return m.Server.URL }

// SetNonce makes subsequent id tokens carry nonce.
func (m *MockIdP) SetNonce(nonce string) {
	m.mu.Lock()
	m.nonce = nonce
	m.mu.Unlock()
}

// SetIDTokenClaims replaces the non-standard claims of issued id tokens.
func (m *MockIdP) SetIDTokenClaims(claims map[string]any) {
	m.mu.Lock()
	m.idClaims = claims
	m.mu.Unlock()
}

// SetUserInfo replaces the userinfo response; its "sub" should match the
// id token subject.
func (m *MockIdP) SetUserInfo(claims map[string]any) {
	m.mu.Lock()
	m.userInfo = claims
	m.mu.Unlock()
}

func (m *MockIdP) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	base := m.Server.URL
	discovery := map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + "/authorize",
		"token_endpoint":                        base + "/token",
		"jwks_uri":                              base + "/keys",
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"subject_types_supported":               []string{"public"},
		"response_types_supported":              []string{"code"},
	}
	if m.withUserInfo {
		discovery["userinfo_endpoint"] = base + "/userinfo"
	}
	writeJSON(w, discovery)
}

func (m *MockIdP) handleKeys(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &m.key.PublicKey,
		KeyID:     "test-key-1",
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}})
}

func (m *MockIdP) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil || r.PostForm.Get("code") == "" {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("code") == "bad-code" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: m.key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "test-key-1"),
	)
	if err != nil {
		http.Error(w, fmt.Sprintf("create signer: %v", err), http.StatusInternalServerError)
		return
	}

	m.mu.Lock()
	extra := make(map[string]any, len(m.idClaims)+1)
	for k, v := range m.idClaims {
		extra[k] = v
	}
	if m.nonce != "" {
		extra["nonce"] = m.nonce
	}
	subject := m.subject
	m.mu.Unlock()

	now := time.Now()
	std := jwt.Claims{
		Issuer:    m.Server.URL,
		Subject:   subject,
		Audience:  jwt.Audience{MockClientID},
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(time.Hour)),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
	}
	raw, err := jwt.Signed(signer).Claims(std).Claims(extra).Serialize()
	if err != nil {
		http.Error(w, fmt.Sprintf("sign jwt: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"access_token":  MockAccessToken,
		"refresh_token": "mock-refresh-token",
		"token_type":    "Bearer",
		"id_token":      raw,
		"expires_in":    3600,
	})
}

func (m *MockIdP) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+MockAccessToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	m.mu.Lock()
	info := m.userInfo
	m.mu.Unlock()
	writeJSON(w, info)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
