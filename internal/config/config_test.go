package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"claimsync/internal/auth/oidc"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claimsync.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func validConfig() *Config {
	cfg := Default()
	cfg.OpenID.Issuer = "https://idp.example.com"
	cfg.OpenID.ClientID = "claimsync"
	cfg.OpenID.DomainServer = "https://app.example.com"
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.OpenID.ProviderTag != "openid" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if got := cfg.Scopes(); !reflect.DeepEqual(got, []string{"openid", "profile", "email"}) {
		t.Errorf("Scopes = %v", got)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
addr: ":9090"
shutdown_timeout: 3s
openid:
  issuer: https://idp.example.com
  client_id: from-yaml
  domain_server: https://app.example.com/
  callback_url: /auth/openid/callback
  scope: "openid email"
  required_role: admin
  required_role_parameter_path: realm_access.roles
  required_role_token_kind: id
log:
  level: debug
rate_limit:
  rps: 2
  burst: 4
`)
	t.Setenv("OPENID_CLIENT_ID", "from-env")
	t.Setenv("OPENID_USERNAME_CLAIM", "preferred_username")
	t.Setenv("RATE_LIMIT_BURST", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" || cfg.ShutdownTimeout != 3*time.Second {
		t.Errorf("server settings = %q %v", cfg.Addr, cfg.ShutdownTimeout)
	}
	if cfg.OpenID.ClientID != "from-env" {
		t.Errorf("env must override yaml, ClientID = %q", cfg.OpenID.ClientID)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
	if cfg.RateLimit.RPS != 2 || cfg.RateLimit.Burst != 8 {
		t.Errorf("rate limit = %+v", cfg.RateLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	redirect, err := cfg.RedirectURL()
	if err != nil || redirect != "https://app.example.com/auth/openid/callback" {
		t.Errorf("RedirectURL = %q, %v", redirect, err)
	}

	rc := cfg.ReconcilerConfig()
	want := oidc.ReconcilerConfig{
		Provider:      "openid",
		RequiredRole:  "admin",
		RoleClaimPath: "realm_access.roles",
		RoleTokenKind: oidc.RoleTokenID,
		UsernameClaim: "preferred_username",
	}
	if rc != want {
		t.Errorf("ReconcilerConfig = %+v, want %+v", rc, want)
	}

	pc, err := cfg.ProviderConfig()
	if err != nil {
		t.Fatalf("ProviderConfig: %v", err)
	}
	if pc.ClientID != "from-env" || !reflect.DeepEqual(pc.Scopes, []string{"openid", "email"}) {
		t.Errorf("ProviderConfig = %+v", pc)
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := Load(writeFile(t, "addr: [")); err == nil {
		t.Error("expected parse error")
	}

	t.Run("bad env number", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_RPS", "fast")
		if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "RATE_LIMIT_RPS") {
			t.Errorf("err = %v", err)
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"no issuer", func(c *Config) { c.OpenID.Issuer = "" }, "openid.issuer"},
		{"no client", func(c *Config) { c.OpenID.ClientID = "" }, "openid.client_id"},
		{"no domain", func(c *Config) { c.OpenID.DomainServer = "" }, "openid.domain_server"},
		{"relative domain", func(c *Config) { c.OpenID.DomainServer = "app.example.com" }, "invalid redirect url"},
		{"burst", func(c *Config) { c.RateLimit.Burst = 0 }, "burst"},
		{"rate limit off", func(c *Config) { c.RateLimit = RateLimitConfig{} }, ""},
		{"role without path", func(c *Config) { c.OpenID.RequiredRole = "admin" }, "role claim path"},
		{"bad token kind", func(c *Config) { c.OpenID.RequiredRoleTokenKind = "access" }, "role token kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}
