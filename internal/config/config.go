// Package config loads claimsync's startup configuration from an optional
// YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"claimsync/internal/auth/oidc"
	"claimsync/internal/observability"
)

// Config is the full service configuration. It is read once at startup and
// passed down explicitly; nothing below cmd/ consults the environment.
type Config struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	OpenID    OpenIDConfig                `yaml:"openid"`
	Log       observability.Config        `yaml:"log"`
	Metrics   observability.MetricsConfig `yaml:"metrics"`
	Sentry    SentryConfig                `yaml:"sentry"`
	Storage   StorageConfig               `yaml:"storage"`
	RateLimit RateLimitConfig             `yaml:"rate_limit"`
}

// OpenIDConfig describes the relying party and the claim mapping rules.
type OpenIDConfig struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	DomainServer string `yaml:"domain_server"`
	CallbackURL  string `yaml:"callback_url"`
	Scope        string `yaml:"scope"`
	ProviderTag  string `yaml:"provider_tag"`

	RequiredRole              string `yaml:"required_role"`
	RequiredRoleParameterPath string `yaml:"required_role_parameter_path"`
	RequiredRoleTokenKind     string `yaml:"required_role_token_kind"`

	UsernameClaim       string `yaml:"username_claim"`
	NameClaim           string `yaml:"name_claim"`
	MaxUsernameAttempts int    `yaml:"max_username_attempts"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

// StorageConfig selects persistent stores. Which one is used depends on the
// build tags the binary was compiled with.
type StorageConfig struct {
	SQLiteDSN   string `yaml:"sqlite_dsn"`
	DatabaseURL string `yaml:"database_url"`
}

// RateLimitConfig limits requests per client IP. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// TrustedProxies is a comma separated CIDR list whose X-Forwarded-For
	// header identifies the client.
	TrustedProxies string `yaml:"trusted_proxies"`
}

// Default returns the configuration used when neither file nor env set a value.
func Default() *Config {
	return &Config{
		Addr:            ":8080",
		ShutdownTimeout: 10 * time.Second,
		OpenID: OpenIDConfig{
			CallbackURL: "/auth/openid/callback",
			Scope:       "openid profile email",
			ProviderTag: "openid",
		},
		Log:       observability.DefaultConfig(),
		Metrics:   observability.DefaultMetricsConfig(),
		Sentry:    SentryConfig{Environment: "production"},
		RateLimit: RateLimitConfig{RPS: 5, Burst: 10},
	}
}

// Load reads path (if non-empty) over the defaults and then applies
// environment overrides. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Addr, "CLAIMSYNC_ADDR")
	if v := os.Getenv("CLAIMSYNC_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CLAIMSYNC_SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}

	o := &c.OpenID
	setString(&o.Issuer, "OPENID_ISSUER")
	setString(&o.ClientID, "OPENID_CLIENT_ID")
	setString(&o.ClientSecret, "OPENID_CLIENT_SECRET")
	setString(&o.DomainServer, "DOMAIN_SERVER")
	setString(&o.CallbackURL, "OPENID_CALLBACK_URL")
	setString(&o.Scope, "OPENID_SCOPE")
	setString(&o.ProviderTag, "OPENID_PROVIDER_TAG")
	setString(&o.RequiredRole, "OPENID_REQUIRED_ROLE")
	setString(&o.RequiredRoleParameterPath, "OPENID_REQUIRED_ROLE_PARAMETER_PATH")
	setString(&o.RequiredRoleTokenKind, "OPENID_REQUIRED_ROLE_TOKEN_KIND")
	setString(&o.UsernameClaim, "OPENID_USERNAME_CLAIM")
	setString(&o.NameClaim, "OPENID_NAME_CLAIM")
	if v := os.Getenv("OPENID_MAX_USERNAME_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("OPENID_MAX_USERNAME_ATTEMPTS: %w", err)
		}
		o.MaxUsernameAttempts = n
	}

	c.Log.ApplyEnv()
	c.Metrics.ApplyEnv()

	setString(&c.Sentry.DSN, "SENTRY_DSN")
	setString(&c.Sentry.Environment, "SENTRY_ENVIRONMENT")

	setString(&c.Storage.SQLiteDSN, "SQLITE_DSN")
	setString(&c.Storage.DatabaseURL, "DATABASE_URL")

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		c.RateLimit.RPS = rps
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_BURST: %w", err)
		}
		c.RateLimit.Burst = burst
	}
	setString(&c.RateLimit.TrustedProxies, "TRUSTED_PROXIES")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks what the serve command needs before any network call.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required (set CLAIMSYNC_ADDR or yaml)")
	}
	if c.OpenID.Issuer == "" {
		return errors.New("openid.issuer is required (set OPENID_ISSUER or yaml)")
	}
	if c.OpenID.ClientID == "" {
		return errors.New("openid.client_id is required (set OPENID_CLIENT_ID or yaml)")
	}
	if c.OpenID.DomainServer == "" {
		return errors.New("openid.domain_server is required (set DOMAIN_SERVER or yaml)")
	}
	if _, err := c.RedirectURL(); err != nil {
		return err
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1 {
		return errors.New("rate_limit.burst must be at least 1 when rate limiting is enabled")
	}
	if err := c.ReconcilerConfig().Validate(); err != nil {
		return fmt.Errorf("openid: %w", err)
	}
	return nil
}

// RedirectURL joins the public server origin with the callback path.
func (c *Config) RedirectURL() (string, error) {
	raw := strings.TrimRight(c.OpenID.DomainServer, "/") + "/" + strings.TrimLeft(c.OpenID.CallbackURL, "/")
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid redirect url %q", raw)
	}
	return u.String(), nil
}

// Scopes splits the configured scope string on whitespace.
func (c *Config) Scopes() []string {
	return strings.Fields(c.OpenID.Scope)
}

// ProviderConfig returns the relying-party settings for oidc.NewProvider.
func (c *Config) ProviderConfig() (oidc.ProviderConfig, error) {
	redirect, err := c.RedirectURL()
	if err != nil {
		return oidc.ProviderConfig{}, err
	}
	return oidc.ProviderConfig{
		IssuerURL:    c.OpenID.Issuer,
		ClientID:     c.OpenID.ClientID,
		ClientSecret: c.OpenID.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       c.Scopes(),
	}, nil
}

// ReconcilerConfig returns the claim mapping rules for oidc.NewReconciler.
func (c *Config) ReconcilerConfig() oidc.ReconcilerConfig {
	return oidc.ReconcilerConfig{
		Provider:            c.OpenID.ProviderTag,
		RequiredRole:        c.OpenID.RequiredRole,
		RoleClaimPath:       c.OpenID.RequiredRoleParameterPath,
		RoleTokenKind:       c.OpenID.RequiredRoleTokenKind,
		UsernameClaim:       c.OpenID.UsernameClaim,
		NameClaim:           c.OpenID.NameClaim,
		MaxUsernameAttempts: c.OpenID.MaxUsernameAttempts,
	}
}
