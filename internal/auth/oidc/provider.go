package oidc

import (
	"context"
	"errors"
	"fmt"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// TokenSet is the token response of an authorization code exchange.
// IDToken is the raw compact JWS; it has been verified by the time a
// TokenSet leaves Exchange.
type TokenSet struct {
	AccessToken  string    `json:"-"`
	IDToken      string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// ErrNonceMismatch is returned by Exchange when the id_token nonce does not
// match the one bound to the login attempt.
var ErrNonceMismatch = errors.New("id_token nonce mismatch")

// ProviderConfig holds configuration for creating an OIDC provider.
type ProviderConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string // e.g., ["openid", "profile", "email"]
}

// Provider wraps OIDC discovery, token verification, and OAuth2 config.
type Provider struct {
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
	oauth2Config oauth2.Config
}

// NewProvider creates a Provider by performing OIDC discovery on the issuer URL.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	oidcProv, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	return &Provider{
		oidcProvider: oidcProv,
		verifier:     oidcProv.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     oidcProv.Endpoint(),
			Scopes:       scopes,
		},
	}, nil
}

// AuthCodeURL generates the IdP redirect URL. A non-empty nonce is sent as
// the OIDC nonce parameter and checked again in Exchange.
func (p *Provider) AuthCodeURL(state, nonce string) string {
	var opts []oauth2.AuthCodeOption
	if nonce != "" {
		opts = append(opts, gooidc.Nonce(nonce))
	}
	return p.oauth2Config.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for tokens, verifies the ID token
// and loads the user-info claims. When the provider advertises no
// userinfo endpoint the verified id_token claims are returned instead.
func (p *Provider) Exchange(ctx context.Context, code, nonce string) (*TokenSet, Claims, error) {
	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("token exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, nil, fmt.Errorf("no id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, nil, fmt.Errorf("verify id_token: %w", err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return nil, nil, ErrNonceMismatch
	}

	tokens := &TokenSet{
		AccessToken:  token.AccessToken,
		IDToken:      rawIDToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		Expiry:       token.Expiry,
	}

	if p.oidcProvider.UserInfoEndpoint() == "" {
		var claims Claims
		if err := idToken.Claims(&claims); err != nil {
			return nil, nil, fmt.Errorf("extract claims: %w", err)
		}
		return tokens, claims, nil
	}

	info, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, nil, fmt.Errorf("userinfo: %w", err)
	}
	if info.Subject != idToken.Subject {
		return nil, nil, fmt.Errorf("userinfo subject %q does not match id_token subject", info.Subject)
	}
	var claims Claims
	if err := info.Claims(&claims); err != nil {
		return nil, nil, fmt.Errorf("extract userinfo claims: %w", err)
	}
	return tokens, claims, nil
}
