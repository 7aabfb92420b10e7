package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"

	"claimsync/internal/auth"
	"claimsync/internal/auth/oidc"
)

const (
	stateCookie  = "claimsync_oidc_state"
	nonceCookie  = "claimsync_oidc_nonce"
	cookiePath   = "/auth/openid"
	cookieMaxAge = 600
)

// Authenticator is the relying-party side of the authorization code flow.
// *oidc.Provider implements it.
type Authenticator interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (*oidc.TokenSet, oidc.Claims, error)
}

// OIDCServer serves the OpenID login redirect and callback.
type OIDCServer struct {
	*Server
	authenticator Authenticator
	reconciler    *oidc.Reconciler
}

// NewOIDCServer creates the login handlers on top of srv.
func NewOIDCServer(srv *Server, authenticator Authenticator, reconciler *oidc.Reconciler) *OIDCServer {
	return &OIDCServer{Server: srv, authenticator: authenticator, reconciler: reconciler}
}

// RegisterOIDCRoutes mounts /auth/openid and its callback behind the rate limiter.
func (os *OIDCServer) RegisterOIDCRoutes() {
	os.mux.Handle("GET /auth/openid", os.limited(http.HandlerFunc(os.handleOIDCLogin)))
	os.mux.Handle("GET /auth/openid/callback", os.limited(http.HandlerFunc(os.handleOIDCCallback)))
}

type callbackResponse struct {
	User *auth.User `json:"user"`
}

// handleOIDCLogin redirects the user to the identity provider.
// GET /auth/openid
func (os *OIDCServer) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	state, err := randomToken()
	if err != nil {
		os.writeErr(ctx, w, http.StatusInternalServerError, "failed to generate state", err.Error())
		return
	}
	nonce, err := randomToken()
	if err != nil {
		os.writeErr(ctx, w, http.StatusInternalServerError, "failed to generate nonce", err.Error())
		return
	}

	secure := isSecure(r)
	http.SetCookie(w, flowCookie(stateCookie, state, cookieMaxAge, secure))
	http.SetCookie(w, flowCookie(nonceCookie, nonce, cookieMaxAge, secure))

	http.Redirect(w, r, os.authenticator.AuthCodeURL(state, nonce), http.StatusFound)
}

// handleOIDCCallback completes the code exchange and reconciles the user.
// GET /auth/openid/callback?code=xxx&state=xxx
func (os *OIDCServer) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		os.writeErr(ctx, w, http.StatusUnauthorized, "identity provider returned an error", errParam)
		return
	}

	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		os.writeErr(ctx, w, http.StatusBadRequest, "missing code or state", "")
		return
	}

	sc, err := r.Cookie(stateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(sc.Value), []byte(state)) != 1 {
		os.writeErr(ctx, w, http.StatusForbidden, "invalid state", "state mismatch")
		return
	}
	nc, err := r.Cookie(nonceCookie)
	if err != nil || nc.Value == "" {
		os.writeErr(ctx, w, http.StatusForbidden, "invalid state", "missing nonce")
		return
	}
	nonce := nc.Value

	secure := isSecure(r)
	http.SetCookie(w, flowCookie(stateCookie, "", -1, secure))
	http.SetCookie(w, flowCookie(nonceCookie, "", -1, secure))

	tokens, claims, err := os.authenticator.Exchange(ctx, code, nonce)
	if err != nil {
		os.writeErr(ctx, w, http.StatusUnauthorized, "token exchange failed", err.Error())
		return
	}

	user, err := os.reconcile(ctx, tokens, claims)
	if err != nil {
		os.writeReconcileErr(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, callbackResponse{User: user})
}

// reconcile runs the reconciler, retrying once when provisioning a new user
// lost a race or hit a store error.
func (os *OIDCServer) reconcile(ctx context.Context, tokens *oidc.TokenSet, claims oidc.Claims) (*auth.User, error) {
	var (
		user *auth.User
		err  error
	)
	done := func(e error, u *auth.User) { err, user = e, u }

	os.reconciler.Validate(ctx, tokens, claims, done)
	if err != nil && oidc.Retryable(err) {
		os.logger.WarnContext(ctx, "retrying openid reconciliation", appendRequestID(ctx, []any{"error", err})...)
		os.reconciler.Validate(ctx, tokens, claims, done)
	}
	return user, err
}

func (os *OIDCServer) writeReconcileErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, oidc.ErrAuthorization):
		os.writeErr(ctx, w, http.StatusForbidden, "login not permitted", err.Error())
	case errors.Is(err, oidc.ErrValidation):
		os.writeErr(ctx, w, http.StatusBadRequest, "invalid identity claims", err.Error())
	case errors.Is(err, oidc.ErrConflict):
		os.writeErr(ctx, w, http.StatusConflict, "conflicting login, try again", err.Error())
	default:
		os.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func randomToken() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

func flowCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cookiePath,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
