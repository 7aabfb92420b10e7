package oidc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"claimsync/internal/audit"
	"claimsync/internal/auth"
	"claimsync/internal/observability"
)

// Role claim sources.
const (
	RoleTokenID       = "id"
	RoleTokenUserInfo = "userinfo"
)

// DefaultMaxUsernameAttempts bounds the numbered suffixes tried before
// falling back to a random suffix.
const DefaultMaxUsernameAttempts = 10

// randomSuffixAttempts is how many random-suffix usernames are tried after
// the numbered ones are exhausted.
const randomSuffixAttempts = 3

// ReconcilerConfig is assembled once at startup and never re-read from the
// environment.
type ReconcilerConfig struct {
	// Provider is the tag stored alongside the subject (default "openid").
	Provider string

	// RequiredRole gates login when set together with RoleClaimPath.
	RequiredRole string
	// RoleClaimPath is a dot path ("realm_access.roles") to the role value.
	// Without RequiredRole the extracted roles are still stored on the user.
	RoleClaimPath string
	// RoleTokenKind selects where RoleClaimPath is read: "id" (identity token
	// payload) or "userinfo" (the claims argument). Defaults to "userinfo".
	RoleTokenKind string

	UsernameClaim string
	NameClaim     string

	MaxUsernameAttempts int
}

// Validate checks the configuration for inconsistent settings.
func (c ReconcilerConfig) Validate() error {
	switch c.RoleTokenKind {
	case "", RoleTokenID, RoleTokenUserInfo:
	default:
		return fmt.Errorf("role token kind must be %q or %q, got %q", RoleTokenID, RoleTokenUserInfo, c.RoleTokenKind)
	}
	if c.RequiredRole != "" && c.RoleClaimPath == "" {
		return errors.New("required role is set but role claim path is empty")
	}
	if c.MaxUsernameAttempts < 0 {
		return errors.New("max username attempts must not be negative")
	}
	return nil
}

func (c ReconcilerConfig) withDefaults() ReconcilerConfig {
	if c.Provider == "" {
		c.Provider = auth.DefaultProvider
	}
	if c.RoleTokenKind == "" {
		c.RoleTokenKind = RoleTokenUserInfo
	}
	if c.MaxUsernameAttempts <= 0 {
		c.MaxUsernameAttempts = DefaultMaxUsernameAttempts
	}
	return c
}

// DoneFunc receives the outcome of Validate: either a non-nil error or the
// reconciled user, never both.
type DoneFunc func(err error, user *auth.User)

// Reconciler turns the tokens and claims of a completed OpenID exchange into
// a local user record.
type Reconciler struct {
	users   auth.UserStore
	cfg     ReconcilerConfig
	logger  observability.Logger
	metrics *observability.Metrics
	audit   audit.AuditLogger
	now     func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

func WithLogger(l observability.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *observability.Metrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

func WithAuditLogger(a audit.AuditLogger) ReconcilerOption {
	return func(r *Reconciler) { r.audit = a }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// NewReconciler validates cfg and returns a Reconciler backed by users.
func NewReconciler(users auth.UserStore, cfg ReconcilerConfig, opts ...ReconcilerOption) (*Reconciler, error) {
	if users == nil {
		return nil, errors.New("user store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Reconciler{
		users:  users,
		cfg:    cfg.withDefaults(),
		logger: observability.NopLogger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("reconciler")
	return r, nil
}

// Validate reconciles the login and reports the result through done, which
// is called exactly once. Errors are never returned or panicked.
func (r *Reconciler) Validate(ctx context.Context, tokens *TokenSet, claims Claims, done DoneFunc) {
	user, err := r.Reconcile(ctx, tokens, claims)
	if err != nil {
		done(err, nil)
		return
	}
	done(nil, user)
}

// Reconcile is the return-value form of Validate. Every error wraps one of
// ErrAuthorization, ErrValidation, ErrConflict or ErrStore.
func (r *Reconciler) Reconcile(ctx context.Context, tokens *TokenSet, claims Claims) (*auth.User, error) {
	start := time.Now()
	user, created, err := r.reconcile(ctx, tokens, claims)
	outcome := outcomeOf(created, err)
	r.metrics.RecordLogin(outcome, time.Since(start))

	sub, _ := claims.String(ClaimSubject)
	log := observability.FromContext(ctx, r.logger).With("provider", r.cfg.Provider, "sub", sub, "outcome", outcome)

	switch {
	case err == nil:
		action := audit.ActionLogin
		if created {
			action = audit.ActionProvision
		}
		log.Info("openid login reconciled", "user_id", user.ID, "username", user.Username)
		r.record(ctx, action, sub, user.ID, user.Username, "", 200)
	case errors.Is(err, ErrAuthorization):
		log.Warn("openid login denied", "error", err)
		r.record(ctx, audit.ActionLoginDenied, sub, "", "", err.Error(), 403)
	case errors.Is(err, ErrStore):
		log.Error("openid login failed", "error", err)
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.CaptureException(err)
		}
	default:
		log.Warn("openid login rejected", "error", err)
	}
	return user, err
}

func outcomeOf(created bool, err error) string {
	switch {
	case err == nil && created:
		return observability.OutcomeCreated
	case err == nil:
		return observability.OutcomeUpdated
	case errors.Is(err, ErrAuthorization):
		return observability.OutcomeDenied
	case errors.Is(err, ErrValidation):
		return observability.OutcomeInvalid
	case errors.Is(err, ErrConflict):
		return observability.OutcomeConflict
	default:
		return observability.OutcomeError
	}
}

func (r *Reconciler) reconcile(ctx context.Context, tokens *TokenSet, claims Claims) (*auth.User, bool, error) {
	sub, _ := claims.String(ClaimSubject)
	sub = strings.TrimSpace(sub)
	if sub == "" {
		return nil, false, fmt.Errorf("%w: missing %q claim", ErrValidation, ClaimSubject)
	}

	roles, haveRoles, err := r.authorize(tokens, claims)
	if err != nil {
		return nil, false, err
	}

	existing, err := r.users.GetByExternalID(ctx, r.cfg.Provider, sub)
	if err != nil {
		return nil, false, fmt.Errorf("%w: lookup %s user %q: %w", ErrStore, r.cfg.Provider, sub, err)
	}
	if existing != nil {
		user, err := r.update(ctx, existing, claims, roles, haveRoles)
		return user, false, err
	}
	user, err := r.create(ctx, sub, claims, roles)
	if err != nil {
		return nil, false, &createError{err: err}
	}
	return user, true, nil
}

// authorize extracts the configured role value and enforces the required
// role. haveRoles is false when no role path is configured or the source
// carries no role value.
func (r *Reconciler) authorize(tokens *TokenSet, claims Claims) (roles []string, haveRoles bool, err error) {
	if r.cfg.RoleClaimPath == "" {
		return nil, false, nil
	}
	gated := r.cfg.RequiredRole != ""

	source := claims
	if r.cfg.RoleTokenKind == RoleTokenID {
		if tokens == nil || tokens.IDToken == "" {
			if gated {
				return nil, false, fmt.Errorf("%w: id token required to read role claim", ErrValidation)
			}
			return nil, false, nil
		}
		source, err = DecodeIDToken(tokens.IDToken)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	value, found := source.Lookup(r.cfg.RoleClaimPath)
	if found {
		roles, found = Strings(value)
	}
	if !gated {
		return roles, found, nil
	}
	if !found {
		return nil, false, fmt.Errorf("%w: role claim %q not present", ErrAuthorization, r.cfg.RoleClaimPath)
	}
	if !slices.Contains(roles, r.cfg.RequiredRole) {
		return nil, false, fmt.Errorf("%w: required role %q not granted", ErrAuthorization, r.cfg.RequiredRole)
	}
	return roles, true, nil
}

func (r *Reconciler) create(ctx context.Context, sub string, claims Claims, roles []string) (*auth.User, error) {
	email, _ := claims.String(ClaimEmail)
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: missing %q claim", ErrValidation, ClaimEmail)
	}

	now := r.now()
	user := &auth.User{
		ID:            uuid.New().String(),
		Provider:      r.cfg.Provider,
		OpenIDSubject: sub,
		Email:         email,
		Name:          DeriveName(claims, r.cfg.NameClaim),
		Roles:         roles,
		CreatedAt:     now,
		UpdatedAt:     now,
		LastLoginAt:   &now,
	}
	user.EmailVerified, _ = claims.Bool(ClaimEmailVerified)
	user.Avatar, _ = claims.String(ClaimPicture)

	base := DeriveUsername(claims, r.cfg.UsernameClaim)
	limit := r.cfg.MaxUsernameAttempts + randomSuffixAttempts
	for attempt := 1; attempt <= limit; attempt++ {
		candidate := r.usernameCandidate(base, attempt)
		taken, err := r.users.ExistsByUsername(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("%w: check username %q: %w", ErrStore, candidate, err)
		}
		if taken {
			r.metrics.RecordUsernameCollision()
			continue
		}

		user.Username = candidate
		err = r.users.Create(ctx, user)
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, auth.ErrUsernameTaken):
			// lost a race for this username; move to the next candidate
			r.metrics.RecordUsernameCollision()
		case errors.Is(err, auth.ErrIdentityExists):
			return nil, fmt.Errorf("%w: %s user %q was created concurrently", ErrConflict, r.cfg.Provider, sub)
		default:
			return nil, fmt.Errorf("%w: create user: %w", ErrStore, err)
		}
	}
	return nil, fmt.Errorf("%w: no free username derived from %q after %d attempts", ErrConflict, base, limit)
}

// usernameCandidate returns base for the first attempt, base_<n> up to
// MaxUsernameAttempts, then base_<8 random hex chars>.
func (r *Reconciler) usernameCandidate(base string, attempt int) string {
	switch {
	case attempt == 1:
		return base
	case attempt <= r.cfg.MaxUsernameAttempts:
		return base + "_" + strconv.Itoa(attempt)
	default:
		return base + "_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	}
}

// update refreshes the mutable profile fields of a returning user. Username,
// provider and subject are kept; email is only filled when empty.
func (r *Reconciler) update(ctx context.Context, user *auth.User, claims Claims, roles []string, haveRoles bool) (*auth.User, error) {
	if name := DeriveName(claims, r.cfg.NameClaim); name != "" {
		user.Name = name
	}
	if picture, ok := claims.String(ClaimPicture); ok {
		user.Avatar = picture
	}
	if verified, ok := claims.Bool(ClaimEmailVerified); ok {
		user.EmailVerified = verified
	}
	if user.Email == "" {
		if email, _ := claims.String(ClaimEmail); strings.TrimSpace(email) != "" {
			user.Email = strings.TrimSpace(email)
		}
	}
	if haveRoles {
		user.Roles = roles
	}
	now := r.now()
	user.UpdatedAt = now
	user.LastLoginAt = &now

	if err := r.users.Update(ctx, user); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user %s disappeared during login", ErrConflict, user.ID)
		}
		return nil, fmt.Errorf("%w: update user %s: %w", ErrStore, user.ID, err)
	}
	return user, nil
}

func (r *Reconciler) record(ctx context.Context, action, sub, userID, username, detail string, status int) {
	if r.audit == nil {
		return
	}
	event := &audit.AuditEvent{
		Timestamp:    r.now(),
		Actor:        r.cfg.Provider + ":" + sub,
		ActorType:    audit.ActorTypeOpenID,
		Action:       action,
		ResourceType: audit.ResourceUser,
		ResourceID:   userID,
		ResourceName: username,
		Detail:       detail,
		RequestID:    observability.RequestIDFromContext(ctx),
		StatusCode:   status,
	}
	if err := r.audit.Log(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "audit log write failed", "action", action, "error", err)
	}
}
