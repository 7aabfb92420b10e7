package auth

import (
	"errors"
	"time"
)

// User errors.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrUsernameTaken is returned when the username is already held by another user.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrIdentityExists is returned when a user with the same provider and
	// subject already exists.
	ErrIdentityExists = errors.New("external identity already linked")
	ErrInvalidUser    = errors.New("invalid user")
)

// DefaultProvider is the provider tag used for OpenID users when none is configured.
const DefaultProvider = "openid"

// User represents a local user account linked to an external OpenID identity.
type User struct {
	ID            string     `json:"id"`
	Provider      string     `json:"provider"`
	OpenIDSubject string     `json:"openid_id"` // IdP "sub" claim
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	Name          string     `json:"name,omitempty"`
	Avatar        string     `json:"avatar,omitempty"`
	Roles         []string   `json:"roles,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// Validate checks the fields every stored user must carry.
func (u *User) Validate() error {
	if u == nil || u.ID == "" || u.Username == "" || u.Provider == "" || u.OpenIDSubject == "" {
		return ErrInvalidUser
	}
	return nil
}

// copyUser creates a deep copy of a User.
func copyUser(u *User) *User {
	if u == nil {
		return nil
	}
	cpy := *u
	if u.Roles != nil {
		cpy.Roles = make([]string, len(u.Roles))
		copy(cpy.Roles, u.Roles)
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		cpy.LastLoginAt = &t
	}
	return &cpy
}

// identityKey is the composite key for the (provider, subject) index.
func identityKey(provider, subject string) string {
	return provider + "\x00" + subject
}
