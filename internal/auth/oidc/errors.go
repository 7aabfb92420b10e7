package oidc

import "errors"

// Reconciliation error classes. Every failure returned by the Reconciler
// wraps exactly one of these; callers branch with errors.Is.
var (
	// ErrAuthorization indicates the required role is not present in the role claim.
	ErrAuthorization = errors.New("authorization failed")

	// ErrValidation indicates a missing required claim or a malformed token/claims payload.
	ErrValidation = errors.New("invalid claims")

	// ErrConflict indicates a uniqueness violation on the external identity
	// or an exhausted username search.
	ErrConflict = errors.New("identity conflict")

	// ErrStore indicates the user store failed.
	ErrStore = errors.New("user store failure")
)

// createError marks a failure raised while provisioning a new user. It is
// transparent to errors.Is and to the message.
type createError struct{ err error }

func (e *createError) Error() string { return e.err.Error() }
func (e *createError) Unwrap() error { return e.err }

// Retryable reports whether a failed reconciliation may be retried once by
// the caller: only conflict and store failures on the create path qualify.
// Authorization and validation failures are terminal, and so is anything
// that went wrong while updating an existing user.
func Retryable(err error) bool {
	var ce *createError
	if !errors.As(err, &ce) {
		return false
	}
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStore)
}
