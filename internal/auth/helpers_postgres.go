//go:build postgres

package auth

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// classifyPgErr maps PostgreSQL unique violations on the users table to
// ErrUsernameTaken or ErrIdentityExists. Other errors pass through unchanged.
func classifyPgErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_username_key":
		return ErrUsernameTaken
	case "users_provider_subject_key", "users_pkey":
		return ErrIdentityExists
	}
	return err
}
