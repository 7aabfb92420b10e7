//go:build postgres

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pgstore "claimsync/internal/storage/postgres"
)

const pgUserColumns = `id::text, provider, openid_subject, username, email, email_verified, name, avatar, roles, created_at, updated_at, last_login_at`

// PostgresUserStore is a PostgreSQL-backed implementation of UserStore.
type PostgresUserStore struct {
	pool  *pgxpool.Pool
	owned *pgstore.Store
}

// NewPostgresUserStore connects (running migrations) and returns a user store owning the pool.
func NewPostgresUserStore(connStr string) (*PostgresUserStore, error) {
	st, err := pgstore.New(connStr)
	if err != nil {
		return nil, err
	}
	return &PostgresUserStore{pool: st.Pool(), owned: st}, nil
}

// NewPostgresUserStoreFromPool creates a user store using an existing, migrated pool.
func NewPostgresUserStoreFromPool(pool *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

func (s *PostgresUserStore) Close() error {
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}

func (s *PostgresUserStore) Create(ctx context.Context, user *User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, provider, openid_subject, username, email, email_verified, name, avatar, roles, created_at, updated_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		user.ID, user.Provider, user.OpenIDSubject, user.Username, user.Email,
		user.EmailVerified, user.Name, user.Avatar, roles, user.CreatedAt, user.UpdatedAt, user.LastLoginAt,
	)
	if err != nil {
		if cerr := classifyPgErr(err); cerr != err {
			return cerr
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID returns nil for ids that are not UUIDs; no such row can exist.
func (s *PostgresUserStore) GetByID(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}
	return s.scanUser(s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE id = $1::uuid`, uid.String()))
}

func (s *PostgresUserStore) GetByExternalID(ctx context.Context, provider, subject string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT `+pgUserColumns+` FROM users WHERE provider = $1 AND openid_subject = $2`, provider, subject))
}

func (s *PostgresUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.pool.QueryRow(ctx, `SELECT `+pgUserColumns+` FROM users WHERE username = $1`, username))
}

func (s *PostgresUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return exists, nil
}

func (s *PostgresUserStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgUserColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanPgUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresUserStore) Update(ctx context.Context, user *User) error {
	if user == nil {
		return ErrUserNotFound
	}
	uid, err := uuid.Parse(user.ID)
	if err != nil {
		return ErrUserNotFound
	}
	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET username = $2, email = $3, email_verified = $4, name = $5, avatar = $6, roles = $7, updated_at = $8, last_login_at = $9
		WHERE id = $1::uuid`,
		uid.String(), user.Username, user.Email, user.EmailVerified, user.Name, user.Avatar, roles, user.UpdatedAt, user.LastLoginAt,
	)
	if err != nil {
		if cerr := classifyPgErr(err); cerr != err {
			return cerr
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *PostgresUserStore) scanUser(row pgx.Row) (*User, error) {
	u, err := scanPgUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

func scanPgUser(row pgx.Row) (*User, error) {
	var u User
	var lastLoginAt *time.Time
	if err := row.Scan(&u.ID, &u.Provider, &u.OpenIDSubject, &u.Username, &u.Email,
		&u.EmailVerified, &u.Name, &u.Avatar, &u.Roles, &u.CreatedAt, &u.UpdatedAt, &lastLoginAt); err != nil {
		return nil, err
	}
	if len(u.Roles) == 0 {
		u.Roles = nil
	}
	u.LastLoginAt = lastLoginAt
	return &u, nil
}
