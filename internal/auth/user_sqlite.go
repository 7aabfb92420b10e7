//go:build sqlite

package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sqlitestore "claimsync/internal/storage/sqlite"
)

const sqliteUserColumns = `id, provider, openid_subject, username, email, email_verified, name, avatar, roles, created_at, updated_at, last_login_at`

// SQLiteUserStore is a SQLite-backed implementation of UserStore.
type SQLiteUserStore struct {
	db    *sql.DB
	owned *sqlitestore.Store
}

// NewSQLiteUserStore opens dsn (running migrations) and returns a user store that owns it.
func NewSQLiteUserStore(dsn string) (*SQLiteUserStore, error) {
	st, err := sqlitestore.New(dsn)
	if err != nil {
		return nil, err
	}
	return &SQLiteUserStore{db: st.DB(), owned: st}, nil
}

// NewSQLiteUserStoreFromDB creates a store using an existing, migrated DB connection.
func NewSQLiteUserStoreFromDB(db *sql.DB) *SQLiteUserStore {
	return &SQLiteUserStore{db: db}
}

func (s *SQLiteUserStore) Close() error {
	if s.owned != nil {
		return s.owned.Close()
	}
	return nil
}

func (s *SQLiteUserStore) Create(ctx context.Context, user *User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, provider, openid_subject, username, email, email_verified, name, avatar, roles, created_at, updated_at, last_login_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.ID, user.Provider, user.OpenIDSubject, user.Username, user.Email,
		boolToInt(user.EmailVerified), user.Name, user.Avatar, encodeRoles(user.Roles),
		user.CreatedAt.UTC().Format(time.RFC3339Nano), user.UpdatedAt.UTC().Format(time.RFC3339Nano),
		nullTime(user.LastLoginAt),
	)
	if err != nil {
		if cerr := classifySQLiteErr(err); cerr != err {
			return cerr
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteUserStore) GetByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE id = ?`, id))
}

func (s *SQLiteUserStore) GetByExternalID(ctx context.Context, provider, subject string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteUserColumns+` FROM users WHERE provider = ? AND openid_subject = ?`, provider, subject))
}

func (s *SQLiteUserStore) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+sqliteUserColumns+` FROM users WHERE username = ?`, username))
}

func (s *SQLiteUserStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&n); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteUserStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteUserColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteUserStore) Update(ctx context.Context, user *User) error {
	if user == nil || user.ID == "" {
		return ErrUserNotFound
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET username = ?, email = ?, email_verified = ?, name = ?, avatar = ?, roles = ?, updated_at = ?, last_login_at = ?
		WHERE id = ?
	`,
		user.Username, user.Email, boolToInt(user.EmailVerified), user.Name, user.Avatar,
		encodeRoles(user.Roles), user.UpdatedAt.UTC().Format(time.RFC3339Nano), nullTime(user.LastLoginAt), user.ID,
	)
	if err != nil {
		if cerr := classifySQLiteErr(err); cerr != err {
			return cerr
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLiteUserStore) scanUser(row *sql.Row) (*User, error) {
	u, err := scanSQLiteUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteUser(row rowScanner) (*User, error) {
	var (
		u                    User
		emailVerified        int
		roles                string
		createdAt, updatedAt string
		lastLoginAt          sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Provider, &u.OpenIDSubject, &u.Username, &u.Email,
		&emailVerified, &u.Name, &u.Avatar, &roles, &createdAt, &updatedAt, &lastLoginAt); err != nil {
		return nil, err
	}
	u.EmailVerified = emailVerified != 0
	u.Roles = decodeRoles(roles)
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	u.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	if lastLoginAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastLoginAt.String)
		u.LastLoginAt = &t
	}
	return &u, nil
}
