//go:build sqlite

package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteUserStore(t *testing.T) {
	store, err := NewSQLiteUserStore("file:" + filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("NewSQLiteUserStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	exerciseUserStore(t, store)
}

func TestSQLiteUserStore_EmptyRolesRoundTrip(t *testing.T) {
	store, err := NewSQLiteUserStore("file:" + filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("NewSQLiteUserStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	u := newTestUser("u1", "s1", "alice", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	u.Roles = nil
	if err := store.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := store.GetByID(ctx, "u1")
	if err != nil || got == nil {
		t.Fatalf("GetByID = %v, %v", got, err)
	}
	if got.Roles != nil {
		t.Errorf("Roles = %v, want nil", got.Roles)
	}
	if got.LastLoginAt != nil {
		t.Errorf("LastLoginAt = %v, want nil", got.LastLoginAt)
	}
}

func TestClassifySQLiteErr(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"constraint failed: UNIQUE constraint failed: users.username (2067)", ErrUsernameTaken},
		{"UNIQUE constraint failed: users.provider, users.openid_subject", ErrIdentityExists},
		{"UNIQUE constraint failed: users.id", ErrIdentityExists},
	}
	for _, tt := range tests {
		if got := classifySQLiteErr(errString(tt.msg)); got != tt.want {
			t.Errorf("classifySQLiteErr(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
	other := errString("database is locked")
	if got := classifySQLiteErr(other); got != other {
		t.Errorf("unrelated errors must pass through, got %v", got)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
