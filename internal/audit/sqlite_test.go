//go:build sqlite

package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlitestore "claimsync/internal/storage/sqlite"
)

func newSQLiteAuditLogger(t *testing.T) *SQLiteAuditLogger {
	t.Helper()
	st, err := sqlitestore.New("file:" + filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return NewSQLiteAuditLoggerFromDB(st.DB())
}

func TestSQLiteAuditLogger_LogAndList(t *testing.T) {
	logger := newSQLiteAuditLogger(t)
	ctx := context.Background()

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, action := range []string{ActionProvision, ActionLogin, ActionLoginDenied} {
		e := loginEvent("u1", action)
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		e.Detail = "detail-" + action
		if err := logger.Log(ctx, e); err != nil {
			t.Fatalf("Log(%s): %v", action, err)
		}
	}

	events, total, err := logger.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(events) != 3 {
		t.Fatalf("total=%d len=%d", total, len(events))
	}
	if events[0].Action != ActionLoginDenied {
		t.Errorf("newest first: got %s", events[0].Action)
	}
	if events[0].Detail != "detail-login_denied" {
		t.Errorf("Detail = %q", events[0].Detail)
	}
	if !events[2].Timestamp.Equal(base) {
		t.Errorf("Timestamp = %v, want %v", events[2].Timestamp, base)
	}

	_, total, _ = logger.List(ctx, ListOptions{Action: ActionLogin})
	if total != 1 {
		t.Errorf("action filter total = %d", total)
	}

	byRes, err := logger.GetByResource(ctx, ResourceUser, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byRes) != 3 {
		t.Errorf("GetByResource len = %d", len(byRes))
	}
}
