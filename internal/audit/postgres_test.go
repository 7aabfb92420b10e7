//go:build postgres

package audit

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	pgstore "claimsync/internal/storage/postgres"
	"claimsync/internal/testutil"
)

var testConnStr string

func TestMain(m *testing.M) {
	connStr, cleanup, err := testutil.StartPostgres(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres unavailable: %v\n", err)
		os.Exit(1)
	}
	testConnStr = connStr
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func TestPostgresAuditLogger_LogAndList(t *testing.T) {
	st, err := pgstore.New(testConnStr)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()
	if _, err := st.Pool().Exec(ctx, `TRUNCATE audit_events`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	logger := NewPostgresAuditLoggerFromPool(st.Pool())

	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, action := range []string{ActionProvision, ActionLogin, ActionLoginDenied} {
		e := loginEvent("u1", action)
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := logger.Log(ctx, e); err != nil {
			t.Fatalf("Log(%s): %v", action, err)
		}
		if e.ID == "" {
			t.Fatal("Log must assign an ID")
		}
	}

	events, total, err := logger.List(ctx, ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(events) != 2 {
		t.Fatalf("total=%d len=%d", total, len(events))
	}
	if events[0].Action != ActionLoginDenied {
		t.Errorf("newest first: got %s", events[0].Action)
	}

	_, total, _ = logger.List(ctx, ListOptions{Action: ActionProvision})
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
