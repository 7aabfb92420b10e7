package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func loginEvent(userID, action string) *AuditEvent {
	return &AuditEvent{
		Actor:        "openid:" + userID,
		ActorType:    ActorTypeOpenID,
		Action:       action,
		ResourceType: ResourceUser,
		ResourceID:   userID,
		ResourceName: "flast",
		StatusCode:   200,
	}
}

func TestMemoryAuditLogger_Log(t *testing.T) {
	logger := NewMemoryAuditLogger()
	ctx := context.Background()

	if err := logger.Log(ctx, loginEvent("u1", ActionProvision)); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	events, total, err := logger.List(ctx, ListOptions{Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(events) != 1 {
		t.Fatalf("expected 1 event, got total=%d len=%d", total, len(events))
	}
	if events[0].ID == "" {
		t.Error("expected ID to be assigned")
	}
	if events[0].Timestamp.IsZero() {
		t.Error("expected Timestamp to be assigned")
	}
	if events[0].Actor != "openid:u1" {
		t.Errorf("Actor = %q", events[0].Actor)
	}
}

func TestMemoryAuditLogger_Log_NilEvent(t *testing.T) {
	logger := NewMemoryAuditLogger()
	if err := logger.Log(context.Background(), nil); err != nil {
		t.Fatalf("Log(nil) should not error, got %v", err)
	}
	if _, total, _ := logger.List(context.Background(), ListOptions{}); total != 0 {
		t.Errorf("expected no events, got %d", total)
	}
}

func TestMemoryAuditLogger_NewestFirstAndCap(t *testing.T) {
	logger := NewMemoryAuditLogger(WithMaxEvents(3))
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		e := loginEvent(fmt.Sprintf("u%d", i), ActionLogin)
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := logger.Log(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	events, total, _ := logger.List(ctx, ListOptions{})
	if total != 3 {
		t.Fatalf("expected cap of 3, got %d", total)
	}
	if events[0].ResourceID != "u4" || events[2].ResourceID != "u2" {
		t.Errorf("unexpected order: %s..%s", events[0].ResourceID, events[2].ResourceID)
	}
}

func TestMemoryAuditLogger_List_Filtering(t *testing.T) {
	logger := NewMemoryAuditLogger()
	ctx := context.Background()

	_ = logger.Log(ctx, loginEvent("u1", ActionProvision))
	_ = logger.Log(ctx, loginEvent("u1", ActionLogin))
	_ = logger.Log(ctx, loginEvent("u2", ActionLoginDenied))

	tests := []struct {
		name string
		opts ListOptions
		want int
	}{
		{"all", ListOptions{}, 3},
		{"by action", ListOptions{Action: ActionLogin}, 1},
		{"by actor", ListOptions{Actor: "openid:u1"}, 2},
		{"by resource type", ListOptions{ResourceType: ResourceUser}, 3},
		{"no match", ListOptions{Action: "delete"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := logger.List(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if total != tt.want {
				t.Errorf("total = %d, want %d", total, tt.want)
			}
		})
	}
}

func TestMemoryAuditLogger_List_TimeAndPagination(t *testing.T) {
	logger := NewMemoryAuditLogger()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		e := loginEvent(fmt.Sprintf("u%d", i), ActionLogin)
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		_ = logger.Log(ctx, e)
	}

	since := base.Add(5 * time.Hour)
	if _, total, _ := logger.List(ctx, ListOptions{Since: &since}); total != 5 {
		t.Errorf("since filter total = %d, want 5", total)
	}

	page, total, _ := logger.List(ctx, ListOptions{Limit: 4, Offset: 8})
	if total != 10 || len(page) != 2 {
		t.Errorf("last page: total=%d len=%d", total, len(page))
	}
	if page, _, _ := logger.List(ctx, ListOptions{Offset: 50}); len(page) != 0 {
		t.Errorf("offset beyond end returned %d events", len(page))
	}
}

func TestMemoryAuditLogger_GetByResource(t *testing.T) {
	logger := NewMemoryAuditLogger()
	ctx := context.Background()

	_ = logger.Log(ctx, loginEvent("u1", ActionProvision))
	_ = logger.Log(ctx, loginEvent("u1", ActionLogin))
	_ = logger.Log(ctx, loginEvent("u2", ActionLogin))

	events, err := logger.GetByResource(ctx, ResourceUser, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for u1, got %d", len(events))
	}
	if events[0].Action != ActionLogin {
		t.Errorf("newest event should be login, got %s", events[0].Action)
	}
}

func TestMemoryAuditLogger_Concurrency(t *testing.T) {
	logger := NewMemoryAuditLogger()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = logger.Log(ctx, loginEvent(fmt.Sprintf("u%d", i), ActionLogin))
		}(i)
		go func() {
			defer wg.Done()
			_, _, _ = logger.List(ctx, ListOptions{Limit: 10})
		}()
	}
	wg.Wait()

	if _, total, _ := logger.List(ctx, ListOptions{}); total != 50 {
		t.Errorf("expected 50 events, got %d", total)
	}
}

func TestMemoryAuditLogger_ImmutableResults(t *testing.T) {
	logger := NewMemoryAuditLogger()
	ctx := context.Background()

	e := loginEvent("u1", ActionLogin)
	_ = logger.Log(ctx, e)
	e.Actor = "tampered"

	events, _, _ := logger.List(ctx, ListOptions{})
	if events[0].Actor != "openid:u1" {
		t.Errorf("stored event changed through caller pointer: %q", events[0].Actor)
	}
	events[0].Actor = "tampered"

	again, _, _ := logger.List(ctx, ListOptions{})
	if again[0].Actor != "openid:u1" {
		t.Errorf("stored event changed through returned pointer: %q", again[0].Actor)
	}
}

func TestNormalizeLimit(t *testing.T) {
	for in, want := range map[int]int{0: 50, -1: 50, 10: 10, 5000: 1000} {
		if got := normalizeLimit(in); got != want {
			t.Errorf("normalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
