package store

import (
	"context"
	"testing"

	"github.com/dukerupert/mealplan/internal/database"
)

func setupPushTestDB(t *testing.T) (*PushStore, *ProfileStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPushStore(db), NewProfileStore(db)
}

func TestPushUpsertAndList(t *testing.T) {
	s, ps := setupPushTestDB(t)
	ctx := context.Background()
	ps.Create(ctx, "user_1", "Alice", "alice@example.com")

	sub, err := s.Upsert(ctx, "user_1", "https://push.example.com/a", "p256", "auth", "Phone")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if sub.DeviceName != "Phone" {
		t.Errorf("device_name = %q, want %q", sub.DeviceName, "Phone")
	}

	subs, err := s.ListByUser(ctx, "user_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("len = %d, want 1", len(subs))
	}
}

func TestPushUpsertRefreshesKeys(t *testing.T) {
	s, ps := setupPushTestDB(t)
	ctx := context.Background()
	ps.Create(ctx, "user_1", "Alice", "alice@example.com")

	first, _ := s.Upsert(ctx, "user_1", "https://push.example.com/a", "old", "old", "Phone")
	second, err := s.Upsert(ctx, "user_1", "https://push.example.com/a", "new", "new", "Phone")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("id = %d, want %d", second.ID, first.ID)
	}
	if second.P256dhKey != "new" {
		t.Errorf("p256dh = %q, want %q", second.P256dhKey, "new")
	}
}

func TestPushDeleteByEndpoint(t *testing.T) {
	s, ps := setupPushTestDB(t)
	ctx := context.Background()
	ps.Create(ctx, "user_1", "Alice", "alice@example.com")
	s.Upsert(ctx, "user_1", "https://push.example.com/a", "p", "a", "")

	if err := s.DeleteByEndpoint(ctx, "https://push.example.com/a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	subs, _ := s.ListByUser(ctx, "user_1")
	if len(subs) != 0 {
		t.Errorf("len = %d, want 0", len(subs))
	}
}
