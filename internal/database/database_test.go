package database

import (
	"path/filepath"
	"testing"
)

func TestOpenMemoryAppliesMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"profiles", "push_subscriptions"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestOpenFileTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mealplan.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO profiles (user_id, email) VALUES ('user_1', 'a@example.com')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	db.Close()

	// Already-applied migrations are a no-op.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("profiles = %d, want 1", n)
	}
}

func TestProfilesRejectActiveWithoutSubscription(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`INSERT INTO profiles (user_id, email, subscription_active) VALUES ('user_1', 'a@example.com', 1)`)
	if err == nil {
		t.Error("expected check constraint violation")
	}
}
