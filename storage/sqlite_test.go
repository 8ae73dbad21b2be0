package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"realtors/models"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Sessions(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	got, err := store.GetSession(ctx, "missing")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil session, got %+v", got)
	}

	sess := &models.Session{ID: "s1", Email: "admin@example.com", IsAdmin: true, CreatedAt: time.Now().Truncate(time.Second)}
	if err := store.SaveSession(ctx, sess); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err = store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.Email != "admin@example.com" || !got.IsAdmin {
		t.Fatalf("unexpected session %+v", got)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Fatalf("expected createdAt %v, got %v", sess.CreatedAt, got.CreatedAt)
	}

	if err := store.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got, _ := store.GetSession(ctx, "s1"); got != nil {
		t.Fatalf("expected session to be gone, got %+v", got)
	}
}

func TestSQLiteStore_AuditLog(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	entries := []models.AuditEntry{
		{Action: models.AuditPropertyCreated, PropertyID: "a", Actor: "admin@example.com", Timestamp: now.Add(-100 * 24 * time.Hour)},
		{Action: models.AuditPropertyUpdated, PropertyID: "a", Actor: "admin@example.com", Timestamp: now.Add(-time.Hour),
			Details: map[string]string{"fields": "price,title"}},
		{Action: models.AuditPropertyDeleted, PropertyID: "a", Actor: "admin@example.com", Timestamp: now},
	}
	for _, e := range entries {
		if err := store.WriteAudit(ctx, e); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	recent, err := store.RecentAudit(ctx, 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Action != models.AuditPropertyDeleted {
		t.Fatalf("expected newest entry first, got %s", recent[0].Action)
	}
	if recent[1].Details["fields"] != "price,title" {
		t.Fatalf("expected details to round trip, got %v", recent[1].Details)
	}

	pruned, err := store.PruneAudit(ctx, now.Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("expected 1 pruned entry, got %d", pruned)
	}
}

func TestGenerateQueryCacheKey_OrderIndependent(t *testing.T) {
	a := GenerateQueryCacheKey("search:v1", map[string]string{"zone": "North", "beds": "2"})
	b := GenerateQueryCacheKey("search:v1", map[string]string{"beds": "2", "zone": "North"})
	if a != b {
		t.Fatalf("expected equal keys, got %s and %s", a, b)
	}
	c := GenerateQueryCacheKey("search:v1", map[string]string{"beds": "3", "zone": "North"})
	if a == c {
		t.Fatalf("expected different keys for different params")
	}
}
