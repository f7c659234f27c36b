package duckdb

import (
	"context"
	"testing"
	"time"
)

func TestRetentionCleaner_Disabled(t *testing.T) {
	if NewRetentionCleaner(newTestStore(t), RetentionConfig{}) != nil {
		t.Fatal("expected nil cleaner when retention is disabled")
	}
}

func TestRetentionCleaner_StopIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	cleaner := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 1})
	if cleaner == nil {
		t.Fatal("expected non-nil retention cleaner")
	}

	cleaner.Stop()
	cleaner.Stop()
}

func TestRetentionCleaner_Cleanup(t *testing.T) {
	store := newTestStore(t)
	fs := NewFailureStore(store)
	fs.now = func() time.Time { return time.Now().Add(-72 * time.Hour) }
	if err := fs.StoreFailure(context.Background(), nil, "kind", "stale", nil); err != nil {
		t.Fatalf("StoreFailure: %v", err)
	}

	// The startup pass removes records older than the retention period.
	cleaner := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 2})
	defer cleaner.Stop()

	left, err := store.ListFailures("", 10)
	if err != nil {
		t.Fatalf("ListFailures: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("remaining failures = %d, want 0", len(left))
	}
}
