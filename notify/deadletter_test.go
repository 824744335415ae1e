package notify

import (
	"testing"
	"time"
)

func TestDeadLetterStore_CRUD(t *testing.T) {
	dlq := NewDeadLetterStore()

	d1 := &Delivery{ID: "nd-1", Channel: "chat", Status: StatusDeadLetter, CreatedAt: time.Now().Add(-time.Hour)}
	d2 := &Delivery{ID: "nd-2", Channel: "email", Status: StatusDeadLetter, CreatedAt: time.Now()}

	dlq.Add(d1)
	dlq.Add(d2)

	if dlq.Count() != 2 {
		t.Fatalf("expected 2, got %d", dlq.Count())
	}

	got, ok := dlq.Get("nd-1")
	if !ok || got.Channel != "chat" {
		t.Error("Get nd-1 failed")
	}
	if _, ok := dlq.Get("nd-3"); ok {
		t.Error("expected not found for nd-3")
	}

	list := dlq.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
	// Newest first
	if list[0].ID != "nd-2" {
		t.Errorf("expected nd-2 first, got %s", list[0].ID)
	}

	removed, ok := dlq.Remove("nd-1")
	if !ok || removed.ID != "nd-1" {
		t.Error("Remove nd-1 failed")
	}
	if dlq.Count() != 1 {
		t.Errorf("expected 1 after remove, got %d", dlq.Count())
	}
}

func TestDeadLetterStore_Purge(t *testing.T) {
	dlq := NewDeadLetterStore()
	dlq.Add(&Delivery{ID: "nd-a", CreatedAt: time.Now()})
	dlq.Add(&Delivery{ID: "nd-b", CreatedAt: time.Now()})

	if n := dlq.Purge(); n != 2 {
		t.Errorf("expected 2 purged, got %d", n)
	}
	if dlq.Count() != 0 {
		t.Errorf("expected 0 after purge, got %d", dlq.Count())
	}
}

func TestDeadLetterStore_Stats(t *testing.T) {
	dlq := NewDeadLetterStore()
	now := time.Now()
	dlq.Add(&Delivery{ID: "nd-a", Channel: "chat", Attempts: 3, CreatedAt: now.Add(-2 * time.Hour)})
	dlq.Add(&Delivery{ID: "nd-b", Channel: "chat", Attempts: 6, CreatedAt: now.Add(-time.Hour)})
	dlq.Add(&Delivery{ID: "nd-c", Channel: "email", Attempts: 6, CreatedAt: now})

	stats := dlq.Stats()
	if stats.Total != 3 {
		t.Errorf("expected 3 total, got %d", stats.Total)
	}
	if stats.TotalAttempts != 15 {
		t.Errorf("expected 15 total attempts, got %d", stats.TotalAttempts)
	}
	if stats.ByChannel["chat"] != 2 || stats.ByChannel["email"] != 1 {
		t.Errorf("unexpected channel breakdown: %v", stats.ByChannel)
	}
	if stats.OldestEntry == nil || !stats.OldestEntry.Equal(now.Add(-2*time.Hour)) {
		t.Errorf("unexpected oldest entry: %v", stats.OldestEntry)
	}
	if stats.NewestEntry == nil || !stats.NewestEntry.Equal(now) {
		t.Errorf("unexpected newest entry: %v", stats.NewestEntry)
	}
}

func TestDeadLetterStore_EvictsOldestAtCapacity(t *testing.T) {
	dlq := NewDeadLetterStoreWithCapacity(2)
	now := time.Now()

	dlq.Add(&Delivery{ID: "nd-old", CreatedAt: now.Add(-time.Hour)})
	dlq.Add(&Delivery{ID: "nd-mid", CreatedAt: now.Add(-time.Minute)})
	dlq.Add(&Delivery{ID: "nd-new", CreatedAt: now})

	if dlq.Count() != 2 {
		t.Fatalf("expected capacity 2 held, got %d", dlq.Count())
	}
	if _, ok := dlq.Get("nd-old"); ok {
		t.Error("expected oldest entry evicted")
	}
	if _, ok := dlq.Get("nd-mid"); !ok {
		t.Error("expected nd-mid kept")
	}
	if _, ok := dlq.Get("nd-new"); !ok {
		t.Error("expected nd-new kept")
	}
}

func TestDeadLetterStore_ReAddSameIDNoEviction(t *testing.T) {
	dlq := NewDeadLetterStoreWithCapacity(2)
	now := time.Now()

	dlq.Add(&Delivery{ID: "nd-a", CreatedAt: now.Add(-time.Hour)})
	dlq.Add(&Delivery{ID: "nd-b", CreatedAt: now})
	// Updating an existing entry must not evict anything.
	dlq.Add(&Delivery{ID: "nd-a", Attempts: 4, CreatedAt: now.Add(-time.Hour)})

	if dlq.Count() != 2 {
		t.Fatalf("expected 2 entries, got %d", dlq.Count())
	}
	got, _ := dlq.Get("nd-a")
	if got == nil || got.Attempts != 4 {
		t.Error("expected nd-a updated in place")
	}
}
