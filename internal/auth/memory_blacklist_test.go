package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryBlacklistLifecycle(t *testing.T) {
	ctx := context.Background()
	blacklist := NewMemoryBlacklist()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if _, err := blacklist.Add(ctx, "expired", 1, now.Add(-time.Minute)); err != nil {
		t.Fatalf("Add expired: %v", err)
	}
	stored, err := blacklist.Add(ctx, "live", 1, now.Add(time.Hour))
	if err != nil || !stored {
		t.Fatalf("Add live: %v, %v", stored, err)
	}
	if stored, err := blacklist.Add(ctx, "live", 1, now.Add(2*time.Hour)); err != nil || stored {
		t.Fatalf("expected second Add of the same id to report false, got %v, %v", stored, err)
	}

	ok, err := blacklist.Contains(ctx, "live")
	if err != nil || !ok {
		t.Fatalf("expected live id to be blacklisted, got %v, %v", ok, err)
	}
	if ok, _ := blacklist.Contains(ctx, "unknown"); ok {
		t.Fatal("expected unknown id not to be blacklisted")
	}

	removed, err := blacklist.PurgeExpired(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged entry, got %d", removed)
	}
	if blacklist.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", blacklist.Len())
	}
	if ok, _ := blacklist.Contains(ctx, "expired"); ok {
		t.Fatal("expected purged id to be gone")
	}
}

func TestMemoryBlacklistRejectsEmptyID(t *testing.T) {
	if _, err := NewMemoryBlacklist().Add(context.Background(), "", 1, time.Now()); err == nil {
		t.Fatal("expected error for empty token id")
	}
}

func TestMemoryBlacklistConcurrentAddSingleWinner(t *testing.T) {
	blacklist := NewMemoryBlacklist()
	expires := time.Now().Add(time.Hour)

	const callers = 16
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stored, err := blacklist.Add(context.Background(), "contested", 1, expires)
			if err != nil {
				t.Errorf("Add: %v", err)
				return
			}
			if stored {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("expected exactly one winning Add, got %d", got)
	}
}
