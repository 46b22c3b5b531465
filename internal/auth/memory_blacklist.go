package auth

import (
	"context"
	"sync"
	"time"
)

type blacklistEntry struct {
	userID    int64
	expiresAt time.Time
}

// MemoryBlacklist keeps revoked token ids in-memory. It is safe for concurrent
// use and intended for development or single-instance deployments.
type MemoryBlacklist struct {
	mu      sync.RWMutex
	entries map[string]blacklistEntry
}

// NewMemoryBlacklist constructs an empty in-memory blacklist.
func NewMemoryBlacklist() *MemoryBlacklist {
	return &MemoryBlacklist{entries: make(map[string]blacklistEntry)}
}

func (b *MemoryBlacklist) Add(_ context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	key, err := hashTokenID(jti)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.entries[key]; exists {
		return false, nil
	}
	b.entries[key] = blacklistEntry{userID: userID, expiresAt: expiresAt.UTC()}
	return true, nil
}

// Contains reports whether the token id is blacklisted. Expired tokens fail
// signature validation before the blacklist is consulted.
func (b *MemoryBlacklist) Contains(_ context.Context, jti string) (bool, error) {
	key, err := hashTokenID(jti)
	if err != nil {
		return false, err
	}
	b.mu.RLock()
	_, ok := b.entries[key]
	b.mu.RUnlock()
	return ok, nil
}

// PurgeExpired removes entries whose token has expired.
func (b *MemoryBlacklist) PurgeExpired(_ context.Context, now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for key, entry := range b.entries {
		if !now.Before(entry.expiresAt) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries, expired or not.
func (b *MemoryBlacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Ping always reports success for the in-memory blacklist.
func (b *MemoryBlacklist) Ping(context.Context) error {
	return nil
}
