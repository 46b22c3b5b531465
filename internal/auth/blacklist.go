package auth

import (
	"context"
	"time"
)

// BlacklistStore records revoked refresh token ids until their natural expiry.
// Implementations receive the raw jti and are responsible for hashing it.
//
// Add reports whether this call stored the id. When two callers race to
// revoke the same token exactly one of them gets true.
type BlacklistStore interface {
	Add(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error)
	Contains(ctx context.Context, jti string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
	Ping(ctx context.Context) error
}
