package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBlacklistConfig describes the Redis deployment backing the blacklist.
type RedisBlacklistConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// Now overrides the clock used to derive key TTLs.
	Now func() time.Time
}

// RedisBlacklist stores revoked token ids as expiring keys so Redis evicts them
// once the token would have expired anyway.
type RedisBlacklist struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisBlacklist connects to Redis using the provided configuration.
func NewRedisBlacklist(cfg RedisBlacklistConfig) (*RedisBlacklist, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:      []string{addr},
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 2,
	})
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "motorsport:blacklist:"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RedisBlacklist{client: client, prefix: prefix, now: now}, nil
}

func (b *RedisBlacklist) key(jti string) (string, error) {
	hashed, err := hashTokenID(jti)
	if err != nil {
		return "", err
	}
	return b.prefix + hashed, nil
}

// Add stores the hashed token id with SET NX and a TTL matching the token's
// remaining lifetime. Already expired tokens are not stored; they fail
// validation before the blacklist is consulted.
func (b *RedisBlacklist) Add(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	key, err := b.key(jti)
	if err != nil {
		return false, err
	}
	ttl := expiresAt.Sub(b.now()).Truncate(time.Second)
	if ttl <= 0 {
		return true, nil
	}
	stored, err := b.client.SetNX(ctx, key, userID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist token: %w", err)
	}
	return stored, nil
}

func (b *RedisBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	key, err := b.key(jti)
	if err != nil {
		return false, err
	}
	count, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return count > 0, nil
}

// PurgeExpired is a no-op; Redis expires the keys itself.
func (b *RedisBlacklist) PurgeExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (b *RedisBlacklist) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close releases the Redis client connections.
func (b *RedisBlacklist) Close() error {
	return b.client.Close()
}
