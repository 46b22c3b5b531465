package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"motorsport-api/internal/testsupport/redisstub"
)

func TestRedisStoreAllowPlain(t *testing.T) {
	runRedisStoreIntegration(t, false)
}

func TestRedisStoreAllowTLS(t *testing.T) {
	runRedisStoreIntegration(t, true)
}

func runRedisStoreIntegration(t *testing.T, useTLS bool) {
	t.Helper()
	srv, err := redisstub.Start(redisstub.Options{Password: "secret", EnableTLS: useTLS})
	if err != nil {
		t.Fatalf("start redis stub: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Close()
	})
	cfg := RedisStoreConfig{
		Addr:     srv.Addr(),
		Password: "secret",
		Timeout:  time.Second,
	}
	if useTLS {
		dir := t.TempDir()
		caPath := filepath.Join(dir, "ca.pem")
		if err := os.WriteFile(caPath, srv.CertPEM(), 0o600); err != nil {
			t.Fatalf("write ca: %v", err)
		}
		cfg.TLS = RedisTLSConfig{CAFile: caPath}
	}
	store, err := newRedisStore(cfg)
	if err != nil {
		t.Fatalf("new redis store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close(context.Background())
	})

	ctx := context.Background()
	allowed, retry, err := store.Allow(ctx, "throttle:test", 2, time.Minute)
	if err != nil || !allowed || retry != 0 {
		t.Fatalf("first allow unexpected: allowed=%v retry=%v err=%v", allowed, retry, err)
	}
	allowed, _, err = store.Allow(ctx, "throttle:test", 2, time.Minute)
	if err != nil || !allowed {
		t.Fatalf("second allow unexpected: allowed=%v err=%v", allowed, err)
	}
	allowed, retry, err = store.Allow(ctx, "throttle:test", 2, time.Minute)
	if err != nil {
		t.Fatalf("third allow err: %v", err)
	}
	if allowed {
		t.Fatalf("expected throttle on third attempt")
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("expected retry within the window, got %v", retry)
	}
	if got := srv.CommandCount("EXPIRE"); got != 1 {
		t.Fatalf("expected a single EXPIRE, got %d", got)
	}
}

func TestRedisStoreRequiresAddr(t *testing.T) {
	if _, err := newRedisStore(RedisStoreConfig{}); err == nil {
		t.Fatal("expected error for empty addr")
	}
}

func TestRateLimiterUsesRedisForAuthScopes(t *testing.T) {
	srv, err := redisstub.Start(redisstub.Options{})
	if err != nil {
		t.Fatalf("start redis stub: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	rl, err := newRateLimiter(RateLimitConfig{
		Rates: map[Scope]Rate{
			ScopeAuthLogin: {Limit: 1, Window: time.Minute},
			ScopeAnon:      {Limit: 5, Window: time.Minute},
		},
		Redis: &RedisStoreConfig{Addr: srv.Addr()},
	})
	if err != nil {
		t.Fatalf("newRateLimiter: %v", err)
	}
	t.Cleanup(func() { _ = rl.Close(context.Background()) })

	ctx := context.Background()
	if allowed, _, err := rl.Allow(ctx, ScopeAuthLogin, "203.0.113.9"); err != nil || !allowed {
		t.Fatalf("first login attempt: allowed=%v err=%v", allowed, err)
	}
	if allowed, _, err := rl.Allow(ctx, ScopeAuthLogin, "203.0.113.9"); err != nil || allowed {
		t.Fatalf("second login attempt: allowed=%v err=%v", allowed, err)
	}
	if allowed, _, err := rl.Allow(ctx, ScopeAnon, "203.0.113.9"); err != nil || !allowed {
		t.Fatalf("anon request: allowed=%v err=%v", allowed, err)
	}

	keys := srv.Keys()
	if len(keys) != 1 || keys[0] != "motorsport:throttle:auth_login:203.0.113.9" {
		t.Fatalf("expected only the login counter in redis, got %v", keys)
	}
}
