package server

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"motorsport-api/internal/api"

	"golang.org/x/time/rate"
)

// Scope names a throttle budget.
type Scope string

const (
	ScopeAnon         Scope = "anon"
	ScopeUser         Scope = "user"
	ScopeAuthLogin    Scope = "auth_login"
	ScopeAuthRefresh  Scope = "auth_refresh"
	ScopeAuthRegister Scope = "auth_register"
	ScopeAuthLogout   Scope = "auth_logout"
)

const (
	authPrefix         = api.V1Prefix + "auth/"
	throttleKeyPrefix  = "motorsport:throttle:"
	limiterSweepPeriod = time.Minute
)

// authScopes maps the throttled auth endpoints, relative to authPrefix, to
// their scope. These endpoints skip the anon and user budgets.
var authScopes = map[string]Scope{
	"token":         ScopeAuthLogin,
	"token/refresh": ScopeAuthRefresh,
	"register":      ScopeAuthRegister,
	"logout":        ScopeAuthLogout,
}

// Rate is a request budget per window.
type Rate struct {
	Limit  int
	Window time.Duration
}

func (r Rate) enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

var rateWindows = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseRate reads rates such as "120/min" or "10/hour". Only the first letter
// of the period is significant. A blank value or "none" disables the scope;
// the request count must be at least 1.
func ParseRate(value string) (Rate, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "none") {
		return Rate{}, nil
	}
	count, period, ok := strings.Cut(value, "/")
	if !ok {
		return Rate{}, fmt.Errorf("rate %q must look like N/period", value)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(count))
	if err != nil {
		return Rate{}, fmt.Errorf("rate %q has an invalid request count", value)
	}
	if limit < 1 {
		return Rate{}, fmt.Errorf("rate %q must allow at least one request; use \"none\" to disable", value)
	}
	period = strings.ToLower(strings.TrimSpace(period))
	if period == "" {
		return Rate{}, fmt.Errorf("rate %q is missing a period", value)
	}
	window, ok := rateWindows[period[0]]
	if !ok {
		return Rate{}, fmt.Errorf("rate %q has an unknown period", value)
	}
	return Rate{Limit: limit, Window: window}, nil
}

// DefaultRates returns the stock throttle budgets.
func DefaultRates() map[Scope]Rate {
	return map[Scope]Rate{
		ScopeAnon:         {Limit: 120, Window: time.Minute},
		ScopeUser:         {Limit: 300, Window: time.Minute},
		ScopeAuthLogin:    {Limit: 20, Window: time.Minute},
		ScopeAuthRefresh:  {Limit: 30, Window: time.Minute},
		ScopeAuthRegister: {Limit: 10, Window: time.Minute},
		ScopeAuthLogout:   {Limit: 30, Window: time.Minute},
	}
}

// RateLimitConfig selects the throttle budgets. A nil Rates map uses
// DefaultRates; scopes missing from a non-nil map are unlimited. When Redis is
// set the auth scopes are counted in Redis so every replica shares them.
type RateLimitConfig struct {
	Rates    map[Scope]Rate
	Disabled bool
	Redis    *RedisStoreConfig
}

type rateStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
	Close(ctx context.Context) error
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	rates     map[Scope]Rate
	maxWindow time.Duration
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
	store     rateStore
	now       func() time.Time
}

func newRateLimiter(cfg RateLimitConfig) (*rateLimiter, error) {
	if cfg.Disabled {
		return nil, nil
	}
	rates := cfg.Rates
	if rates == nil {
		rates = DefaultRates()
	}
	rl := &rateLimiter{
		rates:   make(map[Scope]Rate, len(rates)),
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
	for scope, r := range rates {
		if !r.enabled() {
			continue
		}
		rl.rates[scope] = r
		if r.Window > rl.maxWindow {
			rl.maxWindow = r.Window
		}
	}
	if cfg.Redis != nil {
		store, err := newRedisStore(*cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("rate limit store: %w", err)
		}
		rl.store = store
	}
	return rl, nil
}

// Allow consumes one request from the scope budget of ident. A refusal
// reports how long the client should wait.
func (rl *rateLimiter) Allow(ctx context.Context, scope Scope, ident string) (bool, time.Duration, error) {
	if rl == nil {
		return true, 0, nil
	}
	budget, ok := rl.rates[scope]
	if !ok {
		return true, 0, nil
	}
	if ident == "" {
		ident = "unknown"
	}
	key := string(scope) + ":" + ident
	if rl.store != nil && isAuthScope(scope) {
		return rl.store.Allow(ctx, throttleKeyPrefix+key, budget.Limit, budget.Window)
	}

	now := rl.now()
	rl.mu.Lock()
	client, exists := rl.clients[key]
	if !exists {
		every := rate.Every(budget.Window / time.Duration(budget.Limit))
		client = &clientLimiter{limiter: rate.NewLimiter(every, budget.Limit)}
		rl.clients[key] = client
	}
	client.lastSeen = now
	rl.sweepLocked(now)
	rl.mu.Unlock()

	reservation := client.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, budget.Window, nil
	}
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return true, 0, nil
	}
	reservation.CancelAt(now)
	return false, delay, nil
}

func (rl *rateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < limiterSweepPeriod {
		return
	}
	rl.lastSweep = now
	cutoff := now.Add(-2 * rl.maxWindow)
	for key, client := range rl.clients {
		if client.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

func (rl *rateLimiter) Close(ctx context.Context) error {
	if rl == nil || rl.store == nil {
		return nil
	}
	return rl.store.Close(ctx)
}

func isAuthScope(scope Scope) bool {
	for _, candidate := range authScopes {
		if candidate == scope {
			return true
		}
	}
	return false
}

// scopeForRequest picks the budget for a request. The throttled auth
// endpoints use their own scope; everything else is split by authentication.
func scopeForRequest(path string, authenticated bool) Scope {
	if strings.HasPrefix(path, authPrefix) {
		if scope, ok := authScopes[strings.Trim(strings.TrimPrefix(path, authPrefix), "/")]; ok {
			return scope
		}
	}
	if authenticated {
		return ScopeUser
	}
	return ScopeAnon
}

func throttledDetail(wait int) string {
	unit := "seconds"
	if wait == 1 {
		unit = "second"
	}
	return fmt.Sprintf("Request was throttled. Expected available in %d %s.", wait, unit)
}

func writeThrottled(w http.ResponseWriter, retryAfter time.Duration) {
	wait := int(math.Ceil(retryAfter.Seconds()))
	if wait < 1 {
		wait = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(wait))
	api.WriteDetail(w, http.StatusTooManyRequests, throttledDetail(wait))
}

// rateLimitMiddleware throttles /api/ requests. It runs after authentication
// so authenticated callers are keyed by user id and anonymous ones by client
// IP.
func rateLimitMiddleware(rl *rateLimiter, next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, api.APIPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		user, authenticated := api.UserFromContext(r.Context())
		ident := extractClientIP(r)
		if authenticated {
			ident = "user-" + strconv.FormatInt(user.ID, 10)
		}
		scope := scopeForRequest(r.URL.Path, authenticated)
		allowed, retryAfter, err := rl.Allow(r.Context(), scope, ident)
		if err != nil {
			requestLogger(r, nil).Error("rate limiter failure", "scope", scope, "error", err)
			writeMiddlewareError(w, http.StatusServiceUnavailable, "rate limiter unavailable")
			return
		}
		if !allowed {
			requestLogger(r, nil).Warn("request throttled", "scope", scope, "retry_after", retryAfter.String())
			writeThrottled(w, retryAfter)
			return
		}
		next.ServeHTTP(w, r)
	})
}
