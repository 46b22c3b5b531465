package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes short-lived access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	// ErrTokenInvalid is returned for malformed, expired, blacklisted or
	// wrongly typed tokens.
	ErrTokenInvalid = errors.New("token is invalid or expired")
	// ErrSigningKeyRequired is returned when no HMAC key is configured.
	ErrSigningKeyRequired = errors.New("jwt signing key required")
	// ErrInvalidUserID is returned when issuing tokens without a user.
	ErrInvalidUserID = errors.New("user id is required")
)

// Claims is the JWT payload shared by access and refresh tokens.
type Claims struct {
	UserID    int64     `json:"user_id"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenConfig controls token lifetimes and refresh rotation.
type TokenConfig struct {
	SigningKey             []byte
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	RotateRefresh          bool
	BlacklistAfterRotation bool
}

// DefaultTokenConfig returns the default lifetimes with rotation and
// blacklisting enabled. The signing key must still be provided.
func DefaultTokenConfig() TokenConfig {
	return TokenConfig{
		AccessTTL:              10 * time.Minute,
		RefreshTTL:             7 * 24 * time.Hour,
		RotateRefresh:          true,
		BlacklistAfterRotation: true,
	}
}

// TokenPair is the result of a login or refresh. Refresh is empty when a
// refresh did not rotate the refresh token.
type TokenPair struct {
	Access           string
	Refresh          string
	UserID           int64
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithBlacklist injects the store used for revoked refresh tokens.
func WithBlacklist(store BlacklistStore) TokenOption {
	return func(m *TokenManager) {
		if store != nil {
			m.blacklist = store
		}
	}
}

// WithTokenClock overrides the clock used for issuing and validating tokens.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// TokenManager issues and validates HS256 JWTs and tracks revoked refresh
// tokens in a BlacklistStore.
type TokenManager struct {
	cfg       TokenConfig
	blacklist BlacklistStore
	now       func() time.Time
	parser    *jwt.Parser
}

// NewTokenManager constructs a TokenManager. Missing lifetimes fall back to
// the defaults and a nil blacklist falls back to an in-memory one.
func NewTokenManager(cfg TokenConfig, opts ...TokenOption) (*TokenManager, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, ErrSigningKeyRequired
	}
	defaults := DefaultTokenConfig()
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaults.AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaults.RefreshTTL
	}
	manager := &TokenManager{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(manager)
		}
	}
	if manager.blacklist == nil {
		manager.blacklist = NewMemoryBlacklist()
	}
	manager.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return manager.now() }),
	)
	return manager, nil
}

// AccessTTL reports the configured access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (m *TokenManager) RefreshTTL() time.Duration { return m.cfg.RefreshTTL }

// Blacklist exposes the backing store for maintenance tasks.
func (m *TokenManager) Blacklist() BlacklistStore { return m.blacklist }

func (m *TokenManager) sign(userID int64, tokenType TokenType, issuedAt time.Time, ttl time.Duration) (string, time.Time, error) {
	expiresAt := issuedAt.Add(ttl)
	claims := Claims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Issue creates a fresh access and refresh token pair for the user.
func (m *TokenManager) Issue(userID int64) (TokenPair, error) {
	if userID <= 0 {
		return TokenPair{}, ErrInvalidUserID
	}
	now := m.now()
	access, accessExp, err := m.sign(userID, TokenTypeAccess, now, m.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := m.sign(userID, TokenTypeRefresh, now, m.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		Access:           access,
		Refresh:          refresh,
		UserID:           userID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *TokenManager) parse(raw string, want TokenType) (*Claims, error) {
	if raw == "" {
		return nil, ErrTokenInvalid
	}
	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.cfg.SigningKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != want || claims.UserID <= 0 || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseAccess validates an access token and returns its claims.
func (m *TokenManager) ParseAccess(raw string) (*Claims, error) {
	return m.parse(raw, TokenTypeAccess)
}

// ParseRefresh validates a refresh token and rejects blacklisted ones.
func (m *TokenManager) ParseRefresh(ctx context.Context, raw string) (*Claims, error) {
	claims, err := m.parse(raw, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	revoked, err := m.blacklist.Contains(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check refresh token: %w", err)
	}
	if revoked {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Refresh exchanges a refresh token for a new access token. With rotation
// enabled a new refresh token is issued too, and the presented one is
// blacklisted when BlacklistAfterRotation is set.
func (m *TokenManager) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	claims, err := m.ParseRefresh(ctx, raw)
	if err != nil {
		return TokenPair{}, err
	}
	now := m.now()
	access, accessExp, err := m.sign(claims.UserID, TokenTypeAccess, now, m.cfg.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	pair := TokenPair{Access: access, UserID: claims.UserID, AccessExpiresAt: accessExp}
	if !m.cfg.RotateRefresh {
		return pair, nil
	}
	if m.cfg.BlacklistAfterRotation {
		stored, err := m.blacklist.Add(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time)
		if err != nil {
			return TokenPair{}, fmt.Errorf("blacklist rotated token: %w", err)
		}
		// A concurrent refresh already rotated this token.
		if !stored {
			return TokenPair{}, ErrTokenInvalid
		}
	}
	pair.Refresh, pair.RefreshExpiresAt, err = m.sign(claims.UserID, TokenTypeRefresh, now, m.cfg.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

// Revoke blacklists a refresh token. Already revoked tokens are reported as
// invalid.
func (m *TokenManager) Revoke(ctx context.Context, raw string) (*Claims, error) {
	claims, err := m.ParseRefresh(ctx, raw)
	if err != nil {
		return nil, err
	}
	stored, err := m.blacklist.Add(ctx, claims.ID, claims.UserID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !stored {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// PurgeExpired drops blacklist entries for tokens past their expiry.
func (m *TokenManager) PurgeExpired(ctx context.Context) (int, error) {
	return m.blacklist.PurgeExpired(ctx, m.now())
}

// Ping verifies the blacklist backend is reachable.
func (m *TokenManager) Ping(ctx context.Context) error {
	if m == nil || m.blacklist == nil {
		return nil
	}
	return m.blacklist.Ping(ctx)
}
