package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"motorsport-api/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPostgresBlacklistTimeout = 5 * time.Second

// PostgresBlacklistOption configures a PostgresBlacklist.
type PostgresBlacklistOption func(*PostgresBlacklist)

// WithTimeout bounds every blacklist query.
func WithTimeout(timeout time.Duration) PostgresBlacklistOption {
	return func(b *PostgresBlacklist) {
		if timeout > 0 {
			b.timeout = timeout
		}
	}
}

// WithMigrations applies the schema migrations when the blacklist opens, for
// deployments where the catalogue lives in a different backend.
func WithMigrations(enabled bool) PostgresBlacklistOption {
	return func(b *PostgresBlacklist) {
		b.migrate = enabled
	}
}

// PostgresBlacklist persists revoked token ids to the token_blacklist table,
// allowing multiple API replicas to share revocations.
type PostgresBlacklist struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	migrate bool
}

// NewPostgresBlacklist opens a Postgres-backed blacklist using the provided DSN.
func NewPostgresBlacklist(ctx context.Context, dsn string, opts ...PostgresBlacklistOption) (*PostgresBlacklist, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres blacklist dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres blacklist config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres blacklist pool: %w", err)
	}
	blacklist := &PostgresBlacklist{pool: pool, timeout: defaultPostgresBlacklistTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(blacklist)
		}
	}
	if blacklist.migrate {
		if err := storage.ApplyMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate blacklist schema: %w", err)
		}
	}
	return blacklist, nil
}

// Close releases the Postgres connection pool resources.
func (b *PostgresBlacklist) Close(ctx context.Context) error {
	if b == nil || b.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		b.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (b *PostgresBlacklist) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// Add stores the hashed token id until expiresAt. An existing row is left
// untouched and reported as false.
func (b *PostgresBlacklist) Add(ctx context.Context, jti string, userID int64, expiresAt time.Time) (bool, error) {
	if b.pool == nil {
		return false, fmt.Errorf("postgres blacklist pool not configured")
	}
	key, err := hashTokenID(jti)
	if err != nil {
		return false, err
	}
	ctx, cancel := b.queryContext(ctx)
	defer cancel()
	tag, err := b.pool.Exec(ctx, `
INSERT INTO token_blacklist (jti_hash, user_id, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (jti_hash) DO NOTHING
`, key, userID, expiresAt.UTC())
	if err != nil {
		return false, fmt.Errorf("blacklist token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Contains reports whether the hashed token id is stored.
func (b *PostgresBlacklist) Contains(ctx context.Context, jti string) (bool, error) {
	if b.pool == nil {
		return false, fmt.Errorf("postgres blacklist pool not configured")
	}
	key, err := hashTokenID(jti)
	if err != nil {
		return false, err
	}
	ctx, cancel := b.queryContext(ctx)
	defer cancel()
	var one int
	err = b.pool.QueryRow(ctx, `SELECT 1 FROM token_blacklist WHERE jti_hash = $1`, key).Scan(&one)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}
	return true, nil
}

// PurgeExpired deletes expired entries from the table.
func (b *PostgresBlacklist) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	if b.pool == nil {
		return 0, fmt.Errorf("postgres blacklist pool not configured")
	}
	ctx, cancel := b.queryContext(ctx)
	defer cancel()
	tag, err := b.pool.Exec(ctx, `DELETE FROM token_blacklist WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge blacklist: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (b *PostgresBlacklist) Ping(ctx context.Context) error {
	if b.pool == nil {
		return fmt.Errorf("postgres blacklist pool not configured")
	}
	ctx, cancel := b.queryContext(ctx)
	defer cancel()
	return b.pool.Ping(ctx)
}

func isNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}
