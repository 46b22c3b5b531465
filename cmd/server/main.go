package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"motorsport-api/internal/api"
	"motorsport-api/internal/auth"
	"motorsport-api/internal/observability/logging"
	"motorsport-api/internal/observability/metrics"
	"motorsport-api/internal/server"
	"motorsport-api/internal/serverutil"
	"motorsport-api/internal/storage"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	flags := registerFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := resolveConfig(flags)
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config, logger *slog.Logger) error {
	store, closeStore, err := openRepository(cfg)
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}

	blacklist, closeBlacklist, err := openBlacklist(ctx, cfg)
	if err != nil {
		_ = closeStore(context.Background())
		return fmt.Errorf("open token blacklist: %w", err)
	}

	// Lines outside a request carry request_id "-".
	processLogger := logging.WithContext(ctx, logger)
	if cfg.GeneratedSigningKey {
		processLogger.Warn("JWT_SIGNING_KEY not set; using a random key, tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenManager(cfg.Tokens, auth.WithBlacklist(blacklist))
	if err != nil {
		return errors.Join(err, closeBlacklist(context.Background()), closeStore(context.Background()))
	}

	handler := api.NewHandler(store, tokens, cfg.Cookies)
	if cfg.PageSize > 0 {
		handler.PageSize = cfg.PageSize
	}

	srv, err := server.New(handler, server.Config{
		Addr:      cfg.Addr,
		RateLimit: cfg.RateLimit,
		CORS:      server.CORSConfig{AllowedOrigins: cfg.CORSOrigins},
		Security:  server.SecurityConfig{HSTSMaxAge: cfg.HSTSMaxAge},
		Logger:    logger,
		Metrics:   metrics.NewRegistry(),
	})
	if err != nil {
		return errors.Join(fmt.Errorf("initialise server: %w", err), closeBlacklist(context.Background()), closeStore(context.Background()))
	}

	processLogger.Info("motorsport API starting",
		"addr", cfg.Addr,
		"mode", cfg.Mode,
		"storage", cfg.StorageDriver,
		"blacklist", cfg.BlacklistDriver)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serverutil.Run(gctx, serverutil.Config{
			Server:          srv.HTTPServer(),
			TLS:             serverutil.TLSConfig{CertFile: cfg.TLSCert, KeyFile: cfg.TLSKey},
			ShutdownTimeout: cfg.ShutdownTimeout,
			Logger:          processLogger,
			OnShutdown:      []func(context.Context) error{srv.Close, closeBlacklist, closeStore},
		})
	})
	g.Go(func() error {
		runBlacklistPurger(gctx, logging.WithComponent(processLogger, "blacklist-purger"), blacklist, cfg.BlacklistPurgeInterval)
		return nil
	})
	return g.Wait()
}

func openRepository(cfg config) (storage.Repository, func(context.Context) error, error) {
	var (
		store storage.Repository
		err   error
	)
	switch cfg.StorageDriver {
	case "json":
		store, err = storage.NewJSONRepository(cfg.DataPath)
	case "postgres":
		opts := []storage.Option{storage.WithPostgresMigrations(cfg.Postgres.Migrate)}
		if cfg.Postgres.MaxConns > 0 || cfg.Postgres.MinConns > 0 {
			opts = append(opts, storage.WithPostgresPoolLimits(int32(cfg.Postgres.MaxConns), int32(cfg.Postgres.MinConns)))
		}
		if cfg.Postgres.MaxConnLifetime > 0 || cfg.Postgres.MaxConnIdle > 0 || cfg.Postgres.HealthInterval > 0 {
			opts = append(opts, storage.WithPostgresPoolDurations(cfg.Postgres.MaxConnLifetime, cfg.Postgres.MaxConnIdle, cfg.Postgres.HealthInterval))
		}
		if cfg.Postgres.AcquireTimeout > 0 {
			opts = append(opts, storage.WithPostgresAcquireTimeout(cfg.Postgres.AcquireTimeout))
		}
		if cfg.Postgres.AppName != "" {
			opts = append(opts, storage.WithPostgresApplicationName(cfg.Postgres.AppName))
		}
		store, err = storage.NewPostgresRepository(cfg.Postgres.DSN, opts...)
	default:
		err = fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
	if err != nil {
		return nil, nil, err
	}
	return store, closerFor(store), nil
}

func openBlacklist(ctx context.Context, cfg config) (auth.BlacklistStore, func(context.Context) error, error) {
	switch cfg.BlacklistDriver {
	case "memory":
		store := auth.NewMemoryBlacklist()
		return store, closerFor(store), nil
	case "postgres":
		opts := []auth.PostgresBlacklistOption{auth.WithMigrations(cfg.Postgres.Migrate)}
		if cfg.Postgres.AcquireTimeout > 0 {
			opts = append(opts, auth.WithTimeout(cfg.Postgres.AcquireTimeout))
		}
		store, err := auth.NewPostgresBlacklist(ctx, cfg.BlacklistDSN, opts...)
		if err != nil {
			return nil, nil, err
		}
		return store, closerFor(store), nil
	case "redis":
		store, err := auth.NewRedisBlacklist(auth.RedisBlacklistConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, closerFor(store), nil
	default:
		return nil, nil, fmt.Errorf("unsupported blacklist driver %q", cfg.BlacklistDriver)
	}
}

// closerFor adapts the two Close shapes used by the stores into a shutdown
// hook. Stores without Close get a no-op.
func closerFor(v any) func(context.Context) error {
	switch c := v.(type) {
	case interface{ Close(context.Context) error }:
		return c.Close
	case interface{ Close() error }:
		return func(context.Context) error { return c.Close() }
	default:
		return func(context.Context) error { return nil }
	}
}

const defaultBlacklistPurgeInterval = 10 * time.Minute
