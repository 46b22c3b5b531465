// Command migrate-json-to-postgres copies a JSON datastore into Postgres.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"motorsport-api/internal/observability/logging"
	"motorsport-api/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	jsonPath := flag.String("json", "data/store.json", "path to the JSON datastore to migrate")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the migration")
	flag.Parse()

	logger := logging.New(logging.Config{Level: os.Getenv("LOG_LEVEL"), Format: string(logging.FormatText)})

	dsn := strings.TrimSpace(*postgresDSN)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("MOTORSPORT_POSTGRES_DSN"))
	}
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		logger.Error("postgres DSN required", "hint", "set --postgres-dsn, MOTORSPORT_POSTGRES_DSN, or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := migrate(ctx, logger, *jsonPath, dsn); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func migrate(ctx context.Context, logger *slog.Logger, jsonPath, dsn string) error {
	source, err := storage.NewJSONRepository(jsonPath)
	if err != nil {
		return fmt.Errorf("open JSON datastore: %w", err)
	}
	fx, err := storage.ExportFixture(ctx, source)
	if err != nil {
		return fmt.Errorf("export JSON datastore: %w", err)
	}
	counts := fx.Counts()
	logger.Info("loaded JSON datastore", "path", jsonPath,
		"users", counts.Users, "teams", counts.Teams, "drivers", counts.Drivers,
		"seasons", counts.Seasons, "races", counts.Races, "results", counts.Results)

	target, err := storage.NewPostgresRepository(dsn, storage.WithPostgresMigrations(true))
	if err != nil {
		return fmt.Errorf("open postgres repository: %w", err)
	}
	defer func() {
		if closer, ok := target.(interface{ Close(context.Context) error }); ok {
			_ = closer.Close(context.Background())
		}
	}()

	if _, err := storage.ImportFixture(ctx, target, fx); err != nil {
		return fmt.Errorf("import into postgres: %w", err)
	}
	if err := verifyCounts(ctx, dsn, counts); err != nil {
		return fmt.Errorf("verification: %w", err)
	}

	logger.Info("migration completed", "teams", counts.Teams, "drivers", counts.Drivers, "results", counts.Results)
	return nil
}

// verifyCounts checks that every table holds at least as many rows as the
// fixture. Existing Postgres rows not present in the JSON store are kept.
func verifyCounts(ctx context.Context, dsn string, counts storage.FixtureCounts) error {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("parse verification config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open verification connection: %w", err)
	}
	defer pool.Close()

	for _, check := range countChecks(counts) {
		var actual int
		if err := pool.QueryRow(ctx, check.query).Scan(&actual); err != nil {
			return fmt.Errorf("query %s: %w", check.name, err)
		}
		if actual < check.expected {
			return fmt.Errorf("mismatch for %s: expected at least %d, got %d", check.name, check.expected, actual)
		}
	}
	return nil
}

type countCheck struct {
	name     string
	query    string
	expected int
}

func countChecks(counts storage.FixtureCounts) []countCheck {
	return []countCheck{
		{"users", "SELECT COUNT(*) FROM users", counts.Users},
		{"teams", "SELECT COUNT(*) FROM teams", counts.Teams},
		{"drivers", "SELECT COUNT(*) FROM drivers", counts.Drivers},
		{"seasons", "SELECT COUNT(*) FROM seasons", counts.Seasons},
		{"races", "SELECT COUNT(*) FROM races", counts.Races},
		{"race_results", "SELECT COUNT(*) FROM race_results", counts.Results},
	}
}
