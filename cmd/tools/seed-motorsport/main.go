// Command seed-motorsport loads championship fixtures into a datastore and
// exports existing data back to YAML.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"motorsport-api/internal/storage"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "seed-motorsport: %v\n", err)
		os.Exit(1)
	}
}

var (
	jsonFlag = &cli.StringFlag{
		Name:    "json",
		Usage:   "Path to the JSON datastore",
		Sources: cli.EnvVars("MOTORSPORT_DATA"),
	}
	postgresFlag = &cli.StringFlag{
		Name:    "postgres-dsn",
		Usage:   "Postgres connection string (takes precedence over --json)",
		Sources: cli.EnvVars("MOTORSPORT_POSTGRES_DSN", "DATABASE_URL"),
	}
	timeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Overall deadline for the operation",
		Value: 2 * time.Minute,
	}
)

func newRootCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "seed-motorsport",
		Usage:  "Seed and snapshot motorsport championship data",
		Writer: out,
		Flags:  []cli.Flag{jsonFlag, postgresFlag, timeoutFlag},
		Commands: []*cli.Command{
			loadCmd(),
			exportCmd(),
		},
	}
}

func loadCmd() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "Upsert a YAML fixture (the bundled demo season by default)",
		Description: `Records are matched by natural key (team name, driver name, season year,
season and round, race and driver) so loading the same fixture twice leaves
the datastore unchanged. Driver points are recalculated afterwards.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "fixture",
				Aliases: []string{"f"},
				Usage:   "Path to a YAML fixture; omit to use the bundled demo data",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fx, err := loadFixture(cmd.String("fixture"))
			if err != nil {
				return err
			}
			return withRepository(ctx, cmd, func(ctx context.Context, repo storage.Repository) error {
				counts, err := storage.ImportFixture(ctx, repo, fx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.Root().Writer,
					"Seeded %d teams, %d drivers, %d seasons, %d races, %d results (%d users).\n",
					counts.Teams, counts.Drivers, counts.Seasons, counts.Races, counts.Results, counts.Users)
				return err
			})
		},
	}
}

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the datastore contents as a YAML fixture",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Destination file; stdout when omitted",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withRepository(ctx, cmd, func(ctx context.Context, repo storage.Repository) error {
				fx, err := storage.ExportFixture(ctx, repo)
				if err != nil {
					return err
				}
				path := cmd.String("output")
				if path == "" {
					return storage.EncodeFixture(cmd.Root().Writer, fx)
				}
				file, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create %s: %w", path, err)
				}
				if err := storage.EncodeFixture(file, fx); err != nil {
					_ = file.Close()
					return err
				}
				return file.Close()
			})
		},
	}
}

func loadFixture(path string) (storage.Fixture, error) {
	if path == "" {
		return storage.DefaultFixture()
	}
	return storage.LoadFixture(path)
}

// withRepository opens the datastore selected by the root flags, runs fn under
// the --timeout deadline and closes the store afterwards.
func withRepository(ctx context.Context, cmd *cli.Command, fn func(context.Context, storage.Repository) error) error {
	root := cmd.Root()
	dsn := root.String(postgresFlag.Name)
	jsonPath := root.String(jsonFlag.Name)

	var (
		repo storage.Repository
		err  error
	)
	switch {
	case dsn != "":
		repo, err = storage.NewPostgresRepository(dsn, storage.WithPostgresMigrations(true))
	case jsonPath != "":
		repo, err = storage.NewJSONRepository(jsonPath)
	default:
		return errors.New("either --json or --postgres-dsn must be provided")
	}
	if err != nil {
		return fmt.Errorf("open datastore: %w", err)
	}

	if timeout := root.Duration(timeoutFlag.Name); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	runErr := fn(ctx, repo)

	if closer, ok := repo.(interface{ Close(context.Context) error }); ok {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := closer.Close(closeCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("close datastore: %w", err)
		}
	}
	return runErr
}
