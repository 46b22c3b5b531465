// Command bootstrap-admin creates or promotes a staff superuser account.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"motorsport-api/internal/models"
	"motorsport-api/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fatalf("load .env: %v", err)
	}

	var (
		jsonPath    string
		postgresDSN string
		username    string
		password    string
	)

	flag.StringVar(&jsonPath, "json", "", "Path to the JSON datastore (store.json)")
	flag.StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string")
	flag.StringVar(&username, "username", "admin", "Username for the admin account")
	flag.StringVar(&password, "password", "", "Password for the admin account (defaults to MOTORSPORT_ADMIN_PASSWORD)")
	flag.Parse()

	if jsonPath == "" && postgresDSN == "" {
		fatalf("either --json or --postgres-dsn must be provided")
	}
	if jsonPath != "" && postgresDSN != "" {
		fatalf("only one datastore option may be provided")
	}
	if password == "" {
		password = os.Getenv("MOTORSPORT_ADMIN_PASSWORD")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		fatalf("--username cannot be empty")
	}
	if problems := storage.ValidatePassword(password); len(problems) > 0 {
		fatalf("--password rejected: %s", strings.Join(problems, " "))
	}

	repo, err := openRepository(jsonPath, postgresDSN)
	if err != nil {
		fatalf("open datastore: %v", err)
	}
	defer closeRepository(repo)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, created, err := bootstrapAdmin(ctx, repo, username, password)
	if err != nil {
		fatalf("bootstrap admin: %v", err)
	}

	state := "updated"
	if created {
		state = "created"
	}
	fmt.Printf("Admin user %s (id %d) %s successfully.\n", user.Username, user.ID, state)
	fmt.Println("Remember to rotate this password after the first login.")
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func openRepository(jsonPath, postgresDSN string) (storage.Repository, error) {
	if jsonPath != "" {
		return storage.NewJSONRepository(jsonPath)
	}
	return storage.NewPostgresRepository(postgresDSN, storage.WithPostgresMigrations(true))
}

func closeRepository(repo storage.Repository) {
	type closer interface {
		Close(context.Context) error
	}
	if c, ok := repo.(closer); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	}
}

// bootstrapAdmin creates username as a staff superuser, or promotes and resets
// the password of an existing account. The bool reports whether it was created.
func bootstrapAdmin(ctx context.Context, repo storage.Repository, username, password string) (models.User, bool, error) {
	existing, err := repo.FindUserByUsername(ctx, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		user, err := repo.CreateUser(ctx, storage.CreateUserParams{
			Username:    username,
			Password:    password,
			IsStaff:     true,
			IsSuperuser: true,
		})
		if err != nil {
			return models.User{}, false, err
		}
		return user, true, nil
	case err != nil:
		return models.User{}, false, err
	}

	if !existing.IsStaff || !existing.IsSuperuser {
		if _, err := repo.SetUserFlags(ctx, existing.ID, true, true); err != nil {
			return models.User{}, false, err
		}
	}
	updated, err := repo.SetUserPassword(ctx, existing.ID, password)
	if err != nil {
		return models.User{}, false, err
	}
	return updated, false, nil
}
