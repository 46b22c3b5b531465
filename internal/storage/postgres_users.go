package storage

import (
	"context"
	"errors"
	"fmt"

	"motorsport-api/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, username, password_hash, is_staff, is_superuser, created_at`

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.IsStaff, &user.IsSuperuser, &user.CreatedAt); err != nil {
		if isNoRows(err) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func (r *postgresRepository) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	params, err := validateNewUser(params)
	if err != nil {
		return models.User{}, err
	}
	hashed, err := hashPassword(params.Password, r.cfg.HashIterations)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	err = r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		row := conn.QueryRow(ctx, `
INSERT INTO users (username, username_key, password_hash, is_staff, is_superuser, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+userColumns,
			params.Username, usernameKey(params.Username), hashed, params.IsStaff, params.IsSuperuser, r.cfg.Clock())
		var scanErr error
		user, scanErr = scanUser(row)
		return translatePgError(scanErr)
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *postgresRepository) GetUser(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var scanErr error
		user, scanErr = scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return scanErr
	})
	return user, err
}

func (r *postgresRepository) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var scanErr error
		user, scanErr = scanUser(conn.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username_key = $1`, usernameKey(username)))
		return scanErr
	})
	return user, err
}

func (r *postgresRepository) AuthenticateUser(ctx context.Context, username, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}
	user, err := r.FindUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (r *postgresRepository) SetUserPassword(ctx context.Context, id int64, password string) (models.User, error) {
	if problems := ValidatePassword(password); len(problems) > 0 {
		return models.User{}, &ValidationError{Fields: map[string][]string{"password": problems}}
	}
	hashed, err := hashPassword(password, r.cfg.HashIterations)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	var user models.User
	err = r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var scanErr error
		user, scanErr = scanUser(conn.QueryRow(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1 RETURNING `+userColumns, id, hashed))
		return scanErr
	})
	return user, err
}

func (r *postgresRepository) SetUserFlags(ctx context.Context, id int64, isStaff, isSuperuser bool) (models.User, error) {
	var user models.User
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var scanErr error
		user, scanErr = scanUser(conn.QueryRow(ctx, `UPDATE users SET is_staff = $2, is_superuser = $3 WHERE id = $1 RETURNING `+userColumns, id, isStaff, isSuperuser))
		return scanErr
	})
	return user, err
}

func (r *postgresRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		users, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
			return scanUser(row)
		})
		return err
	})
	return users, err
}

func (r *postgresRepository) ImportUser(ctx context.Context, user models.User) (models.User, error) {
	user, err := normalizeImportedUser(user)
	if err != nil {
		return models.User{}, err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = r.cfg.Clock()
	}
	var out models.User
	err = r.withConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var scanErr error
		out, scanErr = scanUser(conn.QueryRow(ctx, `
INSERT INTO users (username, username_key, password_hash, is_staff, is_superuser, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (username_key) DO UPDATE
SET password_hash = EXCLUDED.password_hash, is_staff = EXCLUDED.is_staff, is_superuser = EXCLUDED.is_superuser
RETURNING `+userColumns,
			user.Username, usernameKey(user.Username), user.PasswordHash, user.IsStaff, user.IsSuperuser, user.CreatedAt))
		return scanErr
	})
	return out, err
}
