package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"motorsport-api/internal/models"
)

func (s *Storage) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	params, err := validateNewUser(params)
	if err != nil {
		return models.User{}, err
	}
	hashed, err := hashPassword(params.Password, s.hashIterations)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	err = s.mutate(ctx, func(d *dataset) error {
		key := usernameKey(params.Username)
		for _, existing := range d.Users {
			if usernameKey(existing.Username) == key {
				return ErrUsernameTaken
			}
		}
		user = models.User{
			ID:           nextID(&d.Sequences.User, d.Users),
			Username:     params.Username,
			PasswordHash: hashed,
			IsStaff:      params.IsStaff,
			IsSuperuser:  params.IsSuperuser,
			CreatedAt:    s.now(),
		}
		d.Users[user.ID] = user
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Storage) GetUser(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := s.view(ctx, func(d *dataset) error {
		found, ok := d.Users[id]
		if !ok {
			return ErrNotFound
		}
		user = found
		return nil
	})
	return user, err
}

// FindUserByUsername looks a user up ignoring case and surrounding whitespace.
func (s *Storage) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	key := usernameKey(username)
	var user models.User
	err := s.view(ctx, func(d *dataset) error {
		for _, existing := range d.Users {
			if usernameKey(existing.Username) == key {
				user = existing
				return nil
			}
		}
		return ErrNotFound
	})
	return user, err
}

// AuthenticateUser verifies credentials and returns the matching user on success.
func (s *Storage) AuthenticateUser(ctx context.Context, username, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}
	user, err := s.FindUserByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	return user, nil
}

// SetUserPassword replaces the stored password hash for the provided user.
func (s *Storage) SetUserPassword(ctx context.Context, id int64, password string) (models.User, error) {
	if problems := ValidatePassword(password); len(problems) > 0 {
		return models.User{}, &ValidationError{Fields: map[string][]string{"password": problems}}
	}
	hashed, err := hashPassword(password, s.hashIterations)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var user models.User
	err = s.mutate(ctx, func(d *dataset) error {
		found, ok := d.Users[id]
		if !ok {
			return ErrNotFound
		}
		found.PasswordHash = hashed
		d.Users[id] = found
		user = found
		return nil
	})
	return user, err
}

func (s *Storage) SetUserFlags(ctx context.Context, id int64, isStaff, isSuperuser bool) (models.User, error) {
	var user models.User
	err := s.mutate(ctx, func(d *dataset) error {
		found, ok := d.Users[id]
		if !ok {
			return ErrNotFound
		}
		found.IsStaff = isStaff
		found.IsSuperuser = isSuperuser
		d.Users[id] = found
		user = found
		return nil
	})
	return user, err
}

func (s *Storage) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.view(ctx, func(d *dataset) error {
		users = make([]models.User, 0, len(d.Users))
		for _, user := range d.Users {
			users = append(users, user)
		}
		sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
		return nil
	})
	return users, err
}

func (s *Storage) ImportUser(ctx context.Context, user models.User) (models.User, error) {
	user, err := normalizeImportedUser(user)
	if err != nil {
		return models.User{}, err
	}
	var out models.User
	err = s.mutate(ctx, func(d *dataset) error {
		key := usernameKey(user.Username)
		for id, existing := range d.Users {
			if usernameKey(existing.Username) != key {
				continue
			}
			existing.PasswordHash = user.PasswordHash
			existing.IsStaff = user.IsStaff
			existing.IsSuperuser = user.IsSuperuser
			d.Users[id] = existing
			out = existing
			return nil
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = s.now()
		}
		user.ID = nextID(&d.Sequences.User, d.Users)
		d.Users[user.ID] = user
		out = user
		return nil
	})
	return out, err
}
