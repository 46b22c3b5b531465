package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"motorsport-api/internal/models"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/cases"
)

// usernameKey folds a username for case-insensitive uniqueness checks.
func usernameKey(username string) string {
	return cases.Fold().String(strings.TrimSpace(username))
}

func validateNewUser(params CreateUserParams) (CreateUserParams, error) {
	params.Username = strings.TrimSpace(params.Username)
	verr := &ValidationError{}
	if params.Username == "" {
		verr.Add("username", "Username is required.")
	} else if len([]rune(params.Username)) > 150 {
		verr.Add("username", maxLengthMessage(150))
	}
	for _, problem := range ValidatePassword(params.Password) {
		verr.Add("password", problem)
	}
	return params, verr.OrNil()
}

func hashPassword(password string, iterations int) (string, error) {
	if iterations <= 0 {
		iterations = passwordHashIterations
	}
	salt := make([]byte, passwordHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, iterations, passwordHashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", iterations, encodedSalt, encodedKey), nil
}

func verifyPassword(encodedHash, candidate string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return fmt.Errorf("verify password: invalid hash format")
	}
	if parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return fmt.Errorf("verify password: unsupported hash identifier")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("verify password: invalid iteration count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("verify password: decode salt: %w", err)
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("verify password: decode hash: %w", err)
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	if len(derived) != len(storedKey) || subtle.ConstantTimeCompare(derived, storedKey) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

// normalizeImportedUser checks a user carried over from another datastore. The
// hash must already be in the pbkdf2 format produced by hashPassword.
func normalizeImportedUser(user models.User) (models.User, error) {
	user.Username = strings.TrimSpace(user.Username)
	verr := &ValidationError{}
	if user.Username == "" {
		verr.Add("username", "Username is required.")
	}
	if !strings.HasPrefix(user.PasswordHash, "pbkdf2$sha256$") || strings.Count(user.PasswordHash, "$") != 4 {
		verr.Add("password", "Unsupported password hash.")
	}
	return user, verr.OrNil()
}
