package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var errTokenIDRequired = errors.New("token id required")

// hashTokenID derives the stored key for a token id so the raw jti never
// reaches the blacklist backend.
func hashTokenID(jti string) (string, error) {
	if jti == "" {
		return "", errTokenIDRequired
	}
	digest := sha256.Sum256([]byte(jti))
	return hex.EncodeToString(digest[:]), nil
}

func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
