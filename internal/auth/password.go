package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is the cost used by HashPassword.
const bcryptCost = 10

// ErrPasswordMismatch is returned when a connection password does not match.
var ErrPasswordMismatch = errors.New("password mismatch")

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("hash password: empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ValidateHash reports whether hash looks like a bcrypt hash. An empty hash
// is valid and means no password is required.
func ValidateHash(hash string) error {
	if hash == "" {
		return nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("invalid password hash: %w", err)
	}
	return nil
}

// CheckPassword compares the password a client sent against the configured
// hash. With no hash configured every password is accepted.
func CheckPassword(hash, password string) error {
	if hash == "" {
		return nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("check password: %w", err)
	}
	return nil
}
