// Package security provides functionality for handling password hashing and verification.
// It leverages the bcrypt algorithm to hash passwords with a per-password salt and to compare
// hashed values. Plaintext passwords are never stored or logged.
package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordLength is the longest password bcrypt accepts, in bytes.
const MaxPasswordLength = 72

var (
	// ErrPasswordMismatch is returned when a plaintext password does not match its hash.
	ErrPasswordMismatch = errors.New("security: password does not match")
	// ErrPasswordTooLong is returned for passwords longer than MaxPasswordLength bytes.
	ErrPasswordTooLong = errors.New("security: password too long")
)

// HashPassword takes a plaintext password and returns its bcrypt hash.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
// It returns nil on success and ErrPasswordMismatch when the passwords do not match.
func CheckPassword(hashedPassword, userPassword string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(userPassword))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
