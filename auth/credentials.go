package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// CredentialVerifier checks a login attempt and reports whether the account
// is an admin.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (isAdmin bool, err error)
}

// AdminCredentials verifies a single configured admin account against a
// bcrypt hash.
type AdminCredentials struct {
	email string
	hash  []byte
}

func NewAdminCredentials(email, passwordHash string) (*AdminCredentials, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("admin email is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	return &AdminCredentials{email: email, hash: []byte(passwordHash)}, nil
}

// HashPassword returns a bcrypt hash suitable for ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (a *AdminCredentials) Verify(ctx context.Context, email, password string) (bool, error) {
	emailOK := subtle.ConstantTimeCompare([]byte(normalizeEmail(email)), []byte(a.email)) == 1
	// Always run the hash comparison so a wrong email costs the same as a
	// wrong password.
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !emailOK || passErr != nil {
		return false, ErrInvalidCredentials
	}
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DenyAll rejects every login. It stands in when no admin is configured.
type DenyAll struct{}

func (DenyAll) Verify(ctx context.Context, email, password string) (bool, error) {
	return false, ErrInvalidCredentials
}
