package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any unknown username or wrong password.
// Callers cannot tell the two cases apart.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Authenticator checks sign-in attempts against the single back-office account.
type Authenticator struct {
	username string
	hash     []byte
}

// NewAuthenticator returns an Authenticator for username, whose password is
// stored as the bcrypt hash passwordHash.
func NewAuthenticator(username, passwordHash string) (*Authenticator, error) {
	if username == "" {
		return nil, errors.New("auth: username is required")
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return nil, fmt.Errorf("auth: password hash: %w", err)
	}
	return &Authenticator{username: username, hash: []byte(passwordHash)}, nil
}

// Check returns nil if username and password match the account.
// The password hash is compared even for a wrong username.
func (a *Authenticator) Check(username, password string) error {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
