package keyring

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/keepup/internal/constants"
)

var (
	// ErrNotFound is returned when no secret is found in the keyring
	ErrNotFound = errors.New("secret not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring is not available
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

func get(user string) (string, error) {
	secret, err := keyring.Get(constants.AppName, user)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return secret, nil
}

func set(user, secret, what string) error {
	if secret == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if err := keyring.Set(constants.AppName, user, secret); err != nil {
		return fmt.Errorf("failed to store %s in keyring: %w", what, err)
	}
	return nil
}

func del(user, what string) error {
	if err := keyring.Delete(constants.AppName, user); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete %s from keyring: %w", what, err)
	}
	return nil
}

// GetConnectionString retrieves the database connection string from the OS keyring.
// Returns ErrNotFound if no credentials are stored.
func GetConnectionString() (string, error) {
	return get(constants.KeyringConnectionUser)
}

// SetConnectionString stores the database connection string in the OS keyring
func SetConnectionString(connStr string) error {
	return set(constants.KeyringConnectionUser, connStr, "connection string")
}

// DeleteConnectionString removes the database connection string from the OS keyring
func DeleteConnectionString() error {
	return del(constants.KeyringConnectionUser, "connection string")
}

// GetSessionToken retrieves the raw token of the persisted session.
// Returns ErrNotFound when nobody is signed in on this machine.
func GetSessionToken() (string, error) {
	return get(constants.KeyringSessionUser)
}

// SetSessionToken persists the raw session token
func SetSessionToken(token string) error {
	return set(constants.KeyringSessionUser, token, "session token")
}

// DeleteSessionToken forgets the persisted session
func DeleteSessionToken() error {
	return del(constants.KeyringSessionUser, "session token")
}

// IsAvailable checks if the OS keyring is available on the current system.
// This is a best-effort check and may not catch all failure scenarios.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "test-availability")
	// ErrNotFound means the keyring is reachable but empty
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}
