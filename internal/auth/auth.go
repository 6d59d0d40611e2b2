// Package auth stores password credentials and checks them.
package auth

import (
	"context"
	"errors"
)

var (
	ErrDuplicateCredential = errors.New("username already registered")
	ErrCredentialRejected  = errors.New("credentials rejected")
	ErrInvalidCredential   = errors.New("username and password must not be empty")
	ErrUnknownUser         = errors.New("unknown user")
)

// Credential is a stored username and password hash.
type Credential struct {
	Username     string
	PasswordHash []byte
}

// Identity is an authenticated user.
type Identity struct {
	Username string
}

// Repository persists credentials. Usernames are unique.
type Repository interface {
	// Insert stores a new credential, returning ErrDuplicateCredential if the
	// username is taken.
	Insert(ctx context.Context, cred Credential) error
	// Get returns ErrUnknownUser if the username is not registered.
	Get(ctx context.Context, username string) (Credential, error)
	// Replace reads the current credential and stores the one fn returns,
	// atomically per username. An error from fn aborts the write and is
	// returned unchanged.
	Replace(ctx context.Context, username string, fn func(current Credential) (Credential, error)) error
}
