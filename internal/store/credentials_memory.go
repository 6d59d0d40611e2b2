package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/serroba/shortlinks/internal/auth"
)

// MemoryCredentialStore is an in-memory implementation of auth.Repository.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string][]byte
}

// NewMemoryCredentialStore creates a new in-memory credential store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		creds: make(map[string][]byte),
	}
}

func (m *MemoryCredentialStore) Insert(_ context.Context, cred auth.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.creds[cred.Username]; ok {
		return auth.ErrDuplicateCredential
	}

	m.creds[cred.Username] = bytes.Clone(cred.PasswordHash)

	return nil
}

func (m *MemoryCredentialStore) Get(_ context.Context, username string) (auth.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, ok := m.creds[username]
	if !ok {
		return auth.Credential{}, auth.ErrUnknownUser
	}

	return auth.Credential{Username: username, PasswordHash: bytes.Clone(hash)}, nil
}

func (m *MemoryCredentialStore) Replace(
	_ context.Context,
	username string,
	fn func(current auth.Credential) (auth.Credential, error),
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash, ok := m.creds[username]
	if !ok {
		return auth.ErrUnknownUser
	}

	next, err := fn(auth.Credential{Username: username, PasswordHash: bytes.Clone(hash)})
	if err != nil {
		return err
	}

	m.creds[username] = bytes.Clone(next.PasswordHash)

	return nil
}
