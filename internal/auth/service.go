package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// dummyPassword is hashed once and compared against when the user is unknown.
const dummyPassword = "not-a-real-password"

// Service registers users and checks their passwords.
type Service struct {
	repo   Repository
	hasher Hasher
	logger *zap.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService creates a credential service.
func NewService(repo Repository, hasher Hasher, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger,
	}
}

// Register stores a new credential for username.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidCredential
	}

	hash, err := s.hash(password)
	if err != nil {
		return err
	}

	if err := s.repo.Insert(ctx, Credential{Username: username, PasswordHash: hash}); err != nil {
		if errors.Is(err, ErrDuplicateCredential) {
			return ErrDuplicateCredential
		}

		return fmt.Errorf("failed to store credential: %w", err)
	}

	s.logger.Info("user registered", zap.String("username", username))

	return nil
}

// Authenticate returns the identity for username if password matches.
// Unknown users and wrong passwords both return ErrCredentialRejected.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	if username == "" || password == "" {
		return Identity{}, ErrCredentialRejected
	}

	cred, err := s.repo.Get(ctx, username)
	if errors.Is(err, ErrUnknownUser) {
		s.burnCompare(password)

		return Identity{}, ErrCredentialRejected
	}

	if err != nil {
		return Identity{}, fmt.Errorf("failed to load credential: %w", err)
	}

	ok, err := s.hasher.Verify(cred.PasswordHash, password)
	if err != nil {
		return Identity{}, err
	}

	if !ok {
		return Identity{}, ErrCredentialRejected
	}

	return Identity{Username: cred.Username}, nil
}

// ChangePassword replaces the password of username if oldPassword matches.
// The check and the write are atomic with respect to other changes.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if username == "" || newPassword == "" {
		return ErrInvalidCredential
	}

	newHash, err := s.hash(newPassword)
	if err != nil {
		return err
	}

	err = s.repo.Replace(ctx, username, func(current Credential) (Credential, error) {
		ok, err := s.hasher.Verify(current.PasswordHash, oldPassword)
		if err != nil {
			return Credential{}, err
		}

		if !ok {
			return Credential{}, ErrCredentialRejected
		}

		return Credential{Username: current.Username, PasswordHash: newHash}, nil
	})

	switch {
	case err == nil:
		s.logger.Info("password changed", zap.String("username", username))

		return nil
	case errors.Is(err, ErrUnknownUser):
		s.burnCompare(oldPassword)

		return ErrCredentialRejected
	case errors.Is(err, ErrCredentialRejected):
		return ErrCredentialRejected
	default:
		return fmt.Errorf("failed to replace credential: %w", err)
	}
}

func (s *Service) hash(password string) ([]byte, error) {
	hash, err := s.hasher.Hash(password)
	if errors.Is(err, ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	if err != nil {
		return nil, err
	}

	return hash, nil
}

func (s *Service) burnCompare(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			s.logger.Warn("failed to prepare dummy hash", zap.Error(err))

			return
		}

		s.dummyHash = hash
	})

	if s.dummyHash != nil {
		_, _ = s.hasher.Verify(s.dummyHash, password)
	}
}
