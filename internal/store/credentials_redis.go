package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlinks/internal/auth"
)

// RedisCredentialStore is a Redis implementation of auth.Repository.
// Each password hash is a string at "credential:{username}".
type RedisCredentialStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCredentialStore creates a new Redis-backed credential store.
func NewRedisCredentialStore(client *redis.Client) *RedisCredentialStore {
	return &RedisCredentialStore{
		client: client,
		prefix: "credential:",
	}
}

func (r *RedisCredentialStore) Insert(ctx context.Context, cred auth.Credential) error {
	ok, err := r.client.SetNX(ctx, r.prefix+cred.Username, cred.PasswordHash, 0).Result()
	if err != nil {
		return err
	}

	if !ok {
		return auth.ErrDuplicateCredential
	}

	return nil
}

func (r *RedisCredentialStore) Get(ctx context.Context, username string) (auth.Credential, error) {
	return r.load(ctx, r.client, username)
}

func (r *RedisCredentialStore) Replace(
	ctx context.Context,
	username string,
	fn func(current auth.Credential) (auth.Credential, error),
) error {
	key := r.prefix + username

	return watchWithRetry(ctx, r.client, func(tx *redis.Tx) error {
		current, err := r.load(ctx, tx, username)
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next.PasswordHash, 0)

			return nil
		})

		return err
	}, key)
}

func (r *RedisCredentialStore) load(ctx context.Context, c stringReader, username string) (auth.Credential, error) {
	hash, err := c.Get(ctx, r.prefix+username).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return auth.Credential{}, auth.ErrUnknownUser
		}

		return auth.Credential{}, err
	}

	return auth.Credential{Username: username, PasswordHash: hash}, nil
}
