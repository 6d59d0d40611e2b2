package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlinks/internal/auth"
)

// PostgresCredentialStore is a PostgreSQL implementation of auth.Repository.
type PostgresCredentialStore struct {
	pool *pgxpool.Pool
}

// NewPostgresCredentialStore creates a new PostgreSQL-backed credential store.
func NewPostgresCredentialStore(pool *pgxpool.Pool) *PostgresCredentialStore {
	return &PostgresCredentialStore{pool: pool}
}

func (p *PostgresCredentialStore) Insert(ctx context.Context, cred auth.Credential) error {
	query := `
		INSERT INTO credentials (username, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
	`

	tag, err := p.pool.Exec(ctx, query, cred.Username, cred.PasswordHash)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrDuplicateCredential
	}

	return nil
}

func (p *PostgresCredentialStore) Get(ctx context.Context, username string) (auth.Credential, error) {
	return scanCredential(p.pool.QueryRow(ctx,
		"SELECT username, password_hash FROM credentials WHERE username = $1", username))
}

func (p *PostgresCredentialStore) Replace(
	ctx context.Context,
	username string,
	fn func(current auth.Credential) (auth.Credential, error),
) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		current, err := scanCredential(tx.QueryRow(ctx,
			"SELECT username, password_hash FROM credentials WHERE username = $1 FOR UPDATE", username))
		if err != nil {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			"UPDATE credentials SET password_hash = $2 WHERE username = $1", username, next.PasswordHash)

		return err
	})
}

func scanCredential(row pgx.Row) (auth.Credential, error) {
	var cred auth.Credential

	if err := row.Scan(&cred.Username, &cred.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Credential{}, auth.ErrUnknownUser
		}

		return auth.Credential{}, err
	}

	return cred, nil
}
