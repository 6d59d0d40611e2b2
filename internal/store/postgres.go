package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/shortlinks/internal/idgen"
	"github.com/serroba/shortlinks/internal/links"
)

// PostgresSchema creates the tables used by the Postgres stores.
//
//go:embed schema.sql
var PostgresSchema string

// EnsurePostgresSchema applies PostgresSchema. Every statement is idempotent.
func EnsurePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return nil
}

// PostgresLinkStore is a PostgreSQL implementation of links.Repository.
type PostgresLinkStore struct {
	pool *pgxpool.Pool
}

// NewPostgresLinkStore creates a new PostgreSQL-backed link store.
func NewPostgresLinkStore(pool *pgxpool.Pool) *PostgresLinkStore {
	return &PostgresLinkStore{pool: pool}
}

const selectLink = `
	SELECT id, owner, target, clicks, created_at, last_accessed
	FROM links
	WHERE id = $1
`

func (p *PostgresLinkStore) Insert(ctx context.Context, link *links.Link) error {
	query := `
		INSERT INTO links (id, owner, target, clicks, created_at, last_accessed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	tag, err := p.pool.Exec(ctx, query,
		int64(link.ID),
		link.Owner,
		link.Target,
		link.Clicks,
		link.CreatedAt,
		link.LastAccessed,
	)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return links.ErrIDConflict
	}

	return nil
}

func (p *PostgresLinkStore) Get(ctx context.Context, id idgen.ID) (*links.Link, error) {
	return scanLink(p.pool.QueryRow(ctx, selectLink, int64(id)))
}

func (p *PostgresLinkStore) Modify(ctx context.Context, id idgen.ID, fn func(*links.Link) error) (*links.Link, error) {
	var updated *links.Link

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		link, err := scanLink(tx.QueryRow(ctx, selectLink+" FOR UPDATE", int64(id)))
		if err != nil {
			return err
		}

		if err := fn(link); err != nil {
			return err
		}

		query := `
			UPDATE links
			SET target = $2, clicks = $3, last_accessed = $4
			WHERE id = $1
			RETURNING id, owner, target, clicks, created_at, last_accessed
		`

		updated, err = scanLink(tx.QueryRow(ctx, query, int64(id), link.Target, link.Clicks, link.LastAccessed))

		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (p *PostgresLinkStore) Remove(ctx context.Context, id idgen.ID, fn func(*links.Link) error) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		link, err := scanLink(tx.QueryRow(ctx, selectLink+" FOR UPDATE", int64(id)))
		if err != nil {
			return err
		}

		if err := fn(link); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, "DELETE FROM links WHERE id = $1", int64(id))

		return err
	})
}

func (p *PostgresLinkStore) ListByOwner(ctx context.Context, owner string) ([]idgen.ID, error) {
	rows, err := p.pool.Query(ctx, "SELECT id FROM links WHERE owner = $1", owner)
	if err != nil {
		return nil, err
	}

	return collectIDs(rows)
}

func (p *PostgresLinkStore) RemoveByOwner(ctx context.Context, owner string) ([]idgen.ID, error) {
	rows, err := p.pool.Query(ctx, "DELETE FROM links WHERE owner = $1 RETURNING id", owner)
	if err != nil {
		return nil, err
	}

	return collectIDs(rows)
}

func collectIDs(rows pgx.Rows) ([]idgen.ID, error) {
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (idgen.ID, error) {
		var id int64
		err := row.Scan(&id)

		return idgen.ID(id), err
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func scanLink(row pgx.Row) (*links.Link, error) {
	var (
		link links.Link
		id   int64
	)

	err := row.Scan(&id, &link.Owner, &link.Target, &link.Clicks, &link.CreatedAt, &link.LastAccessed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, links.ErrNotFound
		}

		return nil, err
	}

	link.ID = idgen.ID(id)

	return &link, nil
}
