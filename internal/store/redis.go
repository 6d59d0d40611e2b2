package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlinks/internal/idgen"
	"github.com/serroba/shortlinks/internal/links"
)

// maxTxRetries bounds optimistic transaction retries when a watched key changes.
const maxTxRetries = 10

var errTxRetriesExceeded = errors.New("redis transaction retries exceeded")

// Both *redis.Client and *redis.Tx satisfy these.
type (
	hashReader interface {
		HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	}
	stringReader interface {
		Get(ctx context.Context, key string) *redis.StringCmd
	}
)

// RedisLinkStore is a Redis implementation of links.Repository.
// Each link is a hash at "link:{id}"; ids per owner are kept in a set at
// "owner:{owner}:links".
type RedisLinkStore struct {
	client      *redis.Client
	prefix      string
	ownerPrefix string
}

// NewRedisLinkStore creates a new Redis-backed link store.
func NewRedisLinkStore(client *redis.Client) *RedisLinkStore {
	return &RedisLinkStore{
		client:      client,
		prefix:      "link:",
		ownerPrefix: "owner:",
	}
}

func (r *RedisLinkStore) Insert(ctx context.Context, link *links.Link) error {
	key := r.key(link.ID)

	return r.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}

		if exists > 0 {
			return links.ErrIDConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeLink(link))
			pipe.SAdd(ctx, r.ownerKey(link.Owner), link.ID.String())

			return nil
		})

		return err
	}, key)
}

func (r *RedisLinkStore) Get(ctx context.Context, id idgen.ID) (*links.Link, error) {
	return r.load(ctx, r.client, id)
}

func (r *RedisLinkStore) Modify(ctx context.Context, id idgen.ID, fn func(*links.Link) error) (*links.Link, error) {
	key := r.key(id)

	var updated *links.Link

	err := r.watch(ctx, func(tx *redis.Tx) error {
		current, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return err
		}

		next.ID = current.ID
		next.Owner = current.Owner
		next.CreatedAt = current.CreatedAt

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, encodeLink(next))

			if next.LastAccessed == nil {
				pipe.HDel(ctx, key, "last_accessed")
			}

			return nil
		})
		if err != nil {
			return err
		}

		updated = next

		return nil
	}, key)
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *RedisLinkStore) Remove(ctx context.Context, id idgen.ID, fn func(*links.Link) error) error {
	key := r.key(id)

	return r.watch(ctx, func(tx *redis.Tx) error {
		current, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}

		if err := fn(current.Clone()); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, r.ownerKey(current.Owner), id.String())

			return nil
		})

		return err
	}, key)
}

func (r *RedisLinkStore) ListByOwner(ctx context.Context, owner string) ([]idgen.ID, error) {
	members, err := r.client.SMembers(ctx, r.ownerKey(owner)).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]idgen.ID, 0, len(members))

	for _, m := range members {
		id, err := idgen.Parse(m)
		if err != nil {
			return nil, fmt.Errorf("corrupt owner index entry %q: %w", m, err)
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (r *RedisLinkStore) RemoveByOwner(ctx context.Context, owner string) ([]idgen.ID, error) {
	ownerKey := r.ownerKey(owner)

	var removed []idgen.ID

	err := r.watch(ctx, func(tx *redis.Tx) error {
		removed = removed[:0]

		members, err := tx.SMembers(ctx, ownerKey).Result()
		if err != nil {
			return err
		}

		if len(members) == 0 {
			return nil
		}

		ids := make([]idgen.ID, 0, len(members))
		for _, m := range members {
			id, err := idgen.Parse(m)
			if err != nil {
				return fmt.Errorf("corrupt owner index entry %q: %w", m, err)
			}

			ids = append(ids, id)
		}

		dels := make([]*redis.IntCmd, len(ids))

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, id := range ids {
				dels[i] = pipe.Del(ctx, r.key(id))
			}

			pipe.Del(ctx, ownerKey)

			return nil
		})
		if err != nil {
			return err
		}

		// Index entries whose hash is already gone were not removed here.
		for i, del := range dels {
			if del.Val() > 0 {
				removed = append(removed, ids[i])
			}
		}

		return nil
	}, ownerKey)
	if err != nil {
		return nil, err
	}

	if removed == nil {
		removed = []idgen.ID{}
	}

	return removed, nil
}

func (r *RedisLinkStore) key(id idgen.ID) string {
	return r.prefix + id.String()
}

func (r *RedisLinkStore) ownerKey(owner string) string {
	return r.ownerPrefix + owner + ":links"
}

func (r *RedisLinkStore) load(ctx context.Context, c hashReader, id idgen.ID) (*links.Link, error) {
	fields, err := c.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, links.ErrNotFound
	}

	link, err := decodeLink(fields)
	if err != nil {
		return nil, fmt.Errorf("corrupt link %s: %w", id, err)
	}

	link.ID = id

	return link, nil
}

// watch runs fn in an optimistic transaction on keys, retrying when another
// client modifies them first.
func (r *RedisLinkStore) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	return watchWithRetry(ctx, r.client, fn, keys...)
}

func watchWithRetry(ctx context.Context, client *redis.Client, fn func(*redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return errTxRetriesExceeded
}

func encodeLink(link *links.Link) map[string]any {
	fields := map[string]any{
		"owner":      link.Owner,
		"target":     link.Target,
		"clicks":     link.Clicks,
		"created_at": link.CreatedAt.UnixNano(),
	}

	if link.LastAccessed != nil {
		fields["last_accessed"] = link.LastAccessed.UnixNano()
	}

	return fields
}

func decodeLink(fields map[string]string) (*links.Link, error) {
	clicks, err := strconv.ParseInt(fields["clicks"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("clicks: %w", err)
	}

	createdAt, err := parseUnixNano(fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}

	link := &links.Link{
		Owner:     fields["owner"],
		Target:    fields["target"],
		Clicks:    clicks,
		CreatedAt: createdAt,
	}

	if v, ok := fields["last_accessed"]; ok {
		t, err := parseUnixNano(v)
		if err != nil {
			return nil, fmt.Errorf("last_accessed: %w", err)
		}

		link.LastAccessed = &t
	}

	return link, nil
}

func parseUnixNano(s string) (time.Time, error) {
	nanos, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}

	return time.Unix(0, nanos).UTC(), nil
}
