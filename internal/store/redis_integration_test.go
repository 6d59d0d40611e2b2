//go:build integration

package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/idgen"
	"github.com/serroba/shortlinks/internal/links"
	"github.com/serroba/shortlinks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRedisAddr() string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return addr
	}

	return "localhost:6379"
}

func connectRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: getRedisAddr(),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedisLinkStoreIntegration(t *testing.T) {
	ctx := context.Background()
	client := connectRedis(t)
	s := store.NewRedisLinkStore(client)

	const owner = "redis-integration-owner"

	_, _ = s.RemoveByOwner(ctx, owner)
	t.Cleanup(func() { _, _ = s.RemoveByOwner(ctx, owner) })

	base := idgen.ID(time.Now().UnixNano() & (1<<40 - 1))

	t.Run("insert and get", func(t *testing.T) {
		link := newLink(base+1, owner)

		require.NoError(t, s.Insert(ctx, link))

		got, err := s.Get(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, link.Target, got.Target)
		assert.Equal(t, owner, got.Owner)
		assert.Nil(t, got.LastAccessed)
		assert.True(t, link.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("insert conflict returns ErrIDConflict", func(t *testing.T) {
		link := newLink(base+2, owner)
		require.NoError(t, s.Insert(ctx, link))

		assert.ErrorIs(t, s.Insert(ctx, link), links.ErrIDConflict)
	})

	t.Run("modify records access", func(t *testing.T) {
		link := newLink(base+3, owner)
		require.NoError(t, s.Insert(ctx, link))

		accessed := time.Now().UTC()

		_, err := s.Modify(ctx, link.ID, func(l *links.Link) error {
			l.Clicks++
			l.LastAccessed = &accessed

			return nil
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, link.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Clicks)
		require.NotNil(t, got.LastAccessed)
		assert.True(t, accessed.Equal(*got.LastAccessed))
	})

	t.Run("remove deletes the link and its owner entry", func(t *testing.T) {
		link := newLink(base+4, owner)
		require.NoError(t, s.Insert(ctx, link))

		require.NoError(t, s.Remove(ctx, link.ID, func(*links.Link) error { return nil }))

		_, err := s.Get(ctx, link.ID)
		require.ErrorIs(t, err, links.ErrNotFound)

		ids, _ := s.ListByOwner(ctx, owner)
		assert.NotContains(t, ids, link.ID)
	})

	t.Run("remove by owner", func(t *testing.T) {
		_, _ = s.RemoveByOwner(ctx, owner)

		require.NoError(t, s.Insert(ctx, newLink(base+5, owner)))
		require.NoError(t, s.Insert(ctx, newLink(base+6, owner)))

		ids, err := s.ListByOwner(ctx, owner)
		require.NoError(t, err)
		assert.ElementsMatch(t, []idgen.ID{base + 5, base + 6}, ids)

		removed, err := s.RemoveByOwner(ctx, owner)
		require.NoError(t, err)
		assert.ElementsMatch(t, ids, removed)

		ids, err = s.ListByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestRedisCredentialStoreIntegration(t *testing.T) {
	ctx := context.Background()
	client := connectRedis(t)
	s := store.NewRedisCredentialStore(client)

	const username = "redis-integration-user"

	client.Del(ctx, "credential:"+username)
	t.Cleanup(func() { client.Del(ctx, "credential:"+username) })

	require.NoError(t, s.Insert(ctx, auth.Credential{Username: username, PasswordHash: []byte("h1")}))
	require.ErrorIs(t, s.Insert(ctx, auth.Credential{Username: username, PasswordHash: []byte("h2")}),
		auth.ErrDuplicateCredential)

	err := s.Replace(ctx, username, func(c auth.Credential) (auth.Credential, error) {
		return auth.Credential{Username: c.Username, PasswordHash: []byte("h3")}, nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, []byte("h3"), got.PasswordHash)
}

func TestRateLimitRedisStoreIntegration(t *testing.T) {
	ctx := context.Background()
	client := connectRedis(t)
	s := store.NewRateLimitRedisStore(client)

	key := "integration:" + time.Now().Format(time.RFC3339Nano)
	t.Cleanup(func() { client.Del(ctx, "ratelimit:"+key) })

	for want := int64(1); want <= 3; want++ {
		count, err := s.Record(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}
}
