package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/serroba/shortlinks/internal/idgen"
	"github.com/serroba/shortlinks/internal/links"
	"github.com/serroba/shortlinks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errVeto = errors.New("veto")

func newLink(id idgen.ID, owner string) *links.Link {
	return &links.Link{
		ID:        id,
		Owner:     owner,
		Target:    "https://example.com/" + id.String(),
		CreatedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestMemoryLinkStore_Insert(t *testing.T) {
	t.Run("stores a copy of the link", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		link := newLink(1, "alice")

		require.NoError(t, s.Insert(context.Background(), link))

		link.Target = "https://changed.example.com"

		got, err := s.Get(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/1", got.Target)
	})

	t.Run("returns ErrIDConflict for a taken id", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		require.NoError(t, s.Insert(context.Background(), newLink(1, "alice")))

		err := s.Insert(context.Background(), newLink(1, "bob"))

		assert.ErrorIs(t, err, links.ErrIDConflict)

		got, _ := s.Get(context.Background(), 1)
		assert.Equal(t, "alice", got.Owner)
	})
}

func TestMemoryLinkStore_Get(t *testing.T) {
	t.Run("returns ErrNotFound for unknown id", func(t *testing.T) {
		s := store.NewMemoryLinkStore()

		got, err := s.Get(context.Background(), 42)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, links.ErrNotFound)
	})
}

func TestMemoryLinkStore_Modify(t *testing.T) {
	t.Run("saves the changes made by fn", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		_ = s.Insert(context.Background(), newLink(1, "alice"))

		updated, err := s.Modify(context.Background(), 1, func(l *links.Link) error {
			l.Clicks = 5

			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, int64(5), updated.Clicks)

		got, _ := s.Get(context.Background(), 1)
		assert.Equal(t, int64(5), got.Clicks)
	})

	t.Run("keeps owner and creation time", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		original := newLink(1, "alice")
		_ = s.Insert(context.Background(), original)

		_, err := s.Modify(context.Background(), 1, func(l *links.Link) error {
			l.Owner = "mallory"
			l.CreatedAt = time.Time{}

			return nil
		})
		require.NoError(t, err)

		got, _ := s.Get(context.Background(), 1)
		assert.Equal(t, "alice", got.Owner)
		assert.Equal(t, original.CreatedAt, got.CreatedAt)
	})

	t.Run("error from fn aborts the write", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		_ = s.Insert(context.Background(), newLink(1, "alice"))

		_, err := s.Modify(context.Background(), 1, func(l *links.Link) error {
			l.Clicks = 99

			return errVeto
		})

		require.ErrorIs(t, err, errVeto)

		got, _ := s.Get(context.Background(), 1)
		assert.Zero(t, got.Clicks)
	})

	t.Run("returns ErrNotFound for unknown id", func(t *testing.T) {
		s := store.NewMemoryLinkStore()

		_, err := s.Modify(context.Background(), 1, func(*links.Link) error { return nil })

		assert.ErrorIs(t, err, links.ErrNotFound)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		_ = s.Insert(context.Background(), newLink(1, "alice"))

		var wg sync.WaitGroup

		for range 50 {
			wg.Add(1)

			go func() {
				defer wg.Done()

				_, _ = s.Modify(context.Background(), 1, func(l *links.Link) error {
					l.Clicks++

					return nil
				})
			}()
		}

		wg.Wait()

		got, _ := s.Get(context.Background(), 1)
		assert.Equal(t, int64(50), got.Clicks)
	})
}

func TestMemoryLinkStore_Remove(t *testing.T) {
	t.Run("removes the link and its owner entry", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		_ = s.Insert(context.Background(), newLink(1, "alice"))

		err := s.Remove(context.Background(), 1, func(*links.Link) error { return nil })
		require.NoError(t, err)

		_, err = s.Get(context.Background(), 1)
		require.ErrorIs(t, err, links.ErrNotFound)

		ids, _ := s.ListByOwner(context.Background(), "alice")
		assert.Empty(t, ids)
	})

	t.Run("error from fn keeps the link", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		_ = s.Insert(context.Background(), newLink(1, "alice"))

		err := s.Remove(context.Background(), 1, func(*links.Link) error { return errVeto })
		require.ErrorIs(t, err, errVeto)

		_, err = s.Get(context.Background(), 1)
		assert.NoError(t, err)
	})

	t.Run("returns ErrNotFound for unknown id", func(t *testing.T) {
		s := store.NewMemoryLinkStore()

		err := s.Remove(context.Background(), 1, func(*links.Link) error { return nil })

		assert.ErrorIs(t, err, links.ErrNotFound)
	})
}

func TestMemoryLinkStore_ByOwner(t *testing.T) {
	t.Run("lists only the owner's links", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		_ = s.Insert(context.Background(), newLink(1, "alice"))
		_ = s.Insert(context.Background(), newLink(2, "bob"))
		_ = s.Insert(context.Background(), newLink(3, "alice"))

		ids, err := s.ListByOwner(context.Background(), "alice")

		require.NoError(t, err)
		assert.ElementsMatch(t, []idgen.ID{1, 3}, ids)
	})

	t.Run("lists nothing for an unknown owner", func(t *testing.T) {
		s := store.NewMemoryLinkStore()

		ids, err := s.ListByOwner(context.Background(), "nobody")

		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("removing an owner without links returns an empty list", func(t *testing.T) {
		s := store.NewMemoryLinkStore()

		ids, err := s.RemoveByOwner(context.Background(), "nobody")

		require.NoError(t, err)
		assert.NotNil(t, ids)
		assert.Empty(t, ids)
	})

	t.Run("removes only the owner's links", func(t *testing.T) {
		s := store.NewMemoryLinkStore()
		_ = s.Insert(context.Background(), newLink(1, "alice"))
		_ = s.Insert(context.Background(), newLink(2, "bob"))
		_ = s.Insert(context.Background(), newLink(3, "alice"))

		ids, err := s.RemoveByOwner(context.Background(), "alice")

		require.NoError(t, err)
		assert.ElementsMatch(t, []idgen.ID{1, 3}, ids)

		_, err = s.Get(context.Background(), 2)
		require.NoError(t, err)

		_, err = s.Get(context.Background(), 1)
		assert.ErrorIs(t, err, links.ErrNotFound)
	})
}
