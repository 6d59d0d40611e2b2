package store

import (
	"context"
	"sync"

	"github.com/serroba/shortlinks/internal/idgen"
	"github.com/serroba/shortlinks/internal/links"
)

// MemoryLinkStore is an in-memory implementation of links.Repository.
type MemoryLinkStore struct {
	mu      sync.RWMutex
	links   map[idgen.ID]*links.Link
	byOwner map[string]map[idgen.ID]struct{}
}

// NewMemoryLinkStore creates a new in-memory link store.
func NewMemoryLinkStore() *MemoryLinkStore {
	return &MemoryLinkStore{
		links:   make(map[idgen.ID]*links.Link),
		byOwner: make(map[string]map[idgen.ID]struct{}),
	}
}

func (m *MemoryLinkStore) Insert(_ context.Context, link *links.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[link.ID]; ok {
		return links.ErrIDConflict
	}

	m.links[link.ID] = link.Clone()

	owned, ok := m.byOwner[link.Owner]
	if !ok {
		owned = make(map[idgen.ID]struct{})
		m.byOwner[link.Owner] = owned
	}

	owned[link.ID] = struct{}{}

	return nil
}

func (m *MemoryLinkStore) Get(_ context.Context, id idgen.ID) (*links.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[id]
	if !ok {
		return nil, links.ErrNotFound
	}

	return link.Clone(), nil
}

func (m *MemoryLinkStore) Modify(_ context.Context, id idgen.ID, fn func(*links.Link) error) (*links.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.links[id]
	if !ok {
		return nil, links.ErrNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	next.ID = current.ID
	next.Owner = current.Owner
	next.CreatedAt = current.CreatedAt
	m.links[id] = next

	return next.Clone(), nil
}

func (m *MemoryLinkStore) Remove(_ context.Context, id idgen.ID, fn func(*links.Link) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.links[id]
	if !ok {
		return links.ErrNotFound
	}

	if err := fn(current.Clone()); err != nil {
		return err
	}

	m.delete(current)

	return nil
}

func (m *MemoryLinkStore) ListByOwner(_ context.Context, owner string) ([]idgen.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]idgen.ID, 0, len(m.byOwner[owner]))
	for id := range m.byOwner[owner] {
		ids = append(ids, id)
	}

	return ids, nil
}

func (m *MemoryLinkStore) RemoveByOwner(_ context.Context, owner string) ([]idgen.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := m.byOwner[owner]
	ids := make([]idgen.ID, 0, len(owned))

	for id := range owned {
		delete(m.links, id)
		ids = append(ids, id)
	}

	delete(m.byOwner, owner)

	return ids, nil
}

func (m *MemoryLinkStore) delete(link *links.Link) {
	delete(m.links, link.ID)

	owned := m.byOwner[link.Owner]
	delete(owned, link.ID)

	if len(owned) == 0 {
		delete(m.byOwner, link.Owner)
	}
}
