package persona

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store exposes persona retrieval for the conversation core. The core
// only ever reads; mutation happens through the admin surface.
type Store interface {
	List() []Persona
	FindByID(id string) (Persona, bool)
}

// AdminStore extends Store with the mutations used by the persona
// admin handlers.
type AdminStore interface {
	Store
	Put(p Persona) Persona
}

// MemoryStore implements AdminStore with an in-memory map.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Persona
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
func NewMemoryStore(items []Persona) *MemoryStore {
	s := &MemoryStore{items: make(map[string]Persona, len(items))}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

// List returns all personas ordered by creation time.
func (s *MemoryStore) List() []Persona {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Persona, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// FindByID looks up a persona by identifier.
func (s *MemoryStore) FindByID(id string) (Persona, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Put inserts or replaces a persona. A missing ID is assigned; the
// UpdatedAt timestamp is always refreshed.
func (s *MemoryStore) Put(p Persona) Persona {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	s.mu.Lock()
	s.items[p.ID] = p
	s.mu.Unlock()
	return p
}
