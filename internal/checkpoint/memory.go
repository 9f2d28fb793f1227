package checkpoint

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// MemoryStore keeps checkpoints in process memory. Suitable for tests
// and single-process development runs.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]*schema.Message
}

// NewMemoryStore returns an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]*schema.Message)}
}

// Resume returns the turns recorded for the thread, oldest first.
func (s *MemoryStore) Resume(_ context.Context, threadKey string) ([]*schema.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.threads[threadKey]
	copied := make([]*schema.Message, len(turns))
	copy(copied, turns)
	return copied, nil
}

// Append records turns at the end of the thread.
func (s *MemoryStore) Append(_ context.Context, threadKey string, turns ...*schema.Message) error {
	s.mu.Lock()
	s.threads[threadKey] = append(s.threads[threadKey], turns...)
	s.mu.Unlock()
	return nil
}
