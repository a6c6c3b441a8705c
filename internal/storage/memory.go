package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/kalambet/moodrelay/internal/conversation"
)

// MemoryStore keeps histories in a process-local map.
type MemoryStore struct {
	mu         sync.RWMutex
	histories  map[string][]conversation.Interaction
	maxRecords int
}

var _ conversation.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. maxRecords caps each user's history;
// zero or less keeps everything.
func NewMemoryStore(maxRecords int) *MemoryStore {
	return &MemoryStore{
		histories:  make(map[string][]conversation.Interaction),
		maxRecords: maxRecords,
	}
}

func (s *MemoryStore) History(_ context.Context, userID string) ([]conversation.Interaction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.histories[userID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(h), true, nil
}

func (s *MemoryStore) Append(_ context.Context, userID string, records ...conversation.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.histories[userID], records...)
	if s.maxRecords > 0 && len(h) > s.maxRecords {
		h = slices.Clone(h[len(h)-s.maxRecords:])
	}
	if h == nil {
		h = []conversation.Interaction{}
	}
	s.histories[userID] = h
	return nil
}

func (s *MemoryStore) Users(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
