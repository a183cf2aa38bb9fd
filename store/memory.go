package store

import (
	"context"
	"sync"

	"github.com/tbxark/flowagent/types"
)

type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]*types.ConversationState
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string]*types.ConversationState{}}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*types.ConversationState, error) {
	s.mu.RLock()
	val, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return val.Clone(), nil
}

func (s *MemoryStore) Set(ctx context.Context, id string, state *types.ConversationState) error {
	s.mu.Lock()
	s.m[id] = state.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Has(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	_, ok := s.m[id]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
