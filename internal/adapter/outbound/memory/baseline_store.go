package memory

import (
	"context"
	"sync"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/behavior"
)

// BaselineStore implements behavior.Store with an in-memory map keyed by
// user ID. Thread-safe for concurrent access.
type BaselineStore struct {
	mu        sync.RWMutex
	baselines map[string]*behavior.Baseline
}

// NewBaselineStore creates an empty baseline store.
func NewBaselineStore() *BaselineStore {
	return &BaselineStore{baselines: make(map[string]*behavior.Baseline)}
}

// Get returns a copy of the user's baseline.
func (s *BaselineStore) Get(ctx context.Context, userID string) (*behavior.Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.baselines[userID]
	if !ok {
		return nil, behavior.ErrBaselineNotFound
	}
	return b.Clone(), nil
}

// Put stores the baseline, replacing any existing record.
func (s *BaselineStore) Put(ctx context.Context, b *behavior.Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.baselines[b.UserID] = b.Clone()
	return nil
}

// Remove deletes the user's baseline.
func (s *BaselineStore) Remove(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.baselines, userID)
	return nil
}

// Compile-time interface verification.
var _ behavior.Store = (*BaselineStore)(nil)
