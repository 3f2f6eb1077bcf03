package memory

import (
	"context"
	"sync"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/device"
)

// BindingStore implements device.Registry with in-memory maps.
// Thread-safe for concurrent access.
type BindingStore struct {
	mu        sync.RWMutex
	bindings  map[string]*device.Binding // binding ID -> binding
	bySession map[string][]string        // session ID -> binding IDs
}

// NewBindingStore creates an empty binding store.
func NewBindingStore() *BindingStore {
	return &BindingStore{
		bindings:  make(map[string]*device.Binding),
		bySession: make(map[string][]string),
	}
}

// Register stores a binding, replacing any record with the same ID.
func (s *BindingStore) Register(ctx context.Context, b *device.Binding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.bindings[b.BindingID]; ok && prev.SessionID != b.SessionID {
		s.detachLocked(prev.SessionID, b.BindingID)
	}
	s.bindings[b.BindingID] = copyBinding(b)

	attached := false
	for _, id := range s.bySession[b.SessionID] {
		if id == b.BindingID {
			attached = true
			break
		}
	}
	if !attached {
		s.bySession[b.SessionID] = append(s.bySession[b.SessionID], b.BindingID)
	}
	return nil
}

// Get returns a copy of the binding.
func (s *BindingStore) Get(ctx context.Context, bindingID string) (*device.Binding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bindings[bindingID]
	if !ok {
		return nil, device.ErrBindingNotFound
	}
	return copyBinding(b), nil
}

// RemoveBySession deletes all bindings attached to a session.
func (s *BindingStore) RemoveBySession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.bySession[sessionID] {
		delete(s.bindings, id)
	}
	delete(s.bySession, sessionID)
	return nil
}

// detachLocked drops one binding ID from a session's list. Caller holds
// the lock exclusively.
func (s *BindingStore) detachLocked(sessionID, bindingID string) {
	ids := s.bySession[sessionID]
	for i, id := range ids {
		if id == bindingID {
			s.bySession[sessionID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.bySession[sessionID]) == 0 {
		delete(s.bySession, sessionID)
	}
}

// copyBinding creates a deep copy of a binding.
func copyBinding(b *device.Binding) *device.Binding {
	cp := *b
	if b.Location != nil {
		loc := *b.Location
		cp.Location = &loc
	}
	return &cp
}

// Compile-time interface verification.
var _ device.Registry = (*BindingStore)(nil)
