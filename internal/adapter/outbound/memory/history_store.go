package memory

import (
	"context"
	"sync"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
)

// DefaultHistoryCapacity bounds the retained end-of-life records.
const DefaultHistoryCapacity = 1024

// HistoryStore implements session.HistoryStore with a fixed-size ring:
// once full, the oldest record is overwritten.
type HistoryStore struct {
	mu       sync.RWMutex
	records  []session.HistoryRecord
	next     int
	count    int
	capacity int
}

// NewHistoryStore creates a history ring with the given capacity.
func NewHistoryStore(capacity int) *HistoryStore {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryStore{
		records:  make([]session.HistoryRecord, capacity),
		capacity: capacity,
	}
}

// Append records one ended session.
func (s *HistoryStore) Append(ctx context.Context, rec session.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[s.next] = rec
	s.next = (s.next + 1) % s.capacity
	if s.count < s.capacity {
		s.count++
	}
	return nil
}

// RecentForUser returns the user's most recent records, newest first.
func (s *HistoryStore) RecentForUser(ctx context.Context, userID string, limit int) ([]session.HistoryRecord, error) {
	return s.collect(limit, func(rec *session.HistoryRecord) bool {
		return rec.UserID == userID
	})
}

// Recent returns the most recent records, newest first.
func (s *HistoryStore) Recent(ctx context.Context, limit int) ([]session.HistoryRecord, error) {
	return s.collect(limit, func(*session.HistoryRecord) bool { return true })
}

func (s *HistoryStore) collect(limit int, match func(*session.HistoryRecord) bool) ([]session.HistoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]session.HistoryRecord, 0, limit)
	for i := 0; i < s.count && len(out) < limit; i++ {
		idx := (s.next - 1 - i + s.capacity*2) % s.capacity
		if match(&s.records[idx]) {
			rec := s.records[idx]
			if rec.Indicators != nil {
				rec.Indicators = append([]string(nil), rec.Indicators...)
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

// Compile-time interface verification.
var _ session.HistoryStore = (*HistoryStore)(nil)
