// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
)

// sessionEntry pairs a session with its own lock so updates to distinct
// sessions never contend.
type sessionEntry struct {
	mu   sync.Mutex
	sess *session.Session
}

// SessionStore implements session.Store with an in-memory map, a token
// hash index, and a per-user index.
//
// Lock discipline: the outer RWMutex guards the maps, the entry mutex
// guards one session's fields. Reads and updates hold the outer lock
// shared and then the entry lock; structural operations (insert,
// remove, replace, token swap) hold the outer lock exclusively, which
// also makes them atomic with respect to every lookup. Entry locks are
// only ever taken while holding the outer lock, so the lock order is
// fixed.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	tokens   map[string]string              // token hash -> session ID
	byUser   map[string]map[string]struct{} // user ID -> session IDs
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
		tokens:   make(map[string]string),
		byUser:   make(map[string]map[string]struct{}),
	}
}

// Insert registers a new session. When maxPerUser > 0 and the user is at
// the cap, the least recently accessed sessions are retired and removed
// to make room; their final states are returned as copies.
func (s *SessionStore) Insert(ctx context.Context, sess *session.Session, maxPerUser int, retire session.RetireFunc) ([]*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; ok {
		return nil, session.ErrDuplicateSession
	}
	tokenHash := ""
	if sess.Keys != nil {
		tokenHash = sess.Keys.TokenHash
	}
	if tokenHash != "" {
		if _, ok := s.tokens[tokenHash]; ok {
			return nil, session.ErrDuplicateToken
		}
	}

	var evicted []*session.Session
	if maxPerUser > 0 {
		evicted = s.evictForLocked(sess.UserID, maxPerUser, retire)
	}

	s.sessions[sess.ID] = &sessionEntry{sess: sess.Clone()}
	if tokenHash != "" {
		s.tokens[tokenHash] = sess.ID
	}
	ids, ok := s.byUser[sess.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[sess.UserID] = ids
	}
	ids[sess.ID] = struct{}{}

	return evicted, nil
}

// evictForLocked makes room for one more session of userID. Caller holds
// the outer lock exclusively.
func (s *SessionStore) evictForLocked(userID string, maxPerUser int, retire session.RetireFunc) []*session.Session {
	ids := s.byUser[userID]
	over := len(ids) + 1 - maxPerUser
	if over <= 0 {
		return nil
	}

	entries := make([]*sessionEntry, 0, len(ids))
	for id := range ids {
		if e, ok := s.sessions[id]; ok {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].sess.LastAccessedAt.Before(entries[j].sess.LastAccessedAt)
	})
	if over > len(entries) {
		over = len(entries)
	}

	evicted := make([]*session.Session, 0, over)
	for _, e := range entries[:over] {
		e.mu.Lock()
		tokenHash := ""
		if e.sess.Keys != nil {
			tokenHash = e.sess.Keys.TokenHash
		}
		if retire != nil {
			retire(e.sess)
		}
		cp := e.sess.Clone()
		e.mu.Unlock()

		s.deleteLocked(e.sess.ID, e.sess.UserID, tokenHash)
		evicted = append(evicted, cp)
	}
	return evicted
}

// deleteLocked removes a session from all indexes. Caller holds the
// outer lock exclusively.
func (s *SessionStore) deleteLocked(id, userID, tokenHash string) {
	delete(s.sessions, id)
	if tokenHash != "" {
		delete(s.tokens, tokenHash)
	}
	if ids, ok := s.byUser[userID]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byUser, userID)
		}
	}
}

// Get returns a copy of the session.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone(), nil
}

// Resolve maps a token hash to a session ID.
func (s *SessionStore) Resolve(ctx context.Context, tokenHash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.tokens[tokenHash]
	if !ok {
		return "", session.ErrSessionNotFound
	}
	return id, nil
}

// Update applies fn to the session under its entry lock and returns a
// copy of the result.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*session.Session) error) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(e.sess); err != nil {
		return nil, err
	}
	return e.sess.Clone(), nil
}

// Remove retires the session and deletes it with its token index entry
// in one step.
func (s *SessionStore) Remove(ctx context.Context, id string, finalize session.RetireFunc) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	e.mu.Lock()
	tokenHash := ""
	if e.sess.Keys != nil {
		tokenHash = e.sess.Keys.TokenHash
	}
	if finalize != nil {
		finalize(e.sess)
	}
	cp := e.sess.Clone()
	e.mu.Unlock()

	s.deleteLocked(id, e.sess.UserID, tokenHash)
	return cp, nil
}

// Replace atomically retires old and registers next, so no interleaved
// lookup can see both or neither.
func (s *SessionStore) Replace(ctx context.Context, oldID string, next *session.Session, retire session.RetireFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sessions[oldID]
	if !ok {
		return session.ErrSessionNotFound
	}
	if _, ok := s.sessions[next.ID]; ok {
		return session.ErrDuplicateSession
	}
	nextHash := ""
	if next.Keys != nil {
		nextHash = next.Keys.TokenHash
	}
	if nextHash != "" {
		if _, ok := s.tokens[nextHash]; ok {
			return session.ErrDuplicateToken
		}
	}

	old.mu.Lock()
	oldHash := ""
	if old.sess.Keys != nil {
		oldHash = old.sess.Keys.TokenHash
	}
	if retire != nil {
		retire(old.sess)
	}
	old.mu.Unlock()

	s.deleteLocked(oldID, old.sess.UserID, oldHash)

	s.sessions[next.ID] = &sessionEntry{sess: next.Clone()}
	if nextHash != "" {
		s.tokens[nextHash] = next.ID
	}
	ids, ok := s.byUser[next.UserID]
	if !ok {
		ids = make(map[string]struct{})
		s.byUser[next.UserID] = ids
	}
	ids[next.ID] = struct{}{}
	return nil
}

// SwapTokenHash applies rotate to the session and moves its token index
// entry to newHash in one atomic step. rotate must leave the session
// unchanged when it returns an error.
func (s *SessionStore) SwapTokenHash(ctx context.Context, id string, newHash string, rotate func(*session.Session) error) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	if owner, ok := s.tokens[newHash]; ok && owner != id {
		return nil, session.ErrDuplicateToken
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	oldHash := ""
	if e.sess.Keys != nil {
		oldHash = e.sess.Keys.TokenHash
	}
	if err := rotate(e.sess); err != nil {
		return nil, err
	}
	if oldHash != "" {
		delete(s.tokens, oldHash)
	}
	s.tokens[newHash] = id
	return e.sess.Clone(), nil
}

// SnapshotIDs returns the IDs of all live sessions.
func (s *SessionStore) SnapshotIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids, nil
}

// ActiveForUser returns copies of the user's active sessions.
func (s *SessionStore) ActiveForUser(ctx context.Context, userID string) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*session.Session
	for id := range s.byUser[userID] {
		e, ok := s.sessions[id]
		if !ok {
			continue
		}
		e.mu.Lock()
		if e.sess.State == session.StateActive {
			out = append(out, e.sess.Clone())
		}
		e.mu.Unlock()
	}
	return out, nil
}

// Count returns the number of live sessions.
func (s *SessionStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), nil
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)
