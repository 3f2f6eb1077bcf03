// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
)

var storeEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func storeSession(id, user, token string, lastAccess time.Time) *session.Session {
	return &session.Session{
		ID:             id,
		UserID:         user,
		Type:           session.TypeWeb,
		State:          session.StateActive,
		SecurityLevel:  session.LevelMedium,
		CreatedAt:      lastAccess.Add(-time.Hour),
		LastAccessedAt: lastAccess,
		ExpiresAt:      lastAccess.Add(24 * time.Hour),
		Keys:           &session.KeySet{TokenHash: session.HashToken(token)},
		Context: session.RequestContext{
			IP:                "203.0.113.10",
			UserAgent:         "Mozilla/5.0",
			DeviceFingerprint: "fp-0123456789abcdef",
		},
	}
}

func retireWithReason(reason string) session.RetireFunc {
	return func(s *session.Session) {
		s.Transition(session.StateTerminated)
		s.TerminationReason = reason
		if s.Keys != nil {
			s.Keys.Wipe()
		}
	}
}

func TestSessionStore_InsertAndGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	sess := storeSession("sess-1", "user-1", "tok-1", storeEpoch)
	if _, err := store.Insert(ctx, sess, 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.UserID != "user-1" || got.State != session.StateActive {
		t.Errorf("got user %q state %q", got.UserID, got.State)
	}

	// Returned sessions are copies.
	got.RiskScore = 99
	got.Indicators = append(got.Indicators, "DEVICE_CHANGE")
	again, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() second call error: %v", err)
	}
	if again.RiskScore != 0 || len(again.Indicators) != 0 {
		t.Error("store returned a reference instead of a copy")
	}
}

func TestSessionStore_DuplicateID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Insert(ctx, storeSession("sess-1", "user-1", "tok-1", storeEpoch), 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	_, err := store.Insert(ctx, storeSession("sess-1", "user-2", "tok-2", storeEpoch), 0, nil)
	if !errors.Is(err, session.ErrDuplicateSession) {
		t.Errorf("Insert() duplicate id error = %v, want ErrDuplicateSession", err)
	}
}

func TestSessionStore_DuplicateToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Insert(ctx, storeSession("sess-1", "user-1", "tok-1", storeEpoch), 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	_, err := store.Insert(ctx, storeSession("sess-2", "user-1", "tok-1", storeEpoch), 0, nil)
	if !errors.Is(err, session.ErrDuplicateToken) {
		t.Errorf("Insert() duplicate token error = %v, want ErrDuplicateToken", err)
	}
}

func TestSessionStore_Resolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Insert(ctx, storeSession("sess-1", "user-1", "tok-1", storeEpoch), 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	id, err := store.Resolve(ctx, session.HashToken("tok-1"))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if id != "sess-1" {
		t.Errorf("Resolve() = %q, want sess-1", id)
	}

	if _, err := store.Resolve(ctx, session.HashToken("tok-unknown")); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Resolve() unknown token error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Insert(ctx, storeSession("sess-1", "user-1", "tok-1", storeEpoch), 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	got, err := store.Update(ctx, "sess-1", func(s *session.Session) error {
		s.RiskScore = 42
		s.Flags.Monitored = true
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got.RiskScore != 42 || !got.Flags.Monitored {
		t.Error("Update() copy does not reflect the mutation")
	}

	stored, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored.RiskScore != 42 {
		t.Error("mutation did not persist")
	}
}

func TestSessionStore_UpdateAborts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Insert(ctx, storeSession("sess-1", "user-1", "tok-1", storeEpoch), 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	boom := errors.New("boom")
	if _, err := store.Update(ctx, "sess-1", func(s *session.Session) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("Update() error = %v, want the callback error", err)
	}

	if _, err := store.Update(ctx, "missing", func(*session.Session) error { return nil }); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Update() missing session error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_Remove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Insert(ctx, storeSession("sess-1", "user-1", "tok-1", storeEpoch), 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	final, err := store.Remove(ctx, "sess-1", retireWithReason("user_logout"))
	if err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if final.State != session.StateTerminated || final.TerminationReason != "user_logout" {
		t.Errorf("final copy = %s/%q", final.State, final.TerminationReason)
	}
	if final.Keys != nil && !final.Keys.Wiped() {
		t.Error("keys survived removal")
	}

	if _, err := store.Get(ctx, "sess-1"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get() after Remove() error = %v, want ErrSessionNotFound", err)
	}
	if _, err := store.Resolve(ctx, session.HashToken("tok-1")); !errors.Is(err, session.ErrSessionNotFound) {
		t.Error("token still resolves after Remove()")
	}

	if _, err := store.Remove(ctx, "sess-1", nil); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("second Remove() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_EvictionLRU(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()
	retire := retireWithReason("session_limit_exceeded")

	// Three sessions, oldest access first.
	for i := 0; i < 3; i++ {
		sess := storeSession(fmt.Sprintf("sess-%d", i), "user-1", fmt.Sprintf("tok-%d", i),
			storeEpoch.Add(time.Duration(i)*time.Minute))
		if _, err := store.Insert(ctx, sess, 3, retire); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	evicted, err := store.Insert(ctx, storeSession("sess-3", "user-1", "tok-3", storeEpoch.Add(3*time.Minute)), 3, retire)
	if err != nil {
		t.Fatalf("Insert() at cap error: %v", err)
	}
	if len(evicted) != 1 {
		t.Fatalf("evicted %d sessions, want 1", len(evicted))
	}
	if evicted[0].ID != "sess-0" {
		t.Errorf("evicted %q, want the least recently accessed sess-0", evicted[0].ID)
	}
	if evicted[0].State != session.StateTerminated || evicted[0].TerminationReason != "session_limit_exceeded" {
		t.Errorf("evicted session = %s/%q", evicted[0].State, evicted[0].TerminationReason)
	}

	if n, _ := store.Count(ctx); n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
	if _, err := store.Resolve(ctx, session.HashToken("tok-0")); !errors.Is(err, session.ErrSessionNotFound) {
		t.Error("evicted session's token still resolves")
	}
	if _, err := store.Resolve(ctx, session.HashToken("tok-3")); err != nil {
		t.Errorf("new session's token does not resolve: %v", err)
	}
}

func TestSessionStore_EvictionScopedToUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()
	retire := retireWithReason("session_limit_exceeded")

	if _, err := store.Insert(ctx, storeSession("other-1", "user-2", "tok-o1", storeEpoch), 1, retire); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if _, err := store.Insert(ctx, storeSession("sess-1", "user-1", "tok-1", storeEpoch), 1, retire); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	evicted, err := store.Insert(ctx, storeSession("sess-2", "user-1", "tok-2", storeEpoch.Add(time.Minute)), 1, retire)
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if len(evicted) != 1 || evicted[0].ID != "sess-1" {
		t.Fatalf("evicted %d, want only user-1's sess-1", len(evicted))
	}
	if _, err := store.Get(ctx, "other-1"); err != nil {
		t.Errorf("another user's session was evicted: %v", err)
	}
}

func TestSessionStore_Replace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Insert(ctx, storeSession("sess-old", "user-1", "tok-old", storeEpoch), 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	next := storeSession("sess-new", "user-1", "tok-new", storeEpoch.Add(time.Minute))
	if err := store.Replace(ctx, "sess-old", next, retireWithReason("regenerated")); err != nil {
		t.Fatalf("Replace() error: %v", err)
	}

	if _, err := store.Get(ctx, "sess-old"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Error("old session still present after Replace()")
	}
	if _, err := store.Resolve(ctx, session.HashToken("tok-old")); !errors.Is(err, session.ErrSessionNotFound) {
		t.Error("old token still resolves after Replace()")
	}
	id, err := store.Resolve(ctx, session.HashToken("tok-new"))
	if err != nil || id != "sess-new" {
		t.Errorf("Resolve(new token) = %q, %v", id, err)
	}

	if err := store.Replace(ctx, "missing", storeSession("x", "user-1", "tok-x", storeEpoch), nil); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Replace() missing old error = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionStore_SwapTokenHash(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Insert(ctx, storeSession("sess-1", "user-1", "tok-1", storeEpoch), 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	newHash := session.HashToken("tok-rotated")
	got, err := store.SwapTokenHash(ctx, "sess-1", newHash, func(s *session.Session) error {
		s.Keys = &session.KeySet{TokenHash: newHash, RotationCount: s.Keys.RotationCount + 1}
		return nil
	})
	if err != nil {
		t.Fatalf("SwapTokenHash() error: %v", err)
	}
	if got.Keys.RotationCount != 1 {
		t.Errorf("rotation count = %d, want 1", got.Keys.RotationCount)
	}

	if _, err := store.Resolve(ctx, session.HashToken("tok-1")); !errors.Is(err, session.ErrSessionNotFound) {
		t.Error("old token still resolves after rotation")
	}
	if id, err := store.Resolve(ctx, newHash); err != nil || id != "sess-1" {
		t.Errorf("Resolve(rotated) = %q, %v", id, err)
	}
}

func TestSessionStore_SwapTokenHashAborts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	if _, err := store.Insert(ctx, storeSession("sess-1", "user-1", "tok-1", storeEpoch), 0, nil); err != nil {
		t.Fatalf("Insert() error: %v", err)
	}

	boom := errors.New("rotation failed")
	if _, err := store.SwapTokenHash(ctx, "sess-1", session.HashToken("tok-x"), func(*session.Session) error {
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("SwapTokenHash() error = %v, want callback error", err)
	}
	// The original token must still resolve.
	if _, err := store.Resolve(ctx, session.HashToken("tok-1")); err != nil {
		t.Errorf("original token lost after failed rotation: %v", err)
	}
}

func TestSessionStore_ActiveForUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	for i := 0; i < 3; i++ {
		sess := storeSession(fmt.Sprintf("sess-%d", i), "user-1", fmt.Sprintf("tok-%d", i), storeEpoch)
		if _, err := store.Insert(ctx, sess, 0, nil); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}
	if _, err := store.Update(ctx, "sess-2", func(s *session.Session) error {
		s.Transition(session.StateSuspended)
		return nil
	}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	active, err := store.ActiveForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ActiveForUser() error: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("ActiveForUser() = %d sessions, want 2", len(active))
	}
	for _, s := range active {
		if s.ID == "sess-2" {
			t.Error("suspended session reported active")
		}
	}
}

func TestSessionStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewSessionStore()

	for i := 0; i < 10; i++ {
		sess := storeSession(fmt.Sprintf("seed-%d", i), "user-seed", fmt.Sprintf("seed-tok-%d", i), storeEpoch)
		if _, err := store.Insert(ctx, sess, 0, nil); err != nil {
			t.Fatalf("Insert() error: %v", err)
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 400)

	// Readers
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := store.Get(ctx, fmt.Sprintf("seed-%d", idx%10))
			if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
				errCh <- err
			}
		}(i)
	}

	// Updaters
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := store.Update(ctx, fmt.Sprintf("seed-%d", idx%10), func(s *session.Session) error {
				s.RiskScore++
				return nil
			})
			if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
				errCh <- err
			}
		}(i)
	}

	// Inserters with a per-user cap to exercise eviction concurrently
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sess := storeSession(fmt.Sprintf("new-%d", idx), "user-new", fmt.Sprintf("new-tok-%d", idx), storeEpoch)
			if _, err := store.Insert(ctx, sess, 20, retireWithReason("session_limit_exceeded")); err != nil {
				errCh <- err
			}
		}(i)
	}

	// Removers
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := store.Remove(ctx, fmt.Sprintf("seed-%d", idx%10), retireWithReason("user_logout"))
			if err != nil && !errors.Is(err, session.ErrSessionNotFound) {
				errCh <- err
			}
		}(i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent access error: %v", err)
	}
}
