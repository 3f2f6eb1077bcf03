package session

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDuplicateSession = errors.New("session id already registered")
	ErrDuplicateToken   = errors.New("token hash already registered")
	ErrSnapshotNotFound = errors.New("forensic snapshot not found")
)

// RetireFunc mutates a session that is being removed from the store. It
// runs under the entry lock, before the session leaves the indexes, so
// key wiping happens before the token stops resolving.
type RetireFunc func(*Session)

// Store is the live-session registry. Implementations serialize access
// per entry and keep the token index consistent with the session set: a
// token hash resolves to at most one live session, and structural
// operations (insert, remove, replace, token swap) are atomic with
// respect to lookups.
//
// All returned sessions are deep copies. Mutation happens only inside
// the callbacks, which run under the entry lock.
type Store interface {
	// Insert registers a new session. When maxPerUser > 0 and the user
	// is at the cap, the least recently accessed active sessions are
	// retired (via retire, under their entry locks), removed, and
	// returned as copies.
	Insert(ctx context.Context, s *Session, maxPerUser int, retire RetireFunc) (evicted []*Session, err error)

	// Get returns a copy of the session.
	Get(ctx context.Context, id string) (*Session, error)

	// Resolve maps a token hash to a session ID.
	Resolve(ctx context.Context, tokenHash string) (string, error)

	// Update applies fn to the session under its entry lock and
	// returns a copy of the result. fn's error aborts the update and
	// is returned unchanged.
	Update(ctx context.Context, id string, fn func(*Session) error) (*Session, error)

	// Remove retires the session (via finalize, under the entry lock)
	// and deletes it with its token index entry in one step. The final
	// state is returned as a copy.
	Remove(ctx context.Context, id string, finalize RetireFunc) (*Session, error)

	// Replace atomically retires old and registers next, so no
	// interleaved lookup can see both or neither.
	Replace(ctx context.Context, oldID string, next *Session, retire RetireFunc) error

	// SwapTokenHash applies rotate to the session and moves its token
	// index entry to newHash in one atomic step.
	SwapTokenHash(ctx context.Context, id string, newHash string, rotate func(*Session) error) (*Session, error)

	// SnapshotIDs returns the IDs of all live sessions.
	SnapshotIDs(ctx context.Context) ([]string, error)

	// ActiveForUser returns copies of the user's active sessions.
	ActiveForUser(ctx context.Context, userID string) ([]*Session, error)

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)
}

// HistoryRecord summarizes a session after it ends.
type HistoryRecord struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	Type          Type      `json:"type"`
	FinalState    State     `json:"final_state"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	EndedAt       time.Time `json:"ended_at"`
	RiskScore     float64   `json:"risk_score"`
	RotationCount int       `json:"rotation_count"`
	RequestCount  int64     `json:"request_count"`
	Indicators    []string  `json:"indicators,omitempty"`
}

// HistoryStore keeps a bounded record of ended sessions.
type HistoryStore interface {
	Append(ctx context.Context, rec HistoryRecord) error
	RecentForUser(ctx context.Context, userID string, limit int) ([]HistoryRecord, error)
	Recent(ctx context.Context, limit int) ([]HistoryRecord, error)
}

// ForensicEvent is one entry in a preserved session timeline.
type ForensicEvent struct {
	At       time.Time `json:"at"`
	Type     string    `json:"type"`
	Severity string    `json:"severity,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

// ForensicsSnapshot is the evidence captured when a session ends under
// suspicion: final state, request surface, risk indicators, and the
// recent activity timeline. Key material is never part of a snapshot.
type ForensicsSnapshot struct {
	SessionID     string          `json:"session_id"`
	UserID        string          `json:"user_id"`
	Reason        string          `json:"reason"`
	CapturedAt    time.Time       `json:"captured_at"`
	FinalState    State           `json:"final_state"`
	RiskScore     float64         `json:"risk_score"`
	SecurityLevel SecurityLevel   `json:"security_level"`
	Context       RequestContext  `json:"context"`
	Indicators    []string        `json:"indicators,omitempty"`
	RotationCount int             `json:"rotation_count"`
	RequestCount  int64           `json:"request_count"`
	Timeline      []ForensicEvent `json:"timeline,omitempty"`
}

// ArchiveStore persists forensic snapshots beyond process lifetime.
type ArchiveStore interface {
	Archive(ctx context.Context, snap *ForensicsSnapshot) error
	BySession(ctx context.Context, sessionID string) (*ForensicsSnapshot, error)
	RecentForUser(ctx context.Context, userID string, limit int) ([]*ForensicsSnapshot, error)
	Close() error
}
