// Package sqlite persists forensic session snapshots in a local SQLite
// database so evidence survives process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shiva-garg-77/Swaggo-sub012/internal/domain/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS forensic_snapshots (
	session_id     TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	reason         TEXT NOT NULL,
	captured_at    TEXT NOT NULL,
	final_state    TEXT NOT NULL,
	risk_score     REAL NOT NULL,
	security_level TEXT NOT NULL,
	rotation_count INTEGER NOT NULL,
	request_count  INTEGER NOT NULL,
	context        TEXT NOT NULL,
	indicators     TEXT,
	timeline       TEXT
);
CREATE INDEX IF NOT EXISTS idx_forensic_user_captured
	ON forensic_snapshots (user_id, captured_at DESC);
`

// ArchiveStore implements session.ArchiveStore on a local SQLite file
// (modernc.org/sqlite, no cgo).
type ArchiveStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewArchiveStore opens (or creates) the archive database at path and
// ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewArchiveStore(path string, logger *slog.Logger) (*ArchiveStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}

	// The driver serializes writes; a single connection avoids
	// SQLITE_BUSY between concurrent archivers.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure archive database: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}

	return &ArchiveStore{db: db, logger: logger}, nil
}

// Archive stores one snapshot, replacing any earlier snapshot of the
// same session.
func (s *ArchiveStore) Archive(ctx context.Context, snap *session.ForensicsSnapshot) error {
	contextJSON, err := json.Marshal(snap.Context)
	if err != nil {
		return fmt.Errorf("marshal snapshot context: %w", err)
	}
	indicatorsJSON, err := json.Marshal(snap.Indicators)
	if err != nil {
		return fmt.Errorf("marshal snapshot indicators: %w", err)
	}
	timelineJSON, err := json.Marshal(snap.Timeline)
	if err != nil {
		return fmt.Errorf("marshal snapshot timeline: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO forensic_snapshots (
			session_id, user_id, reason, captured_at, final_state,
			risk_score, security_level, rotation_count, request_count,
			context, indicators, timeline
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.SessionID,
		snap.UserID,
		snap.Reason,
		snap.CapturedAt.UTC().Format(time.RFC3339Nano),
		string(snap.FinalState),
		snap.RiskScore,
		string(snap.SecurityLevel),
		snap.RotationCount,
		snap.RequestCount,
		string(contextJSON),
		string(indicatorsJSON),
		string(timelineJSON),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// BySession returns the snapshot for a session id.
func (s *ArchiveStore) BySession(ctx context.Context, sessionID string) (*session.ForensicsSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, reason, captured_at, final_state,
		       risk_score, security_level, rotation_count, request_count,
		       context, indicators, timeline
		FROM forensic_snapshots
		WHERE session_id = ?
	`, sessionID)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snap, nil
}

// RecentForUser returns the user's snapshots, newest first.
func (s *ArchiveStore) RecentForUser(ctx context.Context, userID string, limit int) ([]*session.ForensicsSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, user_id, reason, captured_at, final_state,
		       risk_score, security_level, rotation_count, request_count,
		       context, indicators, timeline
		FROM forensic_snapshots
		WHERE user_id = ?
		ORDER BY captured_at DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*session.ForensicsSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *ArchiveStore) Close() error {
	return s.db.Close()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*session.ForensicsSnapshot, error) {
	var (
		snap           session.ForensicsSnapshot
		capturedAt     string
		finalState     string
		securityLevel  string
		contextJSON    string
		indicatorsJSON sql.NullString
		timelineJSON   sql.NullString
	)

	err := row.Scan(
		&snap.SessionID,
		&snap.UserID,
		&snap.Reason,
		&capturedAt,
		&finalState,
		&snap.RiskScore,
		&securityLevel,
		&snap.RotationCount,
		&snap.RequestCount,
		&contextJSON,
		&indicatorsJSON,
		&timelineJSON,
	)
	if err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, capturedAt)
	if err != nil {
		return nil, fmt.Errorf("parse captured_at: %w", err)
	}
	snap.CapturedAt = ts
	snap.FinalState = session.State(finalState)
	snap.SecurityLevel = session.SecurityLevel(securityLevel)

	if err := json.Unmarshal([]byte(contextJSON), &snap.Context); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot context: %w", err)
	}
	if indicatorsJSON.Valid && indicatorsJSON.String != "" {
		if err := json.Unmarshal([]byte(indicatorsJSON.String), &snap.Indicators); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot indicators: %w", err)
		}
	}
	if timelineJSON.Valid && timelineJSON.String != "" {
		if err := json.Unmarshal([]byte(timelineJSON.String), &snap.Timeline); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot timeline: %w", err)
		}
	}

	return &snap, nil
}

// Compile-time interface verification.
var _ session.ArchiveStore = (*ArchiveStore)(nil)
