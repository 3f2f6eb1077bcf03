package event

import (
	"context"
	"time"
)

// Sink persists event records.
// Interface owned by domain per hexagonal architecture.
// Implementation handles batching and async writes.
type Sink interface {
	// Append stores event records. Must be non-blocking from caller perspective.
	Append(ctx context.Context, records ...Record) error

	// Flush forces pending records to storage. Called during shutdown.
	Flush(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// Filter specifies query parameters for reading back recent events.
type Filter struct {
	// StartTime is the beginning of the time range (zero = unbounded).
	StartTime time.Time
	// EndTime is the end of the time range (zero = unbounded).
	EndTime time.Time
	// SessionID filters by session (optional).
	SessionID string
	// UserID filters by user (optional).
	UserID string
	// Type filters by event type (optional).
	Type string
	// Severity filters by severity (optional).
	Severity string
	// Limit is the maximum number of records to return (default 100).
	Limit int
}

// Reader provides read access to recently written events.
type Reader interface {
	Query(ctx context.Context, filter Filter) ([]Record, error)
}
